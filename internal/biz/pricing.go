package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"sellersync/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	pricingPath = "/products/pricing/v0/price"
	// pricingBatchSize is the maximum SKUs per pricing call.
	pricingBatchSize = 20
)

// PricePoint is the current listing price for one SKU.
type PricePoint struct {
	SKU          string  `json:"SellerSKU"`
	ASIN         string  `json:"ASIN"`
	Status       string  `json:"status"`
	ListingPrice float64 `json:"ListingPrice"`
	ShippingCost float64 `json:"Shipping"`
	LandedPrice  float64 `json:"LandedPrice"`
	Currency     string  `json:"CurrencyCode"`
}

// pricingResponse is the batched pricing response envelope.
type pricingResponse struct {
	Payload []struct {
		Status    string `json:"status"`
		SellerSKU string `json:"SellerSKU"`
		ASIN      string `json:"ASIN"`
		Product   struct {
			Offers []struct {
				BuyingPrice struct {
					ListingPrice struct {
						Amount       float64 `json:"Amount"`
						CurrencyCode string  `json:"CurrencyCode"`
					} `json:"ListingPrice"`
					Shipping struct {
						Amount float64 `json:"Amount"`
					} `json:"Shipping"`
					LandedPrice struct {
						Amount float64 `json:"Amount"`
					} `json:"LandedPrice"`
				} `json:"BuyingPrice"`
			} `json:"Offers"`
		} `json:"Product"`
	} `json:"payload"`
}

// PricingService pulls current prices for the SKUs the inventory stage
// persisted. It must run after inventory: no SKUs, no pricing calls.
type PricingService struct {
	inventory InventoryStore
	store     PricingStore
	logger    *log.Helper
}

// NewPricingService creates the pricing sync service.
func NewPricingService(inventory InventoryStore, store PricingStore, logger log.Logger) *PricingService {
	return &PricingService{
		inventory: inventory,
		store:     store,
		logger:    log.NewHelper(logger),
	}
}

// Sync prices every known SKU for one tenant in batches. Per-batch failures
// are recorded in the result and do not abort the remaining batches.
func (s *PricingService) Sync(ctx context.Context, client *Client) (*model.SyncResult, error) {
	tenantID := client.TenantID()
	result := &model.SyncResult{Domain: model.DomainPricing}

	skus, err := s.inventory.ListSKUs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list SKUs: %w", err)
	}
	if len(skus) == 0 {
		s.logger.Infow("pricing sync skipped, no SKUs known",
			"tenant_id", tenantID)
		return result, nil
	}

	for start := 0; start < len(skus); start += pricingBatchSize {
		end := start + pricingBatchSize
		if end > len(skus) {
			end = len(skus)
		}
		batch := skus[start:end]

		prices, err := s.fetchBatch(ctx, client, batch)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("batch %s..: %v", batch[0], err))
			continue
		}
		if len(prices) == 0 {
			continue
		}
		if err := s.store.UpsertPrices(ctx, tenantID, prices); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("upsert batch %s..: %v", batch[0], err))
			continue
		}
		result.ItemsProcessed += len(prices)
	}

	s.logger.Infow("pricing sync finished",
		"tenant_id", tenantID,
		"skus", result.ItemsProcessed,
		"errors", len(result.Errors))
	return result, nil
}

// fetchBatch prices up to pricingBatchSize SKUs in one call.
func (s *PricingService) fetchBatch(ctx context.Context, client *Client, skus []string) ([]*PricePoint, error) {
	query := url.Values{}
	query.Set("MarketplaceId", client.MarketplaceID())
	query.Set("ItemType", "Sku")
	query.Set("Skus", strings.Join(skus, ","))

	resp, err := client.Get(ctx, pricingPath, query)
	if err != nil {
		return nil, err
	}

	var pr pricingResponse
	if err := json.Unmarshal(resp.Body, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse pricing response: %w", err)
	}

	prices := make([]*PricePoint, 0, len(pr.Payload))
	for _, entry := range pr.Payload {
		p := &PricePoint{
			SKU:    entry.SellerSKU,
			ASIN:   entry.ASIN,
			Status: entry.Status,
		}
		if len(entry.Product.Offers) > 0 {
			bp := entry.Product.Offers[0].BuyingPrice
			p.ListingPrice = bp.ListingPrice.Amount
			p.Currency = bp.ListingPrice.CurrencyCode
			p.ShippingCost = bp.Shipping.Amount
			p.LandedPrice = bp.LandedPrice.Amount
		}
		prices = append(prices, p)
	}
	return prices, nil
}

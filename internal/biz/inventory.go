package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"sellersync/internal/conf"
	"sellersync/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

const inventoryPath = "/fba/inventory/v1/summaries"

// InventorySummary is one SKU's stock snapshot.
type InventorySummary struct {
	SKU              string `json:"sellerSku"`
	ASIN             string `json:"asin"`
	ProductName      string `json:"productName"`
	Condition        string `json:"condition"`
	TotalQuantity    int32  `json:"totalQuantity"`
	FulfillableQty   int32  `json:"fulfillableQuantity"`
	InboundQty       int32  `json:"inboundQuantity"`
	ReservedQty      int32  `json:"reservedQuantity"`
	LastUpdatedAtRaw string `json:"lastUpdatedTime,omitempty"`
}

// inventoryPage is the paginated summaries response envelope.
type inventoryPage struct {
	Payload struct {
		InventorySummaries []*InventorySummary `json:"inventorySummaries"`
	} `json:"payload"`
	Pagination struct {
		NextToken string `json:"nextToken"`
	} `json:"pagination"`
}

// InventoryService pulls stock summaries for a tenant and flags SKUs whose
// fulfillable quantity is at or below the low-stock threshold.
type InventoryService struct {
	store         InventoryStore
	notifier      Notifier
	lowStockLevel int32
	logger        *log.Helper
}

// NewInventoryService creates the inventory sync service.
func NewInventoryService(store InventoryStore, notifier Notifier, sc *conf.Sync, logger log.Logger) *InventoryService {
	return &InventoryService{
		store:         store,
		notifier:      notifier,
		lowStockLevel: sc.LowStockThreshold,
		logger:        log.NewHelper(logger),
	}
}

// Sync pulls every summaries page for one tenant. Per-page upsert failures
// are recorded in the result and do not abort the run. Low-stock
// notifications are best-effort.
func (s *InventoryService) Sync(ctx context.Context, client *Client) (*model.SyncResult, error) {
	tenantID := client.TenantID()
	result := &model.SyncResult{Domain: model.DomainInventory}

	nextToken := ""
	for {
		page, err := s.fetchPage(ctx, client, nextToken)
		if err != nil {
			return result, err
		}

		summaries := page.Payload.InventorySummaries
		if len(summaries) > 0 {
			if err := s.store.UpsertSummaries(ctx, tenantID, summaries); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("upsert page: %v", err))
			} else {
				result.ItemsProcessed += len(summaries)
			}
			s.checkLowStock(ctx, tenantID, summaries)
		}

		nextToken = page.Pagination.NextToken
		if nextToken == "" {
			break
		}
	}

	s.logger.Infow("inventory sync finished",
		"tenant_id", tenantID,
		"skus", result.ItemsProcessed,
		"errors", len(result.Errors))
	return result, nil
}

func (s *InventoryService) fetchPage(ctx context.Context, client *Client, nextToken string) (*inventoryPage, error) {
	query := url.Values{}
	query.Set("granularityType", "Marketplace")
	query.Set("granularityId", client.MarketplaceID())
	query.Set("details", "true")
	if nextToken != "" {
		query.Set("nextToken", nextToken)
	}

	resp, err := client.Get(ctx, inventoryPath, query)
	if err != nil {
		return nil, err
	}

	var page inventoryPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse inventory page: %w", err)
	}
	return &page, nil
}

// checkLowStock notifies for each SKU at or below the threshold.
func (s *InventoryService) checkLowStock(ctx context.Context, tenantID string, summaries []*InventorySummary) {
	if s.notifier == nil {
		return
	}
	for _, item := range summaries {
		if item.FulfillableQty > s.lowStockLevel {
			continue
		}
		ev := &model.LowStockEvent{
			TenantID:  tenantID,
			SKU:       item.SKU,
			Available: item.FulfillableQty,
			Threshold: s.lowStockLevel,
			CheckedAt: time.Now().UTC(),
		}
		if err := s.notifier.NotifyLowStock(ctx, ev); err != nil {
			s.logger.Warnw("low stock notification failed",
				"tenant_id", tenantID,
				"sku", item.SKU,
				"error", err)
		}
	}
}

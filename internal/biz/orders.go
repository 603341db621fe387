package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"sellersync/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	ordersPath     = "/orders/v0/orders"
	ordersPageSize = 100

	// defaultOrderLookback seeds the watermark for a tenant's first sync.
	defaultOrderLookback = 30 * 24 * time.Hour
)

// Order is one marketplace order as returned by the orders endpoint.
type Order struct {
	OrderID         string    `json:"AmazonOrderId"`
	PurchaseDate    time.Time `json:"PurchaseDate"`
	LastUpdateDate  time.Time `json:"LastUpdateDate"`
	Status          string    `json:"OrderStatus"`
	FulfillmentType string    `json:"FulfillmentChannel"`
	Total           string    `json:"OrderTotal,omitempty"`
	Currency        string    `json:"CurrencyCode,omitempty"`
	ItemCount       int       `json:"NumberOfItemsShipped"`
}

// OrderItem is one line item within an order.
type OrderItem struct {
	OrderItemID string `json:"OrderItemId"`
	SKU         string `json:"SellerSKU"`
	ASIN        string `json:"ASIN"`
	Title       string `json:"Title"`
	Quantity    int    `json:"QuantityOrdered"`
	ItemPrice   string `json:"ItemPrice,omitempty"`
}

// ordersPage is the paginated orders response envelope.
type ordersPage struct {
	Payload struct {
		Orders    []*Order `json:"Orders"`
		NextToken string   `json:"NextToken"`
	} `json:"payload"`
}

// orderItemsPage is the paginated order-items response envelope.
type orderItemsPage struct {
	Payload struct {
		OrderItems []*OrderItem `json:"OrderItems"`
		NextToken  string       `json:"NextToken"`
	} `json:"payload"`
}

// OrdersService pulls orders updated since the tenant's watermark, walks the
// NextToken pagination, and upserts orders and their line items.
type OrdersService struct {
	store  OrderStore
	logger *log.Helper

	// now is injectable for tests.
	now func() time.Time
}

// NewOrdersService creates the orders sync service.
func NewOrdersService(store OrderStore, logger log.Logger) *OrdersService {
	return &OrdersService{
		store:  store,
		logger: log.NewHelper(logger),
		now:    time.Now,
	}
}

// Sync pulls every order page updated after the watermark for one tenant.
// Per-order failures (item fetch, upsert) are recorded in the result and do
// not abort the run; the watermark only advances when the pull completed.
func (s *OrdersService) Sync(ctx context.Context, client *Client) (*model.SyncResult, error) {
	tenantID := client.TenantID()
	result := &model.SyncResult{Domain: model.DomainOrders}

	since, err := s.store.LastUpdatedAfter(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders watermark: %w", err)
	}
	if since.IsZero() {
		since = s.now().UTC().Add(-defaultOrderLookback)
	}
	syncStart := s.now().UTC()

	nextToken := ""
	for {
		page, err := s.fetchPage(ctx, client, since, nextToken)
		if err != nil {
			return result, err
		}

		for _, order := range page.Payload.Orders {
			if err := s.syncOrder(ctx, client, tenantID, order); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("order %s: %v", order.OrderID, err))
				continue
			}
			result.ItemsProcessed++
		}

		nextToken = page.Payload.NextToken
		if nextToken == "" {
			break
		}
	}

	if err := s.store.SetLastUpdatedAfter(ctx, tenantID, syncStart); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("watermark update: %v", err))
	}

	s.logger.Infow("orders sync finished",
		"tenant_id", tenantID,
		"orders", result.ItemsProcessed,
		"errors", len(result.Errors))
	return result, nil
}

func (s *OrdersService) fetchPage(ctx context.Context, client *Client, since time.Time, nextToken string) (*ordersPage, error) {
	query := url.Values{}
	query.Set("MaxResultsPerPage", fmt.Sprintf("%d", ordersPageSize))
	if nextToken != "" {
		query.Set("NextToken", nextToken)
	} else {
		query.Set("LastUpdatedAfter", since.Format(time.RFC3339))
	}

	resp, err := client.Get(ctx, ordersPath, query)
	if err != nil {
		return nil, err
	}

	var page ordersPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse orders page: %w", err)
	}
	return &page, nil
}

// syncOrder upserts one order and its line items.
func (s *OrdersService) syncOrder(ctx context.Context, client *Client, tenantID string, order *Order) error {
	if err := s.store.UpsertOrders(ctx, tenantID, []*Order{order}); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}

	items, err := s.fetchItems(ctx, client, order.OrderID)
	if err != nil {
		return fmt.Errorf("items fetch failed: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	if err := s.store.UpsertOrderItems(ctx, tenantID, order.OrderID, items); err != nil {
		return fmt.Errorf("items upsert failed: %w", err)
	}
	return nil
}

// fetchItems walks the order-items pagination for one order.
func (s *OrdersService) fetchItems(ctx context.Context, client *Client, orderID string) ([]*OrderItem, error) {
	var items []*OrderItem
	nextToken := ""
	for {
		query := url.Values{}
		if nextToken != "" {
			query.Set("NextToken", nextToken)
		}

		resp, err := client.Get(ctx, fmt.Sprintf("%s/%s/orderItems", ordersPath, orderID), query)
		if err != nil {
			return nil, err
		}

		var page orderItemsPage
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("failed to parse order items page: %w", err)
		}
		items = append(items, page.Payload.OrderItems...)

		nextToken = page.Payload.NextToken
		if nextToken == "" {
			return items, nil
		}
	}
}

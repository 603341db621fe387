package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sellersync/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SellerOrder is the persisted order record.
type SellerOrder struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	TenantID        string    `gorm:"column:tenant_id;size:64;not null;uniqueIndex:uk_tenant_order,priority:1"`
	OrderID         string    `gorm:"column:order_id;size:64;not null;uniqueIndex:uk_tenant_order,priority:2"`
	Status          string    `gorm:"column:status;size:32"`
	FulfillmentType string    `gorm:"column:fulfillment_type;size:16"`
	Total           string    `gorm:"column:total;size:32"`
	Currency        string    `gorm:"column:currency;size:8"`
	ItemCount       int       `gorm:"column:item_count"`
	PurchaseDate    time.Time `gorm:"column:purchase_date"`
	LastUpdateDate  time.Time `gorm:"column:last_update_date;index"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the table name.
func (SellerOrder) TableName() string {
	return "seller_orders"
}

// SellerOrderItem is one persisted order line item.
type SellerOrderItem struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	TenantID    string    `gorm:"column:tenant_id;size:64;not null;uniqueIndex:uk_tenant_order_item,priority:1"`
	OrderID     string    `gorm:"column:order_id;size:64;not null;uniqueIndex:uk_tenant_order_item,priority:2"`
	OrderItemID string    `gorm:"column:order_item_id;size:64;not null;uniqueIndex:uk_tenant_order_item,priority:3"`
	SKU         string    `gorm:"column:sku;size:128;index"`
	ASIN        string    `gorm:"column:asin;size:16"`
	Title       string    `gorm:"column:title;size:512"`
	Quantity    int       `gorm:"column:quantity"`
	ItemPrice   string    `gorm:"column:item_price;size:32"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the table name.
func (SellerOrderItem) TableName() string {
	return "seller_order_items"
}

// SyncWatermark tracks per-tenant, per-domain incremental sync positions.
type SyncWatermark struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	TenantID  string    `gorm:"column:tenant_id;size:64;not null;uniqueIndex:uk_tenant_domain,priority:1"`
	Domain    string    `gorm:"column:domain;size:32;not null;uniqueIndex:uk_tenant_domain,priority:2"`
	Position  time.Time `gorm:"column:position"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the table name.
func (SyncWatermark) TableName() string {
	return "sync_watermarks"
}

// orderStore implements biz.OrderStore on GORM.
type orderStore struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewOrderStore creates the order persistence layer.
func NewOrderStore(db *gorm.DB, logger log.Logger) biz.OrderStore {
	return &orderStore{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// UpsertOrders inserts or updates orders keyed by (tenant, order).
func (s *orderStore) UpsertOrders(ctx context.Context, tenantID string, orders []*biz.Order) error {
	if len(orders) == 0 {
		return nil
	}

	records := make([]SellerOrder, 0, len(orders))
	for _, o := range orders {
		records = append(records, SellerOrder{
			TenantID:        tenantID,
			OrderID:         o.OrderID,
			Status:          o.Status,
			FulfillmentType: o.FulfillmentType,
			Total:           o.Total,
			Currency:        o.Currency,
			ItemCount:       o.ItemCount,
			PurchaseDate:    o.PurchaseDate,
			LastUpdateDate:  o.LastUpdateDate,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "fulfillment_type", "total", "currency", "item_count", "last_update_date", "updated_at"}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to upsert orders: %w", err)
	}
	return nil
}

// UpsertOrderItems inserts or updates line items keyed by (tenant, order, item).
func (s *orderStore) UpsertOrderItems(ctx context.Context, tenantID, orderID string, items []*biz.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	records := make([]SellerOrderItem, 0, len(items))
	for _, it := range items {
		records = append(records, SellerOrderItem{
			TenantID:    tenantID,
			OrderID:     orderID,
			OrderItemID: it.OrderItemID,
			SKU:         it.SKU,
			ASIN:        it.ASIN,
			Title:       it.Title,
			Quantity:    it.Quantity,
			ItemPrice:   it.ItemPrice,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "order_id"}, {Name: "order_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sku", "asin", "title", "quantity", "item_price", "updated_at"}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to upsert order items: %w", err)
	}
	return nil
}

// LastUpdatedAfter returns the orders watermark, zero time when none exists.
func (s *orderStore) LastUpdatedAfter(ctx context.Context, tenantID string) (time.Time, error) {
	var wm SyncWatermark
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND domain = ?", tenantID, "orders").
		First(&wm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to load orders watermark: %w", err)
	}
	return wm.Position, nil
}

// SetLastUpdatedAfter advances the orders watermark.
func (s *orderStore) SetLastUpdatedAfter(ctx context.Context, tenantID string, t time.Time) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "domain"}},
		DoUpdates: clause.AssignmentColumns([]string{"position", "updated_at"}),
	}).Create(&SyncWatermark{
		TenantID: tenantID,
		Domain:   "orders",
		Position: t,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to set orders watermark: %w", err)
	}
	return nil
}

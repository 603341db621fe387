package data

import (
	"context"
	"fmt"
	"time"

	"sellersync/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryItem is the persisted stock snapshot for one SKU.
type InventoryItem struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	TenantID       string    `gorm:"column:tenant_id;size:64;not null;uniqueIndex:uk_tenant_sku,priority:1"`
	SKU            string    `gorm:"column:sku;size:128;not null;uniqueIndex:uk_tenant_sku,priority:2"`
	ASIN           string    `gorm:"column:asin;size:16"`
	ProductName    string    `gorm:"column:product_name;size:512"`
	Condition      string    `gorm:"column:item_condition;size:32"`
	TotalQuantity  int32     `gorm:"column:total_quantity"`
	FulfillableQty int32     `gorm:"column:fulfillable_qty"`
	InboundQty     int32     `gorm:"column:inbound_qty"`
	ReservedQty    int32     `gorm:"column:reserved_qty"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the table name.
func (InventoryItem) TableName() string {
	return "inventory_items"
}

// inventoryStore implements biz.InventoryStore on GORM.
type inventoryStore struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewInventoryStore creates the inventory persistence layer.
func NewInventoryStore(db *gorm.DB, logger log.Logger) biz.InventoryStore {
	return &inventoryStore{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// UpsertSummaries inserts or updates stock snapshots keyed by (tenant, sku).
func (s *inventoryStore) UpsertSummaries(ctx context.Context, tenantID string, items []*biz.InventorySummary) error {
	if len(items) == 0 {
		return nil
	}

	records := make([]InventoryItem, 0, len(items))
	for _, it := range items {
		records = append(records, InventoryItem{
			TenantID:       tenantID,
			SKU:            it.SKU,
			ASIN:           it.ASIN,
			ProductName:    it.ProductName,
			Condition:      it.Condition,
			TotalQuantity:  it.TotalQuantity,
			FulfillableQty: it.FulfillableQty,
			InboundQty:     it.InboundQty,
			ReservedQty:    it.ReservedQty,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{"asin", "product_name", "item_condition", "total_quantity", "fulfillable_qty", "inbound_qty", "reserved_qty", "updated_at"}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to upsert inventory summaries: %w", err)
	}
	return nil
}

// ListSKUs returns the SKUs currently known for a tenant.
func (s *inventoryStore) ListSKUs(ctx context.Context, tenantID string) ([]string, error) {
	var skus []string
	err := s.db.WithContext(ctx).
		Model(&InventoryItem{}).
		Where("tenant_id = ?", tenantID).
		Order("sku").
		Pluck("sku", &skus).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list SKUs: %w", err)
	}
	return skus, nil
}

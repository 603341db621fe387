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

// PriceRecord is the persisted current price for one SKU.
type PriceRecord struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	TenantID     string    `gorm:"column:tenant_id;size:64;not null;uniqueIndex:uk_tenant_price_sku,priority:1"`
	SKU          string    `gorm:"column:sku;size:128;not null;uniqueIndex:uk_tenant_price_sku,priority:2"`
	ASIN         string    `gorm:"column:asin;size:16"`
	Status       string    `gorm:"column:status;size:32"`
	ListingPrice float64   `gorm:"column:listing_price"`
	ShippingCost float64   `gorm:"column:shipping_cost"`
	LandedPrice  float64   `gorm:"column:landed_price"`
	Currency     string    `gorm:"column:currency;size:8"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the table name.
func (PriceRecord) TableName() string {
	return "price_points"
}

// pricingStore implements biz.PricingStore on GORM.
type pricingStore struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewPricingStore creates the pricing persistence layer.
func NewPricingStore(db *gorm.DB, logger log.Logger) biz.PricingStore {
	return &pricingStore{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// UpsertPrices inserts or updates price points keyed by (tenant, sku).
func (s *pricingStore) UpsertPrices(ctx context.Context, tenantID string, prices []*biz.PricePoint) error {
	if len(prices) == 0 {
		return nil
	}

	records := make([]PriceRecord, 0, len(prices))
	for _, p := range prices {
		records = append(records, PriceRecord{
			TenantID:     tenantID,
			SKU:          p.SKU,
			ASIN:         p.ASIN,
			Status:       p.Status,
			ListingPrice: p.ListingPrice,
			ShippingCost: p.ShippingCost,
			LandedPrice:  p.LandedPrice,
			Currency:     p.Currency,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{"asin", "status", "listing_price", "shipping_cost", "landed_price", "currency", "updated_at"}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to upsert price points: %w", err)
	}
	return nil
}

package biz

import (
	"context"
	"time"

	"sellersync/internal/model"
)

// CredentialRepo is the external credential store. The core reads records at
// bootstrap and on tenant add, and writes back only the refreshed access
// token and expiry.
type CredentialRepo interface {
	// ListActive returns credentials for every active tenant.
	ListActive(ctx context.Context) ([]*model.Credentials, error)

	// Get returns one tenant's credentials.
	Get(ctx context.Context, tenantID string) (*model.Credentials, error)

	// UpdateAccessToken persists a refreshed access token and its expiry.
	// The refresh token is never rewritten.
	UpdateAccessToken(ctx context.Context, tenantID, accessToken string, expiry time.Time) error

	// MarkUnhealthy flags a tenant whose refresh token was rejected.
	MarkUnhealthy(ctx context.Context, tenantID, reason string) error
}

// TokenCache is an optional shared cache mirroring access tokens (Redis in
// production). Implementations must tolerate a nil/unavailable backend by
// returning ErrTokenCacheMiss.
type TokenCache interface {
	GetToken(ctx context.Context, tenantID string) (token string, expiry time.Time, err error)
	SetToken(ctx context.Context, tenantID, token string, expiry time.Time) error
	DeleteToken(ctx context.Context, tenantID string) error
}

// MetricsRecorder receives one record per terminal request outcome and the
// per-tenant sync reports. Recording is best-effort; implementations log and
// swallow their own failures.
type MetricsRecorder interface {
	RecordRequest(ctx context.Context, m *model.RequestMetric)
	RecordSyncReport(ctx context.Context, r *model.TenantSyncReport)
}

// EventPublisher pushes sync-completion events to external consumers
// (dashboard metrics, notification fan-out).
type EventPublisher interface {
	PublishSyncCompleted(ctx context.Context, ev *model.SyncCompletedEvent) error
}

// Notifier escalates conditions that need out-of-band attention.
type Notifier interface {
	NotifyAuthFailure(ctx context.Context, ev *model.AuthFailureEvent) error
	NotifyLowStock(ctx context.Context, ev *model.LowStockEvent) error
}

// OrderStore persists synced order state.
type OrderStore interface {
	UpsertOrders(ctx context.Context, tenantID string, orders []*Order) error
	UpsertOrderItems(ctx context.Context, tenantID, orderID string, items []*OrderItem) error
	// LastUpdatedAfter returns the sync watermark for incremental pulls.
	LastUpdatedAfter(ctx context.Context, tenantID string) (time.Time, error)
	SetLastUpdatedAfter(ctx context.Context, tenantID string, t time.Time) error
}

// InventoryStore persists synced inventory state.
type InventoryStore interface {
	UpsertSummaries(ctx context.Context, tenantID string, items []*InventorySummary) error
	// ListSKUs returns the SKUs currently known for a tenant. The pricing
	// stage reads these, which is why inventory must sync first.
	ListSKUs(ctx context.Context, tenantID string) ([]string, error)
}

// PricingStore persists synced price points.
type PricingStore interface {
	UpsertPrices(ctx context.Context, tenantID string, prices []*PricePoint) error
}

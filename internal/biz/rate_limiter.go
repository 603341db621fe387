package biz

import (
	"context"
	"strings"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/time/rate"
)

// Operation categories with independently published rate limits.
const (
	CategoryOrders        = "orders"
	CategoryCatalog       = "catalog"
	CategoryInventory     = "inventory"
	CategoryPricing       = "pricing"
	CategoryReports       = "reports"
	CategoryNotifications = "notifications"
	CategoryDefault       = "default"
)

// CategoryLimit is a published rate/burst pair for one operation category.
type CategoryLimit struct {
	// Rate is tokens per second.
	Rate float64
	// Burst is the bucket capacity.
	Burst int
}

// categoryLimits holds the published per-category limits. Unknown categories
// fall back to the conservative default.
var categoryLimits = map[string]CategoryLimit{
	CategoryOrders:        {Rate: 1.0, Burst: 20},
	CategoryCatalog:       {Rate: 2.0, Burst: 20},
	CategoryInventory:     {Rate: 2.0, Burst: 30},
	CategoryPricing:       {Rate: 0.5, Burst: 10},
	CategoryReports:       {Rate: 0.5, Burst: 15},
	CategoryNotifications: {Rate: 1.0, Burst: 5},
	CategoryDefault:       {Rate: 0.5, Burst: 5},
}

// LimitForCategory returns the published limit for a category, falling back
// to the default for unknown names.
func LimitForCategory(category string) CategoryLimit {
	if l, ok := categoryLimits[category]; ok {
		return l
	}
	return categoryLimits[CategoryDefault]
}

// CategoryForPath derives the operation category from an API path.
func CategoryForPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/orders/"):
		return CategoryOrders
	case strings.HasPrefix(path, "/catalog/"):
		return CategoryCatalog
	case strings.HasPrefix(path, "/fba/inventory/"):
		return CategoryInventory
	case strings.Contains(path, "/products/pricing/"):
		return CategoryPricing
	case strings.HasPrefix(path, "/reports/"):
		return CategoryReports
	case strings.HasPrefix(path, "/notifications/"):
		return CategoryNotifications
	default:
		return CategoryDefault
	}
}

// RateLimiter owns the token buckets for one tenant, one bucket per operation
// category. Buckets refill lazily from elapsed wall-clock time (no background
// timer) and are created on first use. Safe for concurrent use.
type RateLimiter struct {
	tenantID string
	logger   *log.Helper

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewRateLimiter creates the per-tenant rate limiter.
func NewRateLimiter(tenantID string, logger log.Logger) *RateLimiter {
	return &RateLimiter{
		tenantID: tenantID,
		logger:   log.NewHelper(logger),
		buckets:  make(map[string]*rate.Limiter),
	}
}

// bucket returns the limiter for a category, creating it on first use.
func (l *RateLimiter) bucket(category string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[category]; ok {
		return b
	}

	limit := LimitForCategory(category)
	b := rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst)
	l.buckets[category] = b
	return b
}

// TryAcquire consumes one token without blocking. Returns false when the
// bucket is empty.
func (l *RateLimiter) TryAcquire(category string) bool {
	return l.bucket(category).Allow()
}

// WaitForToken blocks until a token is available or ctx is done. It never
// busy-spins; the wait is timer-driven and cancellable.
func (l *RateLimiter) WaitForToken(ctx context.Context, category string) error {
	if err := l.bucket(category).Wait(ctx); err != nil {
		l.logger.Debugw("rate limit wait aborted",
			"tenant_id", l.tenantID,
			"category", category,
			"error", err)
		return err
	}
	return nil
}

// Remaining reports the current token count per category. Categories that
// have never been used report their full burst.
func (l *RateLimiter) Remaining() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]float64, len(categoryLimits))
	for category, limit := range categoryLimits {
		if b, ok := l.buckets[category]; ok {
			out[category] = b.Tokens()
		} else {
			out[category] = float64(limit.Burst)
		}
	}
	return out
}

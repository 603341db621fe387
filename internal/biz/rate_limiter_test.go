package biz

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRateLimiter() *RateLimiter {
	return NewRateLimiter("tenant-1", log.NewStdLogger(os.Stdout))
}

// Test CategoryForPath - path to category mapping
func TestCategoryForPath(t *testing.T) {
	cases := map[string]string{
		"/orders/v0/orders":                     CategoryOrders,
		"/orders/v0/orders/123/orderItems":      CategoryOrders,
		"/catalog/v0/items":                     CategoryCatalog,
		"/fba/inventory/v1/summaries":           CategoryInventory,
		"/products/pricing/v0/price":            CategoryPricing,
		"/reports/2021-06-30/reports":           CategoryReports,
		"/notifications/v1/subscriptions":       CategoryNotifications,
		"/sellers/v1/marketplaceParticipations": CategoryDefault,
		"": CategoryDefault,
	}
	for path, want := range cases {
		assert.Equal(t, want, CategoryForPath(path), "path %q", path)
	}
}

// Test LimitForCategory - unknown categories fall back to default
func TestLimitForCategory_UnknownFallsBack(t *testing.T) {
	def := LimitForCategory(CategoryDefault)
	assert.Equal(t, def, LimitForCategory("no-such-category"))

	orders := LimitForCategory(CategoryOrders)
	assert.Equal(t, 1.0, orders.Rate)
	assert.Equal(t, 20, orders.Burst)
}

// Test TryAcquire - burst capacity is available immediately, then the bucket
// is empty
func TestTryAcquire_BurstThenEmpty(t *testing.T) {
	l := newTestRateLimiter()

	burst := LimitForCategory(CategoryNotifications).Burst
	for i := 0; i < burst; i++ {
		require.True(t, l.TryAcquire(CategoryNotifications), "token %d should be available", i)
	}
	assert.False(t, l.TryAcquire(CategoryNotifications), "bucket should be empty after burst")
}

// Test TryAcquire - categories do not share buckets
func TestTryAcquire_CategoriesIndependent(t *testing.T) {
	l := newTestRateLimiter()

	burst := LimitForCategory(CategoryDefault).Burst
	for i := 0; i < burst; i++ {
		require.True(t, l.TryAcquire(CategoryDefault))
	}
	require.False(t, l.TryAcquire(CategoryDefault))

	// Draining default must not affect orders.
	assert.True(t, l.TryAcquire(CategoryOrders))
}

// Test WaitForToken - returns promptly while tokens remain
func TestWaitForToken_Immediate(t *testing.T) {
	l := newTestRateLimiter()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := l.WaitForToken(ctx, CategoryOrders)
	assert.NoError(t, err)
}

// Test WaitForToken - context cancellation aborts the wait
func TestWaitForToken_ContextCancelled(t *testing.T) {
	l := newTestRateLimiter()

	// Drain the bucket so the next wait would block.
	burst := LimitForCategory(CategoryPricing).Burst
	for i := 0; i < burst; i++ {
		require.True(t, l.TryAcquire(CategoryPricing))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.WaitForToken(ctx, CategoryPricing)
	assert.Error(t, err)
}

// Test Remaining - unused categories report full burst, drained ones near zero
func TestRemaining(t *testing.T) {
	l := newTestRateLimiter()

	before := l.Remaining()
	assert.Equal(t, float64(LimitForCategory(CategoryOrders).Burst), before[CategoryOrders])

	burst := LimitForCategory(CategoryOrders).Burst
	for i := 0; i < burst; i++ {
		require.True(t, l.TryAcquire(CategoryOrders))
	}

	after := l.Remaining()
	assert.Less(t, after[CategoryOrders], 1.0)
	// Untouched category still reports full burst.
	assert.Equal(t, float64(LimitForCategory(CategoryInventory).Burst), after[CategoryInventory])
}

package biz

import (
	"context"
	"time"

	"sellersync/internal/model"

	"github.com/stretchr/testify/mock"
)

// MockCredentialRepo is a mock implementation of CredentialRepo for testing.
type MockCredentialRepo struct {
	mock.Mock
}

func (m *MockCredentialRepo) ListActive(ctx context.Context) ([]*model.Credentials, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Credentials), args.Error(1)
}

func (m *MockCredentialRepo) Get(ctx context.Context, tenantID string) (*model.Credentials, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credentials), args.Error(1)
}

func (m *MockCredentialRepo) UpdateAccessToken(ctx context.Context, tenantID, accessToken string, expiry time.Time) error {
	args := m.Called(ctx, tenantID, accessToken, expiry)
	return args.Error(0)
}

func (m *MockCredentialRepo) MarkUnhealthy(ctx context.Context, tenantID, reason string) error {
	args := m.Called(ctx, tenantID, reason)
	return args.Error(0)
}

// MockMetricsRecorder is a mock implementation of MetricsRecorder for testing.
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordRequest(ctx context.Context, rm *model.RequestMetric) {
	m.Called(ctx, rm)
}

func (m *MockMetricsRecorder) RecordSyncReport(ctx context.Context, r *model.TenantSyncReport) {
	m.Called(ctx, r)
}

// MockNotifier is a mock implementation of Notifier for testing.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyAuthFailure(ctx context.Context, ev *model.AuthFailureEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockNotifier) NotifyLowStock(ctx context.Context, ev *model.LowStockEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishSyncCompleted(ctx context.Context, ev *model.SyncCompletedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// MockOrderStore is a mock implementation of OrderStore for testing.
type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) UpsertOrders(ctx context.Context, tenantID string, orders []*Order) error {
	args := m.Called(ctx, tenantID, orders)
	return args.Error(0)
}

func (m *MockOrderStore) UpsertOrderItems(ctx context.Context, tenantID, orderID string, items []*OrderItem) error {
	args := m.Called(ctx, tenantID, orderID, items)
	return args.Error(0)
}

func (m *MockOrderStore) LastUpdatedAfter(ctx context.Context, tenantID string) (time.Time, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockOrderStore) SetLastUpdatedAfter(ctx context.Context, tenantID string, t time.Time) error {
	args := m.Called(ctx, tenantID, t)
	return args.Error(0)
}

// MockInventoryStore is a mock implementation of InventoryStore for testing.
type MockInventoryStore struct {
	mock.Mock
}

func (m *MockInventoryStore) UpsertSummaries(ctx context.Context, tenantID string, items []*InventorySummary) error {
	args := m.Called(ctx, tenantID, items)
	return args.Error(0)
}

func (m *MockInventoryStore) ListSKUs(ctx context.Context, tenantID string) ([]string, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockPricingStore is a mock implementation of PricingStore for testing.
type MockPricingStore struct {
	mock.Mock
}

func (m *MockPricingStore) UpsertPrices(ctx context.Context, tenantID string, prices []*PricePoint) error {
	args := m.Called(ctx, tenantID, prices)
	return args.Error(0)
}

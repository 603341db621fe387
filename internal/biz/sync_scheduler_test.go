package biz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"sellersync/internal/conf"
	"sellersync/internal/model"
	"sellersync/pkg/signer"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// marketplaceStub serves minimal valid payloads for all three domains.
func marketplaceStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/orders/v0/orders/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/orderItems") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"payload":{"OrderItems":[
			{"OrderItemId":"item-1","SellerSKU":"SKU-A","ASIN":"B000000001","Title":"Widget","QuantityOrdered":2}
		],"NextToken":""}}`))
	})
	mux.HandleFunc("/orders/v0/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("LastUpdatedAfter"))
		_, _ = w.Write([]byte(`{"payload":{"Orders":[
			{"AmazonOrderId":"111-0000001","OrderStatus":"Shipped","FulfillmentChannel":"AFN"}
		],"NextToken":""}}`))
	})
	mux.HandleFunc("/fba/inventory/v1/summaries", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"payload":{"inventorySummaries":[
			{"sellerSku":"SKU-A","asin":"B000000001","totalQuantity":50,"fulfillableQuantity":42},
			{"sellerSku":"SKU-B","asin":"B000000002","totalQuantity":3,"fulfillableQuantity":2}
		]},"pagination":{"nextToken":""}}`))
	})
	mux.HandleFunc("/products/pricing/v0/price", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Sku", r.URL.Query().Get("ItemType"))
		_, _ = w.Write([]byte(`{"payload":[
			{"status":"Success","SellerSKU":"SKU-A","ASIN":"B000000001","Product":{"Offers":[
				{"BuyingPrice":{"ListingPrice":{"Amount":19.99,"CurrencyCode":"USD"},
				"Shipping":{"Amount":0},"LandedPrice":{"Amount":19.99}}}]}},
			{"status":"Success","SellerSKU":"SKU-B","ASIN":"B000000002","Product":{"Offers":[]}}
		]}`))
	})

	return httptest.NewServer(mux)
}

// schedulerFixture wires a scheduler against the stub with one registered
// tenant per ID given.
type schedulerFixture struct {
	scheduler *SyncScheduler
	registry  *ClientRegistry
	repo      *MockCredentialRepo
	orders    *MockOrderStore
	inventory *MockInventoryStore
	pricing   *MockPricingStore
	metrics   *MockMetricsRecorder
	events    *MockEventPublisher
	notifier  *MockNotifier
	sleeps    *[]time.Duration
}

func newSchedulerFixture(t *testing.T, apiURL string, tenantIDs ...string) *schedulerFixture {
	t.Helper()
	logger := log.NewStdLogger(os.Stdout)

	f := &schedulerFixture{
		repo:      new(MockCredentialRepo),
		orders:    new(MockOrderStore),
		inventory: new(MockInventoryStore),
		pricing:   new(MockPricingStore),
		metrics:   new(MockMetricsRecorder),
		events:    new(MockEventPublisher),
		notifier:  new(MockNotifier),
	}

	tm, err := NewTokenManager(f.repo, nil, &conf.Marketplace{TokenEndpoint: "http://127.0.0.1:1/token"}, logger)
	require.NoError(t, err)

	registry, err := NewClientRegistry(f.repo, tm, signer.New("execute-api"), nil, &conf.Marketplace{RequestTimeout: 5 * time.Second}, logger)
	require.NoError(t, err)
	f.registry = registry

	for _, id := range tenantIDs {
		creds := testCredentials()
		creds.TenantID = id
		tm.store(id, "valid-token", time.Now().Add(time.Hour))

		client := NewClient(creds, tm, signer.New("execute-api"), nil, 5*time.Second, logger)
		client.endpoint.BaseURL = apiURL
		registry.clients[id] = client
	}

	sc := &conf.Sync{
		InterTenantDelay:  2 * time.Second,
		TenantTimeout:     time.Minute,
		LowStockThreshold: 5,
	}

	ordersSvc := NewOrdersService(f.orders, logger)
	inventorySvc := NewInventoryService(f.inventory, f.notifier, sc, logger)
	pricingSvc := NewPricingService(f.inventory, f.pricing, logger)

	f.scheduler = NewSyncScheduler(registry, ordersSvc, inventorySvc, pricingSvc,
		f.repo, f.metrics, f.events, f.notifier, sc, logger)

	var sleeps []time.Duration
	f.sleeps = &sleeps
	f.scheduler.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return f
}

// expectHappyPath registers the store and sink expectations for a clean run.
func (f *schedulerFixture) expectHappyPath(tenantID string) {
	f.orders.On("LastUpdatedAfter", mock.Anything, tenantID).Return(time.Time{}, nil)
	f.orders.On("UpsertOrders", mock.Anything, tenantID, mock.Anything).Return(nil)
	f.orders.On("UpsertOrderItems", mock.Anything, tenantID, "111-0000001", mock.Anything).Return(nil)
	f.orders.On("SetLastUpdatedAfter", mock.Anything, tenantID, mock.Anything).Return(nil)

	f.inventory.On("UpsertSummaries", mock.Anything, tenantID, mock.Anything).Return(nil)
	f.inventory.On("ListSKUs", mock.Anything, tenantID).Return([]string{"SKU-A", "SKU-B"}, nil)

	f.pricing.On("UpsertPrices", mock.Anything, tenantID, mock.Anything).Return(nil)

	f.notifier.On("NotifyLowStock", mock.Anything, mock.Anything).Return(nil)
	f.metrics.On("RecordSyncReport", mock.Anything, mock.Anything).Return()
	f.events.On("PublishSyncCompleted", mock.Anything, mock.Anything).Return(nil)
}

// Test SyncTenant - all three domains run in order and the report succeeds
func TestSyncTenant_AllDomains(t *testing.T) {
	srv := marketplaceStub(t)
	defer srv.Close()

	f := newSchedulerFixture(t, srv.URL, "tenant-1")
	f.expectHappyPath("tenant-1")

	report := f.scheduler.SyncTenant(context.Background(), "tenant-1")

	require.True(t, report.Success(), "report: %+v", report)
	require.Len(t, report.Results, 3)
	assert.Equal(t, model.DomainOrders, report.Results[0].Domain)
	assert.Equal(t, model.DomainInventory, report.Results[1].Domain)
	assert.Equal(t, model.DomainPricing, report.Results[2].Domain)
	assert.Equal(t, 1, report.Results[0].ItemsProcessed)
	assert.Equal(t, 2, report.Results[1].ItemsProcessed)
	assert.Equal(t, 2, report.Results[2].ItemsProcessed)

	// SKU-B is at quantity 2, under the threshold of 5.
	f.notifier.AssertCalled(t, "NotifyLowStock", mock.Anything, mock.MatchedBy(func(ev *model.LowStockEvent) bool {
		return ev.SKU == "SKU-B" && ev.Available == 2
	}))

	f.metrics.AssertNumberOfCalls(t, "RecordSyncReport", 1)
	f.events.AssertCalled(t, "PublishSyncCompleted", mock.Anything, mock.MatchedBy(func(ev *model.SyncCompletedEvent) bool {
		return ev.TenantID == "tenant-1" && ev.Success && ev.Items == 5
	}))

	recent, ok := f.registry.RecentReport("tenant-1")
	require.True(t, ok)
	assert.Equal(t, report, recent)
}

// Test SyncTenant - unregistered tenants fail fast
func TestSyncTenant_NotRegistered(t *testing.T) {
	srv := marketplaceStub(t)
	defer srv.Close()

	f := newSchedulerFixture(t, srv.URL)
	f.metrics.On("RecordSyncReport", mock.Anything, mock.Anything).Return()
	f.events.On("PublishSyncCompleted", mock.Anything, mock.Anything).Return(nil)

	report := f.scheduler.SyncTenant(context.Background(), "tenant-ghost")
	assert.False(t, report.Success())
	assert.Equal(t, "tenant not registered", report.FailureReason)
}

// Test SyncTenant - a permanent auth failure aborts remaining domains, marks
// the tenant, and notifies
func TestSyncTenant_AuthFailureAborts(t *testing.T) {
	srv := marketplaceStub(t)
	defer srv.Close()

	f := newSchedulerFixture(t, srv.URL, "tenant-1")

	// Invalidate the token and make refresh impossible: the first domain call
	// surfaces a permanent auth failure.
	f.scheduler.registry.clients["tenant-1"].tokens.Invalidate(context.Background(), "tenant-1")
	deadCreds := testCredentials()
	deadCreds.RefreshToken = ""
	f.repo.On("Get", mock.Anything, "tenant-1").Return(deadCreds, nil)
	f.repo.On("MarkUnhealthy", mock.Anything, "tenant-1", mock.Anything).Return(nil)

	f.orders.On("LastUpdatedAfter", mock.Anything, "tenant-1").Return(time.Time{}, nil)
	f.notifier.On("NotifyAuthFailure", mock.Anything, mock.Anything).Return(nil)
	f.metrics.On("RecordSyncReport", mock.Anything, mock.Anything).Return()
	f.events.On("PublishSyncCompleted", mock.Anything, mock.Anything).Return(nil)

	report := f.scheduler.SyncTenant(context.Background(), "tenant-1")

	assert.True(t, report.AuthFailed)
	assert.Equal(t, ErrClassPermanentAuth, report.FailureReason)

	f.repo.AssertCalled(t, "MarkUnhealthy", mock.Anything, "tenant-1", mock.Anything)
	f.notifier.AssertCalled(t, "NotifyAuthFailure", mock.Anything, mock.MatchedBy(func(ev *model.AuthFailureEvent) bool {
		return ev.TenantID == "tenant-1"
	}))
	// Inventory and pricing must not have run.
	f.inventory.AssertNotCalled(t, "UpsertSummaries", mock.Anything, mock.Anything, mock.Anything)
	f.pricing.AssertNotCalled(t, "UpsertPrices", mock.Anything, mock.Anything, mock.Anything)
}

// Test SyncAllTenants - tenants run in order with the configured delay
// between them
func TestSyncAllTenants_DelayBetweenTenants(t *testing.T) {
	srv := marketplaceStub(t)
	defer srv.Close()

	f := newSchedulerFixture(t, srv.URL, "tenant-1", "tenant-2")
	f.expectHappyPath("tenant-1")
	f.expectHappyPath("tenant-2")

	summary := f.scheduler.SyncAllTenants(context.Background())

	assert.Equal(t, []string{"tenant-1", "tenant-2"}, summary.Succeeded)
	assert.Empty(t, summary.Failed)
	// One delay, between the two tenants, not before the first.
	require.Len(t, *f.sleeps, 1)
	assert.Equal(t, 2*time.Second, (*f.sleeps)[0])
}

// Test SyncAllTenants - one tenant's total failure never blocks the rest
func TestSyncAllTenants_PartialFailure(t *testing.T) {
	srv := marketplaceStub(t)
	defer srv.Close()

	f := newSchedulerFixture(t, srv.URL, "tenant-1", "tenant-2")
	f.expectHappyPath("tenant-2")

	// tenant-1 cannot refresh: permanent auth failure.
	f.scheduler.registry.clients["tenant-1"].tokens.Invalidate(context.Background(), "tenant-1")
	deadCreds := testCredentials()
	deadCreds.RefreshToken = ""
	f.repo.On("Get", mock.Anything, "tenant-1").Return(deadCreds, nil)
	f.repo.On("MarkUnhealthy", mock.Anything, "tenant-1", mock.Anything).Return(nil)
	f.orders.On("LastUpdatedAfter", mock.Anything, "tenant-1").Return(time.Time{}, nil)
	f.notifier.On("NotifyAuthFailure", mock.Anything, mock.Anything).Return(nil)

	summary := f.scheduler.SyncAllTenants(context.Background())

	assert.Equal(t, []string{"tenant-2"}, summary.Succeeded)
	assert.Equal(t, map[string]string{"tenant-1": ErrClassPermanentAuth}, summary.Failed)
}

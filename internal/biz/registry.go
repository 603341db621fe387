package biz

import (
	"context"
	"sort"
	"sync"
	"time"

	"sellersync/internal/conf"
	"sellersync/internal/model"
	"sellersync/pkg/signer"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// recentReportCap bounds the in-memory recent-report cache.
const recentReportCap = 128

// ClientRegistry owns the per-tenant client handles. Bootstrap builds one
// handle per active credential record, health-checks it, and registers only
// the ones that pass. Tenants can be added and removed at runtime.
type ClientRegistry struct {
	repo    CredentialRepo
	tokens  *TokenManager
	signer  *signer.RequestSigner
	metrics MetricsRecorder
	mc      *conf.Marketplace
	rawLog  log.Logger
	logger  *log.Helper

	mu      sync.RWMutex
	clients map[string]*Client

	// recent keeps the last sync report per tenant for the health surface.
	recent *lru.Cache[string, *model.TenantSyncReport]
}

// NewClientRegistry creates an empty registry. Call Bootstrap to populate it.
func NewClientRegistry(repo CredentialRepo, tokens *TokenManager, sg *signer.RequestSigner, metrics MetricsRecorder, mc *conf.Marketplace, logger log.Logger) (*ClientRegistry, error) {
	recent, err := lru.New[string, *model.TenantSyncReport](recentReportCap)
	if err != nil {
		return nil, err
	}
	return &ClientRegistry{
		repo:    repo,
		tokens:  tokens,
		signer:  sg,
		metrics: metrics,
		mc:      mc,
		rawLog:  logger,
		logger:  log.NewHelper(logger),
		clients: make(map[string]*Client),
		recent:  recent,
	}, nil
}

// Bootstrap loads every active credential record and registers a client for
// each tenant that passes a health check. A tenant that fails is skipped and
// logged; one bad tenant never blocks the rest.
func (r *ClientRegistry) Bootstrap(ctx context.Context) error {
	creds, err := r.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	registered := 0
	for _, c := range creds {
		if ok := r.AddTenant(ctx, c); ok {
			registered++
		}
	}

	r.logger.Infow("client registry bootstrapped",
		"candidates", len(creds),
		"registered", registered)
	return nil
}

// AddTenant builds, health-checks, and registers a client for one tenant.
// Returns false when the health check fails; the tenant is not registered.
func (r *ClientRegistry) AddTenant(ctx context.Context, creds *model.Credentials) bool {
	client := NewClient(creds, r.tokens, r.signer, r.metrics, r.mc.RequestTimeout, r.rawLog)

	if err := r.healthCheck(ctx, client); err != nil {
		r.logger.Warnw("tenant failed health check, not registering",
			"tenant_id", creds.TenantID,
			"marketplace_id", creds.MarketplaceID,
			"error", err)
		return false
	}

	r.mu.Lock()
	r.clients[creds.TenantID] = client
	r.mu.Unlock()

	r.logger.Infow("tenant registered",
		"tenant_id", creds.TenantID,
		"marketplace_id", creds.MarketplaceID)
	return true
}

// RemoveTenant drops a tenant's client handle and invalidates its token.
func (r *ClientRegistry) RemoveTenant(ctx context.Context, tenantID string) {
	r.mu.Lock()
	_, existed := r.clients[tenantID]
	delete(r.clients, tenantID)
	r.mu.Unlock()

	if existed {
		r.tokens.Invalidate(ctx, tenantID)
		r.logger.Infow("tenant removed", "tenant_id", tenantID)
	}
}

// GetClient returns the client handle for a tenant.
func (r *ClientRegistry) GetClient(tenantID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[tenantID]
	return c, ok
}

// ActiveTenants returns the registered tenant IDs, sorted for stable
// iteration order.
func (r *ClientRegistry) ActiveTenants() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// RecordReport keeps the latest sync report for the health surface.
func (r *ClientRegistry) RecordReport(report *model.TenantSyncReport) {
	r.recent.Add(report.TenantID, report)
}

// RecentReport returns the last recorded sync report for a tenant.
func (r *ClientRegistry) RecentReport(tenantID string) (*model.TenantSyncReport, bool) {
	return r.recent.Get(tenantID)
}

// SystemHealth snapshots every registered tenant: breaker state and remaining
// rate-limit tokens per category. A tenant is healthy when its breaker is
// closed.
func (r *ClientRegistry) SystemHealth() *model.SystemHealth {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].TenantID() < clients[j].TenantID() })

	sh := &model.SystemHealth{
		TotalClients: len(clients),
		Tenants:      make([]model.TenantHealth, 0, len(clients)),
		GeneratedAt:  time.Now().UTC(),
	}
	for _, c := range clients {
		state := c.Breaker().State()
		healthy := state == BreakerClosed
		if healthy {
			sh.HealthyClients++
		} else {
			sh.UnhealthyClients++
		}
		sh.Tenants = append(sh.Tenants, model.TenantHealth{
			TenantID:        c.TenantID(),
			MarketplaceID:   c.MarketplaceID(),
			Healthy:         healthy,
			BreakerState:    state,
			RateLimitTokens: c.Limiter().Remaining(),
		})
	}
	return sh
}

// Shutdown drops all client handles.
func (r *ClientRegistry) Shutdown() {
	r.mu.Lock()
	n := len(r.clients)
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	r.logger.Infow("client registry shut down", "clients_dropped", n)
}

// healthCheck performs one lightweight authenticated call against the
// marketplace to verify the tenant's credentials and connectivity.
func (r *ClientRegistry) healthCheck(ctx context.Context, c *Client) error {
	path := r.mc.HealthCheckPath
	if path == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.mc.RequestTimeout)
	defer cancel()

	_, err := c.Get(ctx, path, nil)
	return err
}

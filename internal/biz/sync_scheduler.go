package biz

import (
	"context"
	"errors"
	"time"

	"sellersync/internal/conf"
	"sellersync/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// SyncScheduler drives the per-tenant sync pipeline: orders, then inventory,
// then pricing. Pricing depends on inventory's SKU writes, so the order is
// fixed. One tenant's failure never blocks the others.
type SyncScheduler struct {
	registry  *ClientRegistry
	orders    *OrdersService
	inventory *InventoryService
	pricing   *PricingService
	repo      CredentialRepo
	metrics   MetricsRecorder
	events    EventPublisher
	notifier  Notifier

	interTenantDelay time.Duration
	tenantTimeout    time.Duration
	logger           *log.Helper

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyncScheduler wires the sync pipeline.
func NewSyncScheduler(
	registry *ClientRegistry,
	orders *OrdersService,
	inventory *InventoryService,
	pricing *PricingService,
	repo CredentialRepo,
	metrics MetricsRecorder,
	events EventPublisher,
	notifier Notifier,
	sc *conf.Sync,
	logger log.Logger,
) *SyncScheduler {
	return &SyncScheduler{
		registry:         registry,
		orders:           orders,
		inventory:        inventory,
		pricing:          pricing,
		repo:             repo,
		metrics:          metrics,
		events:           events,
		notifier:         notifier,
		interTenantDelay: sc.InterTenantDelay,
		tenantTimeout:    sc.TenantTimeout,
		logger:           log.NewHelper(logger),
		sleep:            sleepCtx,
	}
}

// SyncTenant runs the full domain pipeline for one tenant. A permanent auth
// failure aborts the remaining domains, marks the tenant unhealthy, and
// notifies; any other domain failure is recorded and the next domain still
// runs.
func (s *SyncScheduler) SyncTenant(ctx context.Context, tenantID string) *model.TenantSyncReport {
	report := &model.TenantSyncReport{
		TenantID:  tenantID,
		StartedAt: time.Now().UTC(),
	}
	// The per-tenant timeout below must not cancel report persistence.
	baseCtx := ctx
	defer func() {
		report.FinishedAt = time.Now().UTC()
		s.registry.RecordReport(report)
		if s.metrics != nil {
			s.metrics.RecordSyncReport(baseCtx, report)
		}
		s.publishCompletion(baseCtx, report)
	}()

	client, ok := s.registry.GetClient(tenantID)
	if !ok {
		report.FailureReason = "tenant not registered"
		return report
	}

	if s.tenantTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.tenantTimeout)
		defer cancel()
	}

	stages := []struct {
		domain string
		run    func(context.Context, *Client) (*model.SyncResult, error)
	}{
		{model.DomainOrders, s.orders.Sync},
		{model.DomainInventory, s.inventory.Sync},
		{model.DomainPricing, s.pricing.Sync},
	}

	for _, stage := range stages {
		result, err := stage.run(ctx, client)
		if result != nil {
			report.Results = append(report.Results, *result)
		}
		if err == nil {
			continue
		}

		var authErr *PermanentAuthError
		if errors.As(err, &authErr) {
			s.handleAuthFailure(ctx, report, authErr)
			return report
		}

		// Transient, circuit-open, or API failure in one domain: record it
		// and keep going. The next domain may still succeed.
		s.logger.Warnw("domain sync failed",
			"tenant_id", tenantID,
			"domain", stage.domain,
			"error_class", ClassifyError(err),
			"error", err)
		if result == nil {
			report.Results = append(report.Results, model.SyncResult{
				Domain: stage.domain,
				Errors: []string{err.Error()},
			})
		} else if !result.Failed() {
			last := &report.Results[len(report.Results)-1]
			last.Errors = append(last.Errors, err.Error())
		}
	}

	s.logger.Infow("tenant sync finished",
		"tenant_id", tenantID,
		"items", report.TotalItems(),
		"success", report.Success())
	return report
}

// SyncAllTenants runs SyncTenant for every registered tenant with the
// configured delay between tenants. It never halts early: every tenant gets
// its turn unless the context is cancelled.
func (s *SyncScheduler) SyncAllTenants(ctx context.Context) *model.SyncSummary {
	summary := &model.SyncSummary{
		StartedAt: time.Now().UTC(),
		Failed:    make(map[string]string),
	}

	tenants := s.registry.ActiveTenants()
	s.logger.Infow("all-tenant sync started", "tenants", len(tenants))

	for i, tenantID := range tenants {
		if i > 0 && s.interTenantDelay > 0 {
			if err := s.sleep(ctx, s.interTenantDelay); err != nil {
				s.logger.Warnw("all-tenant sync cancelled", "error", err)
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		report := s.SyncTenant(ctx, tenantID)
		if report.FailureReason != "" {
			summary.Failed[tenantID] = report.FailureReason
		} else {
			summary.Succeeded = append(summary.Succeeded, tenantID)
		}
	}

	summary.FinishedAt = time.Now().UTC()
	s.logger.Infow("all-tenant sync finished",
		"succeeded", len(summary.Succeeded),
		"failed", len(summary.Failed),
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt))
	return summary
}

// handleAuthFailure marks the tenant, notifies, and closes out the report.
func (s *SyncScheduler) handleAuthFailure(ctx context.Context, report *model.TenantSyncReport, authErr *PermanentAuthError) {
	report.AuthFailed = true
	report.FailureReason = ErrClassPermanentAuth

	s.logger.Errorw("tenant sync aborted on permanent auth failure",
		"tenant_id", report.TenantID,
		"reason", authErr.Reason)

	if err := s.repo.MarkUnhealthy(ctx, report.TenantID, authErr.Reason); err != nil {
		s.logger.Warnw("failed to mark tenant unhealthy",
			"tenant_id", report.TenantID,
			"error", err)
	}

	if s.notifier != nil {
		ev := &model.AuthFailureEvent{
			TenantID:   report.TenantID,
			Reason:     authErr.Reason,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.notifier.NotifyAuthFailure(ctx, ev); err != nil {
			s.logger.Warnw("auth failure notification failed",
				"tenant_id", report.TenantID,
				"error", err)
		}
	}
}

// publishCompletion emits the sync-completion event, best-effort.
func (s *SyncScheduler) publishCompletion(ctx context.Context, report *model.TenantSyncReport) {
	if s.events == nil {
		return
	}
	ev := &model.SyncCompletedEvent{
		TenantID:   report.TenantID,
		Success:    report.Success(),
		Items:      report.TotalItems(),
		Domains:    len(report.Results),
		FinishedAt: report.FinishedAt,
		Reason:     report.FailureReason,
	}
	if err := s.events.PublishSyncCompleted(ctx, ev); err != nil {
		s.logger.Warnw("sync event publish failed",
			"tenant_id", report.TenantID,
			"error", err)
	}
}

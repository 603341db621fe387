// Package service exposes the operational surface: health, tenant
// lifecycle, and manual sync triggers.
package service

import (
	"context"

	"sellersync/internal/biz"
	"sellersync/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewSystemService)

// SystemService is the operational API over the registry and scheduler.
type SystemService struct {
	registry  *biz.ClientRegistry
	scheduler *biz.SyncScheduler
	repo      biz.CredentialRepo
	logger    *log.Helper
}

// NewSystemService creates the operational service.
func NewSystemService(registry *biz.ClientRegistry, scheduler *biz.SyncScheduler, repo biz.CredentialRepo, logger log.Logger) *SystemService {
	return &SystemService{
		registry:  registry,
		scheduler: scheduler,
		repo:      repo,
		logger:    log.NewHelper(logger),
	}
}

// SystemHealth returns the registry-wide health snapshot.
func (s *SystemService) SystemHealth(_ context.Context) *model.SystemHealth {
	return s.registry.SystemHealth()
}

// TenantReport returns the most recent sync report for a tenant.
func (s *SystemService) TenantReport(_ context.Context, tenantID string) (*model.TenantSyncReport, error) {
	if _, ok := s.registry.GetClient(tenantID); !ok {
		return nil, kerrors.NotFound("TENANT_NOT_FOUND", "tenant is not registered")
	}
	report, ok := s.registry.RecentReport(tenantID)
	if !ok {
		return nil, kerrors.NotFound("REPORT_NOT_FOUND", "no sync has run for this tenant yet")
	}
	return report, nil
}

// ActivateTenant loads a tenant's stored credentials and registers a client
// for it. Used after onboarding writes the credential row.
func (s *SystemService) ActivateTenant(ctx context.Context, tenantID string) error {
	s.logger.Infow("ActivateTenant called", "tenant_id", tenantID)

	creds, err := s.repo.Get(ctx, tenantID)
	if err != nil {
		return kerrors.NotFound("CREDENTIALS_NOT_FOUND", err.Error())
	}
	if ok := s.registry.AddTenant(ctx, creds); !ok {
		return kerrors.New(400, "HEALTH_CHECK_FAILED", "tenant failed the marketplace health check")
	}
	return nil
}

// DeactivateTenant removes a tenant's client handle.
func (s *SystemService) DeactivateTenant(ctx context.Context, tenantID string) error {
	s.logger.Infow("DeactivateTenant called", "tenant_id", tenantID)

	if _, ok := s.registry.GetClient(tenantID); !ok {
		return kerrors.NotFound("TENANT_NOT_FOUND", "tenant is not registered")
	}
	s.registry.RemoveTenant(ctx, tenantID)
	return nil
}

// SyncTenant runs a full sync for one tenant and returns the report.
func (s *SystemService) SyncTenant(ctx context.Context, tenantID string) (*model.TenantSyncReport, error) {
	s.logger.Infow("SyncTenant called", "tenant_id", tenantID)

	if _, ok := s.registry.GetClient(tenantID); !ok {
		return nil, kerrors.NotFound("TENANT_NOT_FOUND", "tenant is not registered")
	}
	return s.scheduler.SyncTenant(ctx, tenantID), nil
}

// SyncAllTenants kicks off an all-tenant sync in the background.
func (s *SystemService) SyncAllTenants(_ context.Context) {
	s.logger.Info("SyncAllTenants called, starting background run")

	go func() {
		summary := s.scheduler.SyncAllTenants(context.Background())
		s.logger.Infow("background all-tenant sync done",
			"succeeded", len(summary.Succeeded),
			"failed", len(summary.Failed))
	}()
}

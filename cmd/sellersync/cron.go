package main

import (
	"context"
	"fmt"

	"sellersync/internal/biz"
	"sellersync/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// syncRunner bootstraps the client registry and drives the scheduled
// all-tenant sync. It plugs into the Kratos app lifecycle as a transport
// server so startup and shutdown ordering come for free.
type syncRunner struct {
	registry  *biz.ClientRegistry
	scheduler *biz.SyncScheduler
	spec      string
	logger    *log.Helper

	cron *cron.Cron
}

// newSyncRunner creates the sync runner.
func newSyncRunner(registry *biz.ClientRegistry, scheduler *biz.SyncScheduler, sc *conf.Sync, logger log.Logger) *syncRunner {
	return &syncRunner{
		registry:  registry,
		scheduler: scheduler,
		spec:      sc.CronSpec,
		logger:    log.NewHelper(logger),
	}
}

// Start bootstraps the registry and schedules the recurring sync.
func (r *syncRunner) Start(ctx context.Context) error {
	if err := r.registry.Bootstrap(ctx); err != nil {
		return fmt.Errorf("registry bootstrap failed: %w", err)
	}

	r.cron = cron.New(cron.WithSeconds())
	_, err := r.cron.AddFunc(r.spec, func() {
		r.logger.Info("scheduled all-tenant sync starting")
		summary := r.scheduler.SyncAllTenants(context.Background())
		r.logger.Infow("scheduled all-tenant sync finished",
			"succeeded", len(summary.Succeeded),
			"failed", len(summary.Failed))
	})
	if err != nil {
		return fmt.Errorf("failed to register sync cron job: %w", err)
	}

	r.cron.Start()
	r.logger.Infow("sync cron started", "spec", r.spec)
	return nil
}

// Stop halts the cron schedule and drops the client handles. A sync already
// in flight finishes before Stop returns.
func (r *syncRunner) Stop(_ context.Context) error {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	r.registry.Shutdown()
	return nil
}

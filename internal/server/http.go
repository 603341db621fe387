// Package server assembles the HTTP transport.
package server

import (
	"sellersync/internal/conf"
	"sellersync/internal/server/middleware"
	"sellersync/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, system *service.SystemService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Logging(logger),
		),
	}
	if c.Http.Network != "" {
		opts = append(opts, http.Network(c.Http.Network))
	}
	if c.Http.Addr != "" {
		opts = append(opts, http.Address(c.Http.Addr))
	}
	if c.Http.Timeout > 0 {
		opts = append(opts, http.Timeout(c.Http.Timeout))
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, system)

	return srv
}

// registerRoutes binds the operational API.
func registerRoutes(srv *http.Server, system *service.SystemService) {
	r := srv.Route("/")

	r.GET("/healthz", func(ctx http.Context) error {
		return ctx.Result(200, map[string]string{"status": "ok"})
	})

	r.GET("/v1/system/health", func(ctx http.Context) error {
		return ctx.Result(200, system.SystemHealth(ctx))
	})

	r.GET("/v1/tenants/{tenant_id}/report", func(ctx http.Context) error {
		report, err := system.TenantReport(ctx, ctx.Vars().Get("tenant_id"))
		if err != nil {
			return err
		}
		return ctx.Result(200, report)
	})

	r.POST("/v1/tenants/{tenant_id}/activate", func(ctx http.Context) error {
		if err := system.ActivateTenant(ctx, ctx.Vars().Get("tenant_id")); err != nil {
			return err
		}
		return ctx.Result(200, map[string]string{"status": "registered"})
	})

	r.DELETE("/v1/tenants/{tenant_id}", func(ctx http.Context) error {
		if err := system.DeactivateTenant(ctx, ctx.Vars().Get("tenant_id")); err != nil {
			return err
		}
		return ctx.Result(200, map[string]string{"status": "removed"})
	})

	r.POST("/v1/tenants/{tenant_id}/sync", func(ctx http.Context) error {
		report, err := system.SyncTenant(ctx, ctx.Vars().Get("tenant_id"))
		if err != nil {
			return err
		}
		return ctx.Result(200, report)
	})

	r.POST("/v1/sync", func(ctx http.Context) error {
		system.SyncAllTenants(ctx)
		return ctx.Result(202, map[string]string{"status": "started"})
	})
}

package model

import "time"

// TenantHealth is the per-tenant slice of the system health report.
type TenantHealth struct {
	TenantID      string `json:"tenant_id"`
	MarketplaceID string `json:"marketplace_id"`
	Healthy       bool   `json:"healthy"`
	BreakerState  string `json:"breaker_state"`
	// RateLimitTokens maps operation category to remaining bucket tokens.
	RateLimitTokens map[string]float64 `json:"rate_limit_tokens"`
}

// SystemHealth aggregates registry-wide client health.
type SystemHealth struct {
	TotalClients     int            `json:"total_clients"`
	HealthyClients   int            `json:"healthy_clients"`
	UnhealthyClients int            `json:"unhealthy_clients"`
	Tenants          []TenantHealth `json:"tenants"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// RequestMetric is emitted by the client pipeline for every terminal request
// outcome (success or classified failure).
type RequestMetric struct {
	TenantID   string        `json:"tenant_id"`
	Endpoint   string        `json:"endpoint"`
	Method     string        `json:"method"`
	StatusCode int           `json:"status_code"`
	Latency    time.Duration `json:"latency"`
	Success    bool          `json:"success"`
	ErrorClass string        `json:"error_class,omitempty"`
	At         time.Time     `json:"at"`
}

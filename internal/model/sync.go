package model

import "time"

// Sync domain names, in the order a tenant sync runs them. Pricing reads SKUs
// that the inventory stage persisted, so the order is a dependency, not a
// preference.
const (
	DomainOrders    = "orders"
	DomainInventory = "inventory"
	DomainPricing   = "pricing"
)

// SyncResult is the outcome of one domain sync for one tenant.
// Immutable once returned.
type SyncResult struct {
	Domain         string   `json:"domain"`
	ItemsProcessed int      `json:"items_processed"`
	Errors         []string `json:"errors,omitempty"`
}

// Failed reports whether the domain sync recorded any errors.
func (r *SyncResult) Failed() bool {
	return len(r.Errors) > 0
}

// TenantSyncReport aggregates the domain results of one tenant's sync run.
type TenantSyncReport struct {
	TenantID   string       `json:"tenant_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []SyncResult `json:"results"`
	// AuthFailed is set when the run aborted on a permanent auth failure.
	AuthFailed bool `json:"auth_failed,omitempty"`
	// FailureReason classifies a total failure ("permanent_auth",
	// "circuit_open", ...). Empty for successful runs.
	FailureReason string `json:"failure_reason,omitempty"`
}

// Success reports whether every domain completed without errors.
func (r *TenantSyncReport) Success() bool {
	if r.AuthFailed || r.FailureReason != "" {
		return false
	}
	for i := range r.Results {
		if r.Results[i].Failed() {
			return false
		}
	}
	return true
}

// TotalItems sums the processed items across domains.
func (r *TenantSyncReport) TotalItems() int {
	total := 0
	for i := range r.Results {
		total += r.Results[i].ItemsProcessed
	}
	return total
}

// SyncSummary is the result of an all-tenant sync pass.
type SyncSummary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Succeeded lists tenant IDs whose sync completed without a total failure.
	Succeeded []string `json:"succeeded"`
	// Failed maps tenant ID to the failure classification.
	Failed map[string]string `json:"failed"`
}

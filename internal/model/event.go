package model

import "time"

// SyncCompletedEvent is published after each tenant sync for the dashboard
// and notification consumers.
type SyncCompletedEvent struct {
	TenantID   string    `json:"tenant_id"`
	Success    bool      `json:"success"`
	Items      int       `json:"items"`
	Domains    int       `json:"domains"`
	FinishedAt time.Time `json:"finished_at"`
	Reason     string    `json:"reason,omitempty"`
}

// AuthFailureEvent signals that a tenant's refresh token was rejected and the
// tenant must re-authorize out-of-band.
type AuthFailureEvent struct {
	TenantID   string    `json:"tenant_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LowStockEvent signals near-zero available inventory for a SKU.
type LowStockEvent struct {
	TenantID  string    `json:"tenant_id"`
	SKU       string    `json:"sku"`
	Available int32     `json:"available"`
	Threshold int32     `json:"threshold"`
	CheckedAt time.Time `json:"checked_at"`
}

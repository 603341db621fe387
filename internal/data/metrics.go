package data

import (
	"context"
	"encoding/json"
	"time"

	"sellersync/internal/biz"
	"sellersync/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// RequestMetricRecord is one persisted terminal request outcome.
type RequestMetricRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	TenantID   string    `gorm:"column:tenant_id;size:64;not null;index"`
	Endpoint   string    `gorm:"column:endpoint;size:255"`
	Method     string    `gorm:"column:method;size:8"`
	StatusCode int       `gorm:"column:status_code"`
	LatencyMs  int64     `gorm:"column:latency_ms"`
	Success    bool      `gorm:"column:success"`
	ErrorClass string    `gorm:"column:error_class;size:32;index"`
	At         time.Time `gorm:"column:at;index"`
}

// TableName sets the table name.
func (RequestMetricRecord) TableName() string {
	return "request_metrics"
}

// SyncReportRecord is one persisted tenant sync report.
type SyncReportRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	TenantID      string    `gorm:"column:tenant_id;size:64;not null;index"`
	StartedAt     time.Time `gorm:"column:started_at"`
	FinishedAt    time.Time `gorm:"column:finished_at;index"`
	Success       bool      `gorm:"column:success"`
	TotalItems    int       `gorm:"column:total_items"`
	AuthFailed    bool      `gorm:"column:auth_failed"`
	FailureReason string    `gorm:"column:failure_reason;size:64"`
	// ResultsJSON holds the per-domain results for ad hoc inspection.
	ResultsJSON string    `gorm:"column:results_json;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName sets the table name.
func (SyncReportRecord) TableName() string {
	return "sync_reports"
}

// metricsRecorder implements biz.MetricsRecorder on GORM. Recording is
// best-effort: failures are logged, never surfaced, so a slow metrics table
// cannot break the request path.
type metricsRecorder struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewMetricsRecorder creates the metrics persistence layer.
func NewMetricsRecorder(db *gorm.DB, logger log.Logger) biz.MetricsRecorder {
	return &metricsRecorder{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// RecordRequest persists one terminal request outcome.
func (m *metricsRecorder) RecordRequest(ctx context.Context, rm *model.RequestMetric) {
	record := RequestMetricRecord{
		TenantID:   rm.TenantID,
		Endpoint:   rm.Endpoint,
		Method:     rm.Method,
		StatusCode: rm.StatusCode,
		LatencyMs:  rm.Latency.Milliseconds(),
		Success:    rm.Success,
		ErrorClass: rm.ErrorClass,
		At:         rm.At,
	}
	if err := m.db.WithContext(ctx).Create(&record).Error; err != nil {
		m.logger.Warnw("failed to record request metric",
			"tenant_id", rm.TenantID,
			"error", err)
	}
}

// RecordSyncReport persists one tenant sync report.
func (m *metricsRecorder) RecordSyncReport(ctx context.Context, r *model.TenantSyncReport) {
	resultsJSON, err := json.Marshal(r.Results)
	if err != nil {
		m.logger.Warnw("failed to marshal sync results",
			"tenant_id", r.TenantID,
			"error", err)
		resultsJSON = []byte("[]")
	}

	record := SyncReportRecord{
		TenantID:      r.TenantID,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		Success:       r.Success(),
		TotalItems:    r.TotalItems(),
		AuthFailed:    r.AuthFailed,
		FailureReason: r.FailureReason,
		ResultsJSON:   string(resultsJSON),
	}
	if err := m.db.WithContext(ctx).Create(&record).Error; err != nil {
		m.logger.Warnw("failed to record sync report",
			"tenant_id", r.TenantID,
			"error", err)
	}
}

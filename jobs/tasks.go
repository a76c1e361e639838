// Package jobs runs the scheduled background scans: expiry alerts and
// low-stock alerts. Both are read-only over the ledger; they log findings
// and bump no state.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rxstock/rxstock/internal/inventory"
	jobmetrics "github.com/rxstock/rxstock/internal/jobs"
	"github.com/rxstock/rxstock/internal/settings"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpiryScan reports batches expiring inside the alert window.
	TaskExpiryScan = "inventory:expiry_scan"
	// TaskLowStockScan reports medicines at or below their reorder level.
	TaskLowStockScan = "inventory:low_stock_scan"
)

// ExpiryScanPayload carries scheduling metadata. Days zero means "use the
// configured alert window".
type ExpiryScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Days         int       `json:"days,omitempty"`
}

// NewExpiryScanTask constructs the expiry scan task.
func NewExpiryScanTask(at time.Time, days int) (*asynq.Task, error) {
	body, err := json.Marshal(ExpiryScanPayload{ScheduledFor: at, Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// Scans bundles the repositories the scan handlers read from. A nil
// metrics value disables instrumentation.
type Scans struct {
	logger   *slog.Logger
	stock    *inventory.Repository
	settings *settings.Repository
	metrics  *jobmetrics.Metrics
}

// NewScans constructs the scan handlers.
func NewScans(logger *slog.Logger, stock *inventory.Repository, cfg *settings.Repository, metrics *jobmetrics.Metrics) *Scans {
	return &Scans{logger: logger, stock: stock, settings: cfg, metrics: metrics}
}

// HandleExpiryScan logs every batch expiring inside the alert window.
func (s *Scans) HandleExpiryScan(ctx context.Context, t *asynq.Task) error {
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := s.metrics.Track("expiry_scan")
	days := payload.Days
	if days <= 0 {
		profile, err := s.settings.Get(ctx)
		if err != nil {
			return tracker.End(err)
		}
		days = profile.ExpiryAlertDays
	}
	rows, err := s.stock.ExpiringWithin(ctx, days)
	if err != nil {
		return tracker.End(err)
	}
	for _, row := range rows {
		s.logger.Warn("batch expiring",
			slog.String("medicine", row.MedicineName),
			slog.String("batch", row.BatchNo),
			slog.Int("days_left", row.DaysLeft),
			slog.Int64("stock", row.Stock))
	}
	s.metrics.AddFlagged("expiry", len(rows))
	s.logger.Info("expiry scan done", slog.Int("window_days", days), slog.Int("expiring", len(rows)))
	return tracker.End(nil)
}

// HandleLowStockScan logs every medicine at or below its reorder level.
func (s *Scans) HandleLowStockScan(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := s.metrics.Track("low_stock_scan")
	rows, err := s.stock.LowStock(ctx)
	if err != nil {
		return tracker.End(err)
	}
	for _, row := range rows {
		s.logger.Warn("low stock",
			slog.String("medicine", row.MedicineName),
			slog.Int64("total_stock", row.TotalStock),
			slog.Int64("reorder_level", row.ReorderLevel))
	}
	s.metrics.AddFlagged("low_stock", len(rows))
	s.logger.Info("low stock scan done", slog.Int("flagged", len(rows)))
	return tracker.End(nil)
}

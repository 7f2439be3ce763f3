package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/service"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
)

// PaymentSweeper refreshes stale pending payments. PaymentService implements it.
type PaymentSweeper interface {
	SweepPending(ctx context.Context, olderThan time.Time, limit int) (*service.SweepStats, error)
}

// PaymentPollWorkerConfig holds configuration for the pending payment sweep
type PaymentPollWorkerConfig struct {
	PollInterval time.Duration
	// MinAge leaves fresh payments to the webhook
	MinAge    time.Duration
	BatchSize int
}

// DefaultPaymentPollWorkerConfig returns default configuration
func DefaultPaymentPollWorkerConfig() *PaymentPollWorkerConfig {
	return &PaymentPollWorkerConfig{
		PollInterval: 30 * time.Second,
		MinAge:       2 * time.Minute,
		BatchSize:    50,
	}
}

// PaymentPollWorkerStats holds statistics for the poll worker
type PaymentPollWorkerStats struct {
	IsRunning         bool      `json:"is_running"`
	TotalChecked      int64     `json:"total_checked"`
	TotalResolved     int64     `json:"total_resolved"`
	LastScanTime      time.Time `json:"last_scan_time"`
	LastResolvedCount int       `json:"last_resolved_count"`
}

// PaymentPollWorker asks the provider about payments whose webhook never arrived
type PaymentPollWorker struct {
	sweeper PaymentSweeper
	config  *PaymentPollWorkerConfig
	now     func() time.Time
	log     *logger.Logger

	mu                sync.Mutex
	running           bool
	stopCh            chan struct{}
	totalChecked      int64
	totalResolved     int64
	lastScanTime      time.Time
	lastResolvedCount int
}

// NewPaymentPollWorker creates a new PaymentPollWorker. A nil config uses the defaults.
func NewPaymentPollWorker(sweeper PaymentSweeper, config *PaymentPollWorkerConfig) *PaymentPollWorker {
	if config == nil {
		config = DefaultPaymentPollWorkerConfig()
	}
	return &PaymentPollWorker{
		sweeper: sweeper,
		config:  config,
		now:     time.Now,
		log:     logger.Get().Component("payment_poll_worker"),
	}
}

// Start polls until ctx is done or Stop is called
func (w *PaymentPollWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWorkerRunning
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.log.Info("payment poll worker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Duration("min_age", w.config.MinAge),
	)
	runLoop(ctx, stopCh, w.config.PollInterval, func(ctx context.Context) {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("payment sweep failed", zap.Error(err))
		}
	})
	w.log.Info("payment poll worker stopped")
	return nil
}

// Stop signals a running worker to return
func (w *PaymentPollWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running && w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

// RunOnce sweeps one batch of pending payments older than MinAge
func (w *PaymentPollWorker) RunOnce(ctx context.Context) (*service.SweepStats, error) {
	now := w.now()
	stats, err := w.sweeper.SweepPending(ctx, now.Add(-w.config.MinAge), w.config.BatchSize)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.totalChecked += int64(stats.Checked)
	w.totalResolved += int64(stats.Resolved)
	w.lastScanTime = now
	w.lastResolvedCount = stats.Resolved
	w.mu.Unlock()

	if stats.Checked > 0 {
		w.log.Info("swept pending payments", zap.Int("checked", stats.Checked), zap.Int("resolved", stats.Resolved))
	}
	return stats, nil
}

// GetStats returns current worker statistics
func (w *PaymentPollWorker) GetStats() *PaymentPollWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &PaymentPollWorkerStats{
		IsRunning:         w.running,
		TotalChecked:      w.totalChecked,
		TotalResolved:     w.totalResolved,
		LastScanTime:      w.lastScanTime,
		LastResolvedCount: w.lastResolvedCount,
	}
}

package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/internal/repository"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/telemetry"
)

// ErrWorkerRunning is returned by Start when the worker is already running
var ErrWorkerRunning = errors.New("worker already running")

// ExpiryWorkerConfig holds configuration for the booking reaper
type ExpiryWorkerConfig struct {
	ScanInterval time.Duration
	BatchSize    int
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval: 5 * time.Second,
		BatchSize:    100,
	}
}

// ExpiryWorkerStats holds statistics for the expiry worker
type ExpiryWorkerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalExpired     int64     `json:"total_expired"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastExpiredCount int       `json:"last_expired_count"`
}

// ExpiryWorker marks pending bookings past their reservation window as expired.
// A successful payment arriving afterwards is recorded as orphaned.
type ExpiryWorker struct {
	bookings repository.BookingRepository
	config   *ExpiryWorkerConfig
	now      func() time.Time
	expired  *telemetry.Counter
	log      *logger.Logger

	mu               sync.Mutex
	running          bool
	stopCh           chan struct{}
	totalExpired     int64
	lastScanTime     time.Time
	lastExpiredCount int
}

// NewExpiryWorker creates a new ExpiryWorker. A nil config uses the defaults.
func NewExpiryWorker(bookings repository.BookingRepository, config *ExpiryWorkerConfig) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}
	// a nil counter is a no-op
	expired, _ := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "bookings_expired_total",
		Description: "Pending bookings expired by the reaper",
		Unit:        "1",
	})
	return &ExpiryWorker{
		bookings: bookings,
		config:   config,
		now:      time.Now,
		expired:  expired,
		log:      logger.Get().Component("expiry_worker"),
	}
}

// Start scans until ctx is done or Stop is called
func (w *ExpiryWorker) Start(ctx context.Context) error {
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

	w.log.Info("expiry worker started",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)
	runLoop(ctx, stopCh, w.config.ScanInterval, func(ctx context.Context) {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("expiry scan failed", zap.Error(err))
		}
	})
	w.log.Info("expiry worker stopped")
	return nil
}

// Stop signals a running worker to return
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running && w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

// RunOnce expires one batch and returns how many bookings it expired
func (w *ExpiryWorker) RunOnce(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "worker.expire_bookings")
	defer span.End()

	now := w.now()
	ids, err := w.bookings.ExpirePending(ctx, now, w.config.BatchSize)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return 0, err
	}

	w.mu.Lock()
	w.totalExpired += int64(len(ids))
	w.lastScanTime = now
	w.lastExpiredCount = len(ids)
	w.mu.Unlock()

	if len(ids) > 0 {
		w.expired.Add(ctx, int64(len(ids)), telemetry.BookingStatusAttr(string(domain.BookingStatusExpired)))
		w.log.Info("expired pending bookings", zap.Int("count", len(ids)), zap.Int64s("booking_ids", ids))
	}
	return len(ids), nil
}

// GetStats returns current worker statistics
func (w *ExpiryWorker) GetStats() *ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &ExpiryWorkerStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastExpiredCount,
	}
}

// runLoop calls fn immediately and then on every tick until ctx is done or stop closes
func runLoop(ctx context.Context, stop <-chan struct{}, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

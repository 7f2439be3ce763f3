package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/internal/repository"
	"github.com/Jeffmuturi45/EVENTIFY/internal/service"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func seedBookings(t *testing.T, store *repository.MemoryStore, n int) []*domain.Booking {
	t.Helper()
	tc := store.PutTicketClass(&domain.TicketClass{
		EventID:           1,
		Category:          domain.TicketCategoryRegular,
		Price:             decimal.NewFromInt(300),
		QuantityAvailable: 100,
	})
	bookings := make([]*domain.Booking, 0, n)
	for i := 0; i < n; i++ {
		b := domain.NewBooking("user-1", tc, 1, baseTime, 30*time.Minute)
		if err := store.Bookings().Create(context.Background(), b); err != nil {
			t.Fatalf("create booking: %v", err)
		}
		bookings = append(bookings, b)
	}
	return bookings
}

func TestDefaultExpiryWorkerConfig(t *testing.T) {
	config := DefaultExpiryWorkerConfig()

	if config.ScanInterval != 5*time.Second {
		t.Errorf("ScanInterval = %v, want %v", config.ScanInterval, 5*time.Second)
	}
	if config.BatchSize != 100 {
		t.Errorf("BatchSize = %v, want %v", config.BatchSize, 100)
	}
}

func TestNewExpiryWorker_WithDefaultConfig(t *testing.T) {
	worker := NewExpiryWorker(nil, nil)

	if worker.config == nil {
		t.Fatal("Worker config should not be nil")
	}
	if worker.config.ScanInterval != 5*time.Second {
		t.Errorf("Default ScanInterval = %v, want %v", worker.config.ScanInterval, 5*time.Second)
	}

	stats := worker.GetStats()
	if stats.IsRunning {
		t.Error("Worker should not be running initially")
	}
	if stats.TotalExpired != 0 {
		t.Errorf("TotalExpired = %v, want 0", stats.TotalExpired)
	}
}

func TestExpiryWorker_RunOnce(t *testing.T) {
	store := repository.NewMemoryStore()
	bookings := seedBookings(t, store, 3)

	worker := NewExpiryWorker(store.Bookings(), &ExpiryWorkerConfig{ScanInterval: time.Second, BatchSize: 2})
	worker.now = func() time.Time { return baseTime.Add(10 * time.Minute) }

	// still inside the window
	n, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 0 {
		t.Errorf("expired = %d, want 0", n)
	}

	worker.now = func() time.Time { return baseTime.Add(31 * time.Minute) }
	n, err = worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 2 {
		t.Errorf("expired = %d, want batch size 2", n)
	}

	n, _ = worker.RunOnce(context.Background())
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}

	stats := worker.GetStats()
	if stats.TotalExpired != 3 {
		t.Errorf("TotalExpired = %d, want 3", stats.TotalExpired)
	}
	if stats.LastExpiredCount != 1 {
		t.Errorf("LastExpiredCount = %d, want 1", stats.LastExpiredCount)
	}
	if !stats.LastScanTime.Equal(baseTime.Add(31 * time.Minute)) {
		t.Errorf("LastScanTime = %v", stats.LastScanTime)
	}

	for _, b := range bookings {
		got, err := store.Bookings().GetByID(context.Background(), b.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Status != domain.BookingStatusExpired {
			t.Errorf("booking %d status = %s, want expired", b.ID, got.Status)
		}
	}
}

func TestExpiryWorker_SkipsFinalBookings(t *testing.T) {
	store := repository.NewMemoryStore()
	bookings := seedBookings(t, store, 2)
	ok, err := store.Bookings().CompareAndSetStatus(context.Background(), bookings[0].ID,
		domain.BookingStatusPending, domain.BookingStatusConfirmed, baseTime)
	if err != nil || !ok {
		t.Fatalf("CompareAndSetStatus() = %v, %v", ok, err)
	}

	worker := NewExpiryWorker(store.Bookings(), nil)
	worker.now = func() time.Time { return baseTime.Add(time.Hour) }
	n, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}

	got, _ := store.Bookings().GetByID(context.Background(), bookings[0].ID)
	if got.Status != domain.BookingStatusConfirmed {
		t.Errorf("confirmed booking became %s", got.Status)
	}
}

func TestExpiryWorker_StartStop(t *testing.T) {
	store := repository.NewMemoryStore()
	seedBookings(t, store, 1)

	worker := NewExpiryWorker(store.Bookings(), &ExpiryWorkerConfig{ScanInterval: 10 * time.Millisecond, BatchSize: 10})
	worker.now = func() time.Time { return baseTime.Add(time.Hour) }

	done := make(chan error, 1)
	go func() { done <- worker.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for worker.GetStats().TotalExpired == 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker did not expire the booking")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := worker.Start(context.Background()); !errors.Is(err, ErrWorkerRunning) {
		t.Errorf("second Start() error = %v, want ErrWorkerRunning", err)
	}

	worker.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	if worker.GetStats().IsRunning {
		t.Error("worker should not be running after Stop()")
	}
}

type fakeSweeper struct {
	mu        sync.Mutex
	calls     int
	olderThan time.Time
	limit     int
	stats     *service.SweepStats
	err       error
}

func (f *fakeSweeper) SweepPending(ctx context.Context, olderThan time.Time, limit int) (*service.SweepStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.olderThan = olderThan
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

func TestDefaultPaymentPollWorkerConfig(t *testing.T) {
	config := DefaultPaymentPollWorkerConfig()
	if config.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", config.PollInterval)
	}
	if config.MinAge != 2*time.Minute {
		t.Errorf("MinAge = %v, want 2m", config.MinAge)
	}
	if config.BatchSize != 50 {
		t.Errorf("BatchSize = %v, want 50", config.BatchSize)
	}
}

func TestPaymentPollWorker_RunOnce(t *testing.T) {
	sweeper := &fakeSweeper{stats: &service.SweepStats{Checked: 4, Resolved: 3}}
	worker := NewPaymentPollWorker(sweeper, &PaymentPollWorkerConfig{
		PollInterval: time.Minute,
		MinAge:       5 * time.Minute,
		BatchSize:    20,
	})
	worker.now = func() time.Time { return baseTime }

	stats, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Resolved != 3 {
		t.Errorf("Resolved = %d, want 3", stats.Resolved)
	}
	if !sweeper.olderThan.Equal(baseTime.Add(-5 * time.Minute)) {
		t.Errorf("olderThan = %v, want %v", sweeper.olderThan, baseTime.Add(-5*time.Minute))
	}
	if sweeper.limit != 20 {
		t.Errorf("limit = %d, want 20", sweeper.limit)
	}

	got := worker.GetStats()
	if got.TotalChecked != 4 || got.TotalResolved != 3 || got.LastResolvedCount != 3 {
		t.Errorf("stats = %+v", got)
	}

	sweeper.err = errors.New("db down")
	if _, err := worker.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce() should surface sweep errors")
	}
	if worker.GetStats().TotalChecked != 4 {
		t.Error("failed sweep should not change stats")
	}
}

func TestPaymentPollWorker_StopsOnContext(t *testing.T) {
	sweeper := &fakeSweeper{stats: &service.SweepStats{}}
	worker := NewPaymentPollWorker(sweeper, &PaymentPollWorkerConfig{PollInterval: 10 * time.Millisecond, BatchSize: 5})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	sweeper.mu.Lock()
	calls := sweeper.calls
	sweeper.mu.Unlock()
	if calls == 0 {
		t.Error("sweeper was never called")
	}
}

package service

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/telemetry"
)

// ticketingMetrics holds the counters shared by the services.
// A nil counter is a no-op, so a metric that failed to register is skipped.
type ticketingMetrics struct {
	bookingsCreated *telemetry.Counter
	paymentsSettled *telemetry.Counter
	notifications   *telemetry.Counter
	orphaned        *telemetry.Counter
	pendingPayments *telemetry.UpDownCounter
}

var (
	metricsOnce sync.Once
	metrics     *ticketingMetrics
)

func getMetrics() *ticketingMetrics {
	metricsOnce.Do(func() {
		metrics = &ticketingMetrics{
			bookingsCreated: newCounter("bookings_created_total", "Bookings created"),
			paymentsSettled: newCounter("payments_settled_total", "Payment status transitions by status and source"),
			notifications:   newCounter("ticket_notifications_total", "Ticket deliveries by outcome"),
			orphaned:        newCounter("payments_orphaned_total", "Successful payments whose booking was no longer pending"),
			pendingPayments: newUpDownCounter("payments_pending", "Payments waiting on a gateway result"),
		}
	})
	return metrics
}

func newCounter(name, description string) *telemetry.Counter {
	c, err := telemetry.NewCounter(telemetry.MetricOpts{Name: name, Description: description, Unit: "1"})
	if err != nil {
		logger.Get().Warn("failed to register metric", zap.String("metric", name), zap.Error(err))
		return nil
	}
	return c
}

func newUpDownCounter(name, description string) *telemetry.UpDownCounter {
	c, err := telemetry.NewUpDownCounter(telemetry.MetricOpts{Name: name, Description: description, Unit: "1"})
	if err != nil {
		logger.Get().Warn("failed to register metric", zap.String("metric", name), zap.Error(err))
		return nil
	}
	return c
}

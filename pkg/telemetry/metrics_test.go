package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func setupTelemetryDisabled(t *testing.T) {
	t.Helper()
	_, err := Init(context.Background(), &Config{Enabled: false, ServiceName: "test-service"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Shutdown(context.Background()) })
}

func TestCounter_Disabled(t *testing.T) {
	setupTelemetryDisabled(t)

	counter, err := NewCounter(MetricOpts{Name: "test_counter", Description: "A test counter", Unit: "1"})
	require.NoError(t, err)

	ctx := context.Background()
	counter.Add(ctx, 5)
	counter.Inc(ctx, attribute.String("key", "value"))
}

func TestCounter_NilSafe(t *testing.T) {
	var counter *Counter
	counter.Inc(context.Background())

	var histogram *Histogram
	histogram.Record(context.Background(), 1)

	var updown *UpDownCounter
	updown.Add(context.Background(), -1)
}

func TestHistogram_Disabled(t *testing.T) {
	setupTelemetryDisabled(t)

	histogram, err := NewHistogram(MetricOpts{Name: "test_histogram", Unit: "ms"})
	require.NoError(t, err)
	histogram.Record(context.Background(), 123.45)

	bucketed, err := NewHistogramWithBuckets(MetricOpts{Name: "test_histogram_buckets", Unit: "s"},
		[]float64{0.05, 0.1, 0.5, 1, 5, 30})
	require.NoError(t, err)
	bucketed.Record(context.Background(), 0.2, attribute.String("key", "value"))
}

func TestUpDownCounter_Disabled(t *testing.T) {
	setupTelemetryDisabled(t)

	counter, err := NewUpDownCounter(MetricOpts{Name: "test_updown", Unit: "1"})
	require.NoError(t, err)
	counter.Add(context.Background(), 3)
	counter.Add(context.Background(), -3)
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name     string
		got      attribute.KeyValue
		expected attribute.KeyValue
	}{
		{"ErrorTypeAttr", ErrorTypeAttr("validation_error"), attribute.String(AttrErrorType, "validation_error")},
		{"EventIDAttr", EventIDAttr(42), attribute.Int64(AttrEventID, 42)},
		{"BookingStatusAttr", BookingStatusAttr("confirmed"), attribute.String(AttrBookingStatus, "confirmed")},
		{"PaymentStatusAttr", PaymentStatusAttr("successful"), attribute.String(AttrPaymentStatus, "successful")},
		{"PaymentSourceAttr", PaymentSourceAttr("webhook"), attribute.String(AttrPaymentSource, "webhook")},
		{"GatewayAttr", GatewayAttr("mpesa"), attribute.String(AttrGateway, "mpesa")},
		{"OperationAttr", OperationAttr("stk_push"), attribute.String(AttrOperation, "stk_push")},
		{"OutcomeAttr", OutcomeAttr("ok"), attribute.String(AttrOutcome, "ok")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

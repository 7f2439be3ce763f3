package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/internal/notification"
	"github.com/Jeffmuturi45/EVENTIFY/internal/repository"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/telemetry"
)

// ResultUpdate is a payment result from any channel: initiation, poll, webhook,
// re-check, sweep or the free-ticket path
type ResultUpdate struct {
	Status          domain.PaymentStatus
	Receipt         string
	TransactionTime time.Time
	ResultCode      *int
	ResultDesc      string
	Raw             json.RawMessage
	Source          domain.PaymentSource
}

// Outcome describes what ApplyResult committed
type Outcome struct {
	Payment *domain.Payment
	Booking *domain.Booking
	// Transitioned is false when the payment was already final or the update was pending
	Transitioned bool
	Confirmed    bool
	Orphaned     bool
	Notified     bool
	// Warning carries a notification failure; the confirmation itself stands
	Warning string
}

const abandonedInitiationDesc = "payment request was not acknowledged by the gateway"

// Reconciler is the only writer of payment and booking status after creation
type Reconciler struct {
	payments repository.PaymentRepository
	sink     notification.Sink
	now      func() time.Time
	metrics  *ticketingMetrics
	log      *logger.Logger
}

// NewReconciler creates a Reconciler. A nil clock uses time.Now.
func NewReconciler(payments repository.PaymentRepository, sink notification.Sink, clock func() time.Time) *Reconciler {
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{
		payments: payments,
		sink:     sink,
		now:      clock,
		metrics:  getMetrics(),
		log:      logger.Get().Component("reconciler"),
	}
}

// ApplyResult moves the payment, and with it the booking, to the state the
// update reports. The check and the writes run under the payment row lock, so
// concurrent updates for one payment confirm and notify at most once.
func (r *Reconciler) ApplyResult(ctx context.Context, paymentID int64, u ResultUpdate) (*Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "reconciler.apply_result")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("payment.id", paymentID),
		attribute.String(telemetry.AttrPaymentStatus, string(u.Status)),
		attribute.String(telemetry.AttrPaymentSource, string(u.Source)),
	)

	now := r.now()
	var out Outcome

	payment, booking, err := r.payments.Settle(ctx, paymentID, func(p *domain.Payment, b *domain.Booking) (repository.Settlement, error) {
		out = Outcome{}
		if p.Status.IsTerminal() {
			return repository.Settlement{}, nil
		}
		from := p.Status

		switch u.Status {
		case domain.PaymentStatusSuccessful:
			txTime := u.TransactionTime
			if txTime.IsZero() {
				txTime = now
			}
			if err := p.MarkSuccessful(u.Receipt, txTime, now); err != nil {
				return repository.Settlement{}, err
			}
			r.recordResult(p, u)

			settlement := repository.Settlement{Write: true}
			reason := u.ResultDesc
			if b.Status == domain.BookingStatusPending {
				if err := b.Confirm(now); err != nil {
					return repository.Settlement{}, err
				}
				settlement.ConfirmedBooking = true
				out.Confirmed = true
			} else {
				p.Orphaned = true
				out.Orphaned = true
				reason = fmt.Sprintf("booking already %s", b.Status)
			}
			settlement.Transition = newTransition(p.ID, from, p.Status, u.Source, reason, now)
			out.Transitioned = true
			return settlement, nil

		case domain.PaymentStatusFailed:
			if err := p.MarkFailed(u.ResultCode, u.ResultDesc, now); err != nil {
				return repository.Settlement{}, err
			}
			r.recordResult(p, u)
			out.Transitioned = true
			return repository.Settlement{
				Write:      true,
				Transition: newTransition(p.ID, from, p.Status, u.Source, u.ResultDesc, now),
			}, nil

		case domain.PaymentStatusPending:
			return repository.Settlement{}, nil

		default:
			return repository.Settlement{}, fmt.Errorf("%w: cannot apply %q", domain.ErrInvalidStatusTransition, u.Status)
		}
	})
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}

	out.Payment = payment
	out.Booking = booking
	log := r.log.WithContext(ctx).WithFields(
		zap.Int64("payment_id", payment.ID),
		zap.Int64("booking_id", booking.ID),
		zap.String("source", string(u.Source)),
	)

	if !out.Transitioned {
		log.Debug("payment update ignored", zap.String("payment_status", string(payment.Status)), zap.String("update", string(u.Status)))
		return &out, nil
	}

	r.recordSettled(ctx, payment.Status, u.Source)
	log.Info("payment settled", zap.String("status", string(payment.Status)), zap.String("receipt", payment.ReceiptNumber))

	if out.Orphaned {
		r.metrics.orphaned.Inc(ctx)
		telemetry.AddSpanEvent(ctx, "payment.orphaned",
			attribute.Int64("booking.id", booking.ID),
			telemetry.BookingStatusAttr(string(booking.Status)),
		)
		log.Warn("payment succeeded for a booking that is no longer pending, refund required",
			zap.String("booking_status", string(booking.Status)))
	}

	if out.Confirmed {
		res := notification.SafeDeliver(ctx, r.sink, booking, payment)
		out.Notified = res.Delivered
		r.metrics.notifications.Inc(ctx, telemetry.OutcomeAttr(deliveryOutcome(res)))
		if !res.Delivered {
			out.Warning = "ticket delivery failed: " + res.Detail
			log.Warn("ticket delivery failed", zap.String("detail", res.Detail))
		}
	}
	return &out, nil
}

// recordResult keeps the provider's answer on the payment; webhook bodies are stored for audit
func (r *Reconciler) recordResult(p *domain.Payment, u ResultUpdate) {
	if u.Source == domain.SourceWebhook {
		p.RecordCallback(u.Raw, u.ResultCode, u.ResultDesc)
		return
	}
	if u.ResultCode != nil {
		p.ResultCode = u.ResultCode
	}
	if u.ResultDesc != "" {
		p.ResultDesc = u.ResultDesc
	}
}

// ResetForRetry returns a failed payment to pending for a new attempt on the
// same row. The booking must still be payable.
func (r *Reconciler) ResetForRetry(ctx context.Context, paymentID int64, phone string) (*domain.Payment, error) {
	now := r.now()
	payment, _, err := r.payments.Settle(ctx, paymentID, func(p *domain.Payment, b *domain.Booking) (repository.Settlement, error) {
		if !b.CanProceedToPayment(now) {
			return repository.Settlement{}, domain.ErrBookingNotPayable
		}
		from := p.Status
		if err := p.ResetForRetry(phone, b.TotalAmount, now); err != nil {
			return repository.Settlement{}, err
		}
		return repository.Settlement{
			Write:      true,
			Transition: newTransition(p.ID, from, p.Status, domain.SourceRetry, "retry requested", now),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	r.metrics.pendingPayments.Add(ctx, 1)
	r.log.WithContext(ctx).Info("payment reset for retry", zap.Int64("payment_id", paymentID))
	return payment, nil
}

// AbandonInitiation fails a pending payment whose push got no checkout id
// within grace. No callback can arrive for it, so failing it is what lets the
// user retry. A payment that is no longer stale under the row lock is left alone.
func (r *Reconciler) AbandonInitiation(ctx context.Context, paymentID int64, grace time.Duration, source domain.PaymentSource) (*Outcome, error) {
	now := r.now()
	var out Outcome

	payment, booking, err := r.payments.Settle(ctx, paymentID, func(p *domain.Payment, _ *domain.Booking) (repository.Settlement, error) {
		out = Outcome{}
		if !p.IsStaleInitiation(now, grace) {
			return repository.Settlement{}, nil
		}
		from := p.Status
		if err := p.MarkFailed(nil, abandonedInitiationDesc, now); err != nil {
			return repository.Settlement{}, err
		}
		out.Transitioned = true
		return repository.Settlement{
			Write:      true,
			Transition: newTransition(p.ID, from, p.Status, source, abandonedInitiationDesc, now),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	out.Payment = payment
	out.Booking = booking
	if out.Transitioned {
		r.recordSettled(ctx, payment.Status, source)
		r.log.WithContext(ctx).Warn("stale payment initiation failed",
			zap.Int64("payment_id", payment.ID),
			zap.Int64("booking_id", booking.ID),
			zap.String("source", string(source)),
		)
	}
	return &out, nil
}

// recordSettled counts a transition out of pending
func (r *Reconciler) recordSettled(ctx context.Context, status domain.PaymentStatus, source domain.PaymentSource) {
	r.metrics.paymentsSettled.Inc(ctx,
		telemetry.PaymentStatusAttr(string(status)),
		telemetry.PaymentSourceAttr(string(source)),
	)
	r.metrics.pendingPayments.Add(ctx, -1)
}

// AttachCheckout stores the correlation ids of an accepted initiation
func (r *Reconciler) AttachCheckout(ctx context.Context, paymentID int64, merchantRequestID, checkoutRequestID string) (*domain.Payment, error) {
	now := r.now()
	payment, _, err := r.payments.Settle(ctx, paymentID, func(p *domain.Payment, _ *domain.Booking) (repository.Settlement, error) {
		if err := p.AttachCheckout(merchantRequestID, checkoutRequestID, now); err != nil {
			return repository.Settlement{}, err
		}
		return repository.Settlement{Write: true}, nil
	})
	return payment, err
}

func newTransition(paymentID int64, from, to domain.PaymentStatus, source domain.PaymentSource, reason string, now time.Time) *domain.PaymentTransition {
	return &domain.PaymentTransition{
		ID:         uuid.NewString(),
		PaymentID:  paymentID,
		FromStatus: from,
		ToStatus:   to,
		Source:     source,
		Reason:     reason,
		CreatedAt:  now,
	}
}

func deliveryOutcome(res notification.DeliveryResult) string {
	if res.Delivered {
		return "delivered"
	}
	return "failed"
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/internal/gateway"
	"github.com/Jeffmuturi45/EVENTIFY/internal/repository"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/telemetry"
)

// PaymentResult is returned by the operations that start or complete a payment
type PaymentResult struct {
	Payment         *domain.Payment
	Booking         *domain.Booking
	CustomerMessage string
	Warning         string
}

// RecheckResult is returned by a manual re-check
type RecheckResult struct {
	Payment    *domain.Payment
	Successful bool
}

// SweepStats summarizes one pass over pending payments
type SweepStats struct {
	Checked  int
	Resolved int
}

// PaymentService defines the payment operations exposed to handlers and workers
type PaymentService interface {
	// InitiatePayment starts, retries or completes for free the payment of a booking
	InitiatePayment(ctx context.Context, userID string, bookingID int64, phone string) (*PaymentResult, error)
	// CompleteFreeBooking confirms a zero-amount booking without calling the gateway
	CompleteFreeBooking(ctx context.Context, booking *domain.Booking) (*PaymentResult, error)
	// PollStatus refreshes a pending payment from the gateway and returns it
	PollStatus(ctx context.Context, userID string, paymentID int64) (*domain.Payment, error)
	// Recheck refreshes a payment on request and reports whether it is successful
	Recheck(ctx context.Context, userID string, paymentID int64) (*RecheckResult, error)
	// HandleCallback applies a webhook body. Returns gateway.ErrMalformedCallback for unreadable bodies.
	HandleCallback(ctx context.Context, raw []byte) error
	// SweepPending refreshes pending payments created before olderThan
	SweepPending(ctx context.Context, olderThan time.Time, limit int) (*SweepStats, error)
	// GetPayment retrieves a payment owned by the user
	GetPayment(ctx context.Context, userID string, paymentID int64) (*domain.Payment, error)
	// GetPaymentByBooking retrieves the payment of a booking owned by the user
	GetPaymentByBooking(ctx context.Context, userID string, bookingID int64) (*domain.Payment, error)
	// ListTransitions returns the audit trail of a payment owned by the user
	ListTransitions(ctx context.Context, userID string, paymentID int64) ([]*domain.PaymentTransition, error)
}

// DefaultInitiationGrace is used when PaymentServiceConfig.InitiationGrace is zero
const DefaultInitiationGrace = 2 * time.Minute

// PaymentServiceConfig holds payment service settings
type PaymentServiceConfig struct {
	Location *time.Location
	Clock    func() time.Time
	// InitiationGrace is how long a pending payment may wait for its checkout id
	// before it is failed and becomes retryable
	InitiationGrace time.Duration
}

type paymentService struct {
	bookings   repository.BookingRepository
	payments   repository.PaymentRepository
	events     repository.EventRepository
	gateway    gateway.PaymentGateway
	reconciler *Reconciler
	loc        *time.Location
	now        func() time.Time
	grace      time.Duration
	log        *logger.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	bookings repository.BookingRepository,
	payments repository.PaymentRepository,
	events repository.EventRepository,
	gw gateway.PaymentGateway,
	reconciler *Reconciler,
	cfg *PaymentServiceConfig,
) PaymentService {
	if cfg == nil {
		cfg = &PaymentServiceConfig{}
	}
	s := &paymentService{
		bookings:   bookings,
		payments:   payments,
		events:     events,
		gateway:    gw,
		reconciler: reconciler,
		loc:        cfg.Location,
		now:        cfg.Clock,
		grace:      cfg.InitiationGrace,
		log:        logger.Get().Component("payment_service"),
	}
	if s.grace <= 0 {
		s.grace = DefaultInitiationGrace
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// InitiatePayment starts the payment of a booking.
// An existing successful or pending payment is returned as is; a failed one is retried on the same row.
// A pending payment that never got a checkout id within the initiation grace is failed first and then retried.
func (s *paymentService) InitiatePayment(ctx context.Context, userID string, bookingID int64, phone string) (*PaymentResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.initiate")
	defer span.End()

	booking, err := s.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}

	existing, err := s.payments.GetByBookingID(ctx, booking.ID)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsSuccessful() {
		return &PaymentResult{Payment: existing, Booking: booking}, nil
	}

	if !booking.CanProceedToPayment(s.now()) {
		return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrBookingNotPayable, booking.Reference(), booking.Status)
	}
	if booking.IsFree() {
		return s.CompleteFreeBooking(ctx, booking)
	}

	if existing != nil && existing.Status == domain.PaymentStatusPending {
		if !existing.IsStaleInitiation(s.now(), s.grace) {
			return &PaymentResult{Payment: existing, Booking: booking}, nil
		}
		out, err := s.reconciler.AbandonInitiation(ctx, existing.ID, s.grace, domain.SourceInitiation)
		if err != nil {
			return nil, err
		}
		if out.Payment.Status != domain.PaymentStatusFailed {
			return &PaymentResult{Payment: out.Payment, Booking: booking}, nil
		}
		existing = out.Payment
	}

	normalized, err := domain.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	var payment *domain.Payment
	switch {
	case existing != nil:
		payment, err = s.reconciler.ResetForRetry(ctx, existing.ID, normalized)
	default:
		payment, err = s.createPayment(ctx, booking, normalized)
		if errors.Is(err, domain.ErrPaymentAlreadyExists) {
			// a concurrent request created it first
			payment, err = s.payments.GetByBookingID(ctx, booking.ID)
			if err == nil {
				return &PaymentResult{Payment: payment, Booking: booking}, nil
			}
		}
	}
	if err != nil {
		return nil, err
	}

	// The outcome of the push is recorded even if the caller has gone away;
	// otherwise the row stays pending with nothing to resolve it.
	recordCtx := context.WithoutCancel(ctx)

	resp, err := s.gateway.InitiatePayment(ctx, &gateway.InitiateRequest{
		Phone:            normalized,
		Amount:           booking.TotalAmount,
		AccountReference: booking.Reference(),
		TransactionDesc:  s.transactionDesc(ctx, booking),
	})
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		s.log.WithContext(ctx).Warn("payment initiation failed",
			zap.Int64("payment_id", payment.ID),
			zap.String("gateway", s.gateway.Name()),
			zap.Error(err),
		)
		if _, applyErr := s.reconciler.ApplyResult(recordCtx, payment.ID, ResultUpdate{
			Status:     domain.PaymentStatusFailed,
			ResultDesc: gateway.Reason(err),
			Source:     domain.SourceInitiation,
		}); applyErr != nil {
			s.log.WithContext(ctx).Error("failed to record initiation failure",
				zap.Int64("payment_id", payment.ID), zap.Error(applyErr))
		}
		return nil, err
	}

	attached, err := s.reconciler.AttachCheckout(recordCtx, payment.ID, resp.MerchantRequestID, resp.CheckoutRequestID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to attach checkout to payment",
			zap.Int64("payment_id", payment.ID),
			zap.String("checkout_request_id", resp.CheckoutRequestID),
			zap.Error(err),
		)
		return nil, err
	}
	return &PaymentResult{Payment: attached, Booking: booking, CustomerMessage: resp.CustomerMessage}, nil
}

func (s *paymentService) createPayment(ctx context.Context, booking *domain.Booking, phone string) (*domain.Payment, error) {
	payment := domain.NewPayment(booking, phone, s.now())
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	s.reconciler.metrics.pendingPayments.Add(ctx, 1)
	return payment, nil
}

func (s *paymentService) transactionDesc(ctx context.Context, b *domain.Booking) string {
	event, err := s.events.GetEvent(ctx, b.EventID)
	if err != nil {
		s.log.WithContext(ctx).Warn("failed to load event for payment description", zap.Int64("event_id", b.EventID), zap.Error(err))
		return "Tickets for " + b.Reference()
	}
	return "Tickets for " + event.Title
}

// CompleteFreeBooking records a zero-amount payment and confirms the booking through the reconciler
func (s *paymentService) CompleteFreeBooking(ctx context.Context, booking *domain.Booking) (*PaymentResult, error) {
	if !booking.IsFree() {
		return nil, fmt.Errorf("%w: booking %s is not free", domain.ErrInvalidStatusTransition, booking.Reference())
	}
	if booking.Status != domain.BookingStatusPending {
		return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrBookingNotPayable, booking.Reference(), booking.Status)
	}

	payment, err := s.payments.GetByBookingID(ctx, booking.ID)
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		payment, err = s.createPayment(ctx, booking, domain.FreePhoneNumber)
		if errors.Is(err, domain.ErrPaymentAlreadyExists) {
			payment, err = s.payments.GetByBookingID(ctx, booking.ID)
		}
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case payment.Status == domain.PaymentStatusFailed:
		// a paid attempt failed before the price became zero
		if payment, err = s.reconciler.ResetForRetry(ctx, payment.ID, domain.FreePhoneNumber); err != nil {
			return nil, err
		}
	}

	out, err := s.reconciler.ApplyResult(ctx, payment.ID, ResultUpdate{
		Status:          domain.PaymentStatusSuccessful,
		Receipt:         booking.FreeReceipt(),
		TransactionTime: s.now(),
		ResultDesc:      "free ticket",
		Source:          domain.SourceFreeTicket,
	})
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: out.Payment, Booking: out.Booking, Warning: out.Warning}, nil
}

// PollStatus is the poll-on-view trigger
func (s *paymentService) PollStatus(ctx context.Context, userID string, paymentID int64) (*domain.Payment, error) {
	payment, err := s.GetPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	refreshed, _ := s.refresh(ctx, payment, domain.SourcePoll)
	return refreshed, nil
}

// Recheck is the manual re-check trigger
func (s *paymentService) Recheck(ctx context.Context, userID string, paymentID int64) (*RecheckResult, error) {
	payment, err := s.GetPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	refreshed, _ := s.refresh(ctx, payment, domain.SourceRecheck)
	return &RecheckResult{Payment: refreshed, Successful: refreshed.IsSuccessful()}, nil
}

// refresh queries the gateway for a pending payment with a correlation id and
// applies a final answer. Gateway errors are logged and the payment returned unchanged.
// A stale initiation has nothing to query and is failed instead.
func (s *paymentService) refresh(ctx context.Context, p *domain.Payment, source domain.PaymentSource) (*domain.Payment, bool) {
	if p.IsStaleInitiation(s.now(), s.grace) {
		return s.abandon(ctx, p, source)
	}
	if p.Status != domain.PaymentStatusPending || p.CheckoutRequestID == "" {
		return p, false
	}

	res, err := s.gateway.QueryStatus(ctx, p.CheckoutRequestID)
	if err != nil {
		s.log.WithContext(ctx).Warn("payment status query failed",
			zap.Int64("payment_id", p.ID), zap.String("source", string(source)), zap.Error(err))
		return p, false
	}
	if res.Status == domain.PaymentStatusPending {
		return p, false
	}

	out, err := s.reconciler.ApplyResult(ctx, p.ID, ResultUpdate{
		Status:     res.Status,
		ResultCode: res.ResultCode,
		ResultDesc: res.ResultDesc,
		Source:     source,
	})
	if err != nil {
		s.log.WithContext(ctx).Error("failed to apply payment status",
			zap.Int64("payment_id", p.ID), zap.String("source", string(source)), zap.Error(err))
		return p, false
	}
	return out.Payment, out.Transitioned
}

func (s *paymentService) abandon(ctx context.Context, p *domain.Payment, source domain.PaymentSource) (*domain.Payment, bool) {
	out, err := s.reconciler.AbandonInitiation(ctx, p.ID, s.grace, source)
	if err != nil {
		s.log.WithContext(ctx).Error("failed to fail stale payment initiation",
			zap.Int64("payment_id", p.ID), zap.String("source", string(source)), zap.Error(err))
		return p, false
	}
	return out.Payment, out.Transitioned
}

// HandleCallback is the webhook trigger. Unknown correlation ids are logged and acknowledged.
func (s *paymentService) HandleCallback(ctx context.Context, raw []byte) error {
	ctx, span := telemetry.StartSpan(ctx, "payment.callback")
	defer span.End()
	log := s.log.WithContext(ctx)

	cb, err := gateway.ParseCallback(raw, s.loc, s.now())
	if err != nil {
		log.Warn("rejected payment callback", zap.Error(err))
		return err
	}
	log = log.WithFields(zap.String("checkout_request_id", cb.CheckoutRequestID))

	payment, err := s.payments.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		log.Warn("callback for unknown payment")
		return nil
	}
	if err != nil {
		return err
	}

	out, err := s.reconciler.ApplyResult(ctx, payment.ID, ResultUpdate{
		Status:          cb.Status,
		Receipt:         cb.Receipt,
		TransactionTime: cb.TransactionTime,
		ResultCode:      cb.ResultCode,
		ResultDesc:      cb.ResultDesc,
		Raw:             cb.Raw,
		Source:          domain.SourceWebhook,
	})
	if err != nil {
		return err
	}
	if !out.Transitioned {
		log.Info("duplicate callback ignored", zap.String("payment_status", string(out.Payment.Status)))
	}
	return nil
}

// SweepPending refreshes stale pending payments so none stays pending forever.
// Payments that never got a checkout id within the initiation grace are failed.
func (s *paymentService) SweepPending(ctx context.Context, olderThan time.Time, limit int) (*SweepStats, error) {
	pending, err := s.payments.ListPendingWithCheckout(ctx, olderThan, limit)
	if err != nil {
		return nil, err
	}

	cut := s.now().Add(-s.grace)
	if olderThan.Before(cut) {
		cut = olderThan
	}
	stranded, err := s.payments.ListStaleInitiations(ctx, cut, limit)
	if err != nil {
		return nil, err
	}

	stats := &SweepStats{}
	for _, p := range append(pending, stranded...) {
		if ctx.Err() != nil {
			break
		}
		stats.Checked++
		if _, resolved := s.refresh(ctx, p, domain.SourceSweep); resolved {
			stats.Resolved++
		}
	}
	return stats, nil
}

func (s *paymentService) GetPayment(ctx context.Context, userID string, paymentID int64) (*domain.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, domain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *paymentService) GetPaymentByBooking(ctx context.Context, userID string, bookingID int64) (*domain.Payment, error) {
	if _, err := s.ownedBooking(ctx, userID, bookingID); err != nil {
		return nil, err
	}
	return s.payments.GetByBookingID(ctx, bookingID)
}

func (s *paymentService) ListTransitions(ctx context.Context, userID string, paymentID int64) ([]*domain.PaymentTransition, error) {
	if _, err := s.GetPayment(ctx, userID, paymentID); err != nil {
		return nil, err
	}
	return s.payments.ListTransitions(ctx, paymentID)
}

func (s *paymentService) ownedBooking(ctx context.Context, userID string, bookingID int64) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

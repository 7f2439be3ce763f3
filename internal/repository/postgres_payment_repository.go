package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
)

const paymentColumns = `id, booking_id, user_id, phone_number, amount::text, status,
	merchant_request_id, checkout_request_id, receipt_number, transaction_date,
	callback_received, result_code, result_desc, COALESCE(callback_data::text, ''),
	orphaned, created_at, updated_at`

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL
type PostgresPaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPaymentRepository creates a new PostgresPaymentRepository
func NewPostgresPaymentRepository(pool *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{pool: pool}
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	var amount, callbackData string
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.UserID,
		&p.PhoneNumber,
		&amount,
		&p.Status,
		&p.MerchantRequestID,
		&p.CheckoutRequestID,
		&p.ReceiptNumber,
		&p.TransactionDate,
		&p.CallbackReceived,
		&p.ResultCode,
		&p.ResultDesc,
		&callbackData,
		&p.Orphaned,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount for payment %d: %w", p.ID, err)
	}
	if callbackData != "" {
		p.CallbackData = json.RawMessage(callbackData)
	}
	return p, nil
}

func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// Create inserts a payment
func (r *PostgresPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (booking_id, user_id, phone_number, amount, status,
			merchant_request_id, checkout_request_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		p.BookingID,
		p.UserID,
		p.PhoneNumber,
		p.Amount.String(),
		p.Status,
		p.MerchantRequestID,
		p.CheckoutRequestID,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrPaymentAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresPaymentRepository) getOne(ctx context.Context, where string, arg any) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where
	p, err := scanPayment(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	return p, err
}

// GetByID retrieves a payment by ID
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByBookingID retrieves the payment of a booking
func (r *PostgresPaymentRepository) GetByBookingID(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	return r.getOne(ctx, "booking_id = $1", bookingID)
}

// GetByCheckoutRequestID retrieves a payment by gateway correlation id
func (r *PostgresPaymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Payment, error) {
	if checkoutRequestID == "" {
		return nil, domain.ErrPaymentNotFound
	}
	return r.getOne(ctx, "checkout_request_id = $1", checkoutRequestID)
}

// ListPendingWithCheckout retrieves pending payments awaiting a gateway result
func (r *PostgresPaymentRepository) ListPendingWithCheckout(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE status = 'pending' AND checkout_request_id <> '' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`, olderThan, limit)
}

// ListStaleInitiations retrieves pending pushes the gateway never acknowledged
func (r *PostgresPaymentRepository) ListStaleInitiations(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE status = 'pending' AND checkout_request_id = '' AND phone_number <> $3 AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, olderThan, limit, domain.FreePhoneNumber)
}

func (r *PostgresPaymentRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListTransitions retrieves the audit trail of a payment
func (r *PostgresPaymentRepository) ListTransitions(ctx context.Context, paymentID int64) ([]*domain.PaymentTransition, error) {
	query := `SELECT id, payment_id, from_status, to_status, source, reason, created_at
		FROM payment_transitions WHERE payment_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transitions []*domain.PaymentTransition
	for rows.Next() {
		t := &domain.PaymentTransition{}
		if err := rows.Scan(&t.ID, &t.PaymentID, &t.FromStatus, &t.ToStatus, &t.Source, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

// Settle runs fn with the payment and booking rows locked FOR UPDATE.
// Payment is locked before booking everywhere, so concurrent settlements cannot deadlock.
func (r *PostgresPaymentRepository) Settle(ctx context.Context, paymentID int64, fn SettleFunc) (*domain.Payment, *domain.Booking, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	payment, err := scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock payment %d: %w", paymentID, err)
	}

	booking, err := scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, payment.BookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock booking %d: %w", payment.BookingID, err)
	}

	settlement, err := fn(payment, booking)
	if err != nil {
		return nil, nil, err
	}
	if !settlement.Write {
		return payment, booking, nil
	}

	if err := updatePayment(ctx, tx, payment); err != nil {
		return nil, nil, err
	}
	if err := updateBookingStatus(ctx, tx, booking); err != nil {
		return nil, nil, err
	}
	if settlement.ConfirmedBooking {
		if err := deductInventory(ctx, tx, booking); err != nil {
			return nil, nil, err
		}
	}
	if t := settlement.Transition; t != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO payment_transitions (id, payment_id, from_status, to_status, source, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.PaymentID, t.FromStatus, t.ToStatus, t.Source, t.Reason, t.CreatedAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to record transition: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return payment, booking, nil
}

func updatePayment(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `
		UPDATE payments SET
			phone_number = $1, amount = $2::text::numeric, status = $3,
			merchant_request_id = $4, checkout_request_id = $5, receipt_number = $6,
			transaction_date = $7, callback_received = $8, result_code = $9,
			result_desc = $10, callback_data = $11::jsonb, orphaned = $12, updated_at = $13
		WHERE id = $14
	`
	tag, err := tx.Exec(ctx, query,
		p.PhoneNumber,
		p.Amount.String(),
		p.Status,
		p.MerchantRequestID,
		p.CheckoutRequestID,
		p.ReceiptNumber,
		p.TransactionDate,
		p.CallbackReceived,
		p.ResultCode,
		p.ResultDesc,
		jsonArg(p.CallbackData),
		p.Orphaned,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func updateBookingStatus(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	_, err := tx.Exec(ctx, `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`,
		b.Status, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update booking %d: %w", b.ID, err)
	}
	return nil
}

// deductInventory takes the confirmed quantity off the ticket class, clamped at
// zero, and adds it to the event's sold counter
func deductInventory(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	var available int
	err := tx.QueryRow(ctx,
		`SELECT quantity_available FROM ticket_classes WHERE id = $1 FOR UPDATE`, b.TicketClassID,
	).Scan(&available)
	if err != nil {
		return fmt.Errorf("failed to lock ticket class %d: %w", b.TicketClassID, err)
	}

	remaining := available - b.Quantity
	if remaining < 0 {
		logger.Get().Component("repository").Warn("ticket class oversold, clamping at zero",
			zap.Int64("booking_id", b.ID),
			zap.Int64("ticket_class_id", b.TicketClassID),
			zap.Int("available", available),
			zap.Int("quantity", b.Quantity),
		)
		remaining = 0
	}

	if _, err := tx.Exec(ctx, `UPDATE ticket_classes SET quantity_available = $1 WHERE id = $2`,
		remaining, b.TicketClassID); err != nil {
		return fmt.Errorf("failed to deduct ticket class %d: %w", b.TicketClassID, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE events SET tickets_sold = tickets_sold + $1, updated_at = $2 WHERE id = $3`,
		b.Quantity, b.UpdatedAt, b.EventID); err != nil {
		return fmt.Errorf("failed to update sold count for event %d: %w", b.EventID, err)
	}
	return nil
}

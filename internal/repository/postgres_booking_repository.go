package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

const bookingColumns = `id, user_id, event_id, ticket_class_id, category, quantity,
	unit_price::text, total_amount::text, status, expires_at, created_at, updated_at`

// PostgresBookingRepository implements BookingRepository using PostgreSQL
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	b := &domain.Booking{}
	var unitPrice, total string
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.EventID,
		&b.TicketClassID,
		&b.Category,
		&b.Quantity,
		&unitPrice,
		&total,
		&b.Status,
		&b.ExpiresAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if b.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("invalid unit price for booking %d: %w", b.ID, err)
	}
	if b.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("invalid total for booking %d: %w", b.ID, err)
	}
	return b, nil
}

// Create inserts a booking
func (r *PostgresBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	b.Recalculate()
	query := `
		INSERT INTO bookings (user_id, event_id, ticket_class_id, category, quantity,
			unit_price, total_amount, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric, $8, $9, $10, $11)
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query,
		b.UserID,
		b.EventID,
		b.TicketClassID,
		b.Category,
		b.Quantity,
		b.UnitPrice.String(),
		b.TotalAmount.String(),
		b.Status,
		b.ExpiresAt,
		b.CreatedAt,
		b.UpdatedAt,
	).Scan(&b.ID)
}

// GetByID retrieves a booking by ID
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	return b, err
}

// ListByUser retrieves a user's bookings, newest first
func (r *PostgresBookingRepository) ListByUser(ctx context.Context, userID string, status *domain.BookingStatus) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1`
	args := []any{userID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// CompareAndSetStatus updates the status only if it still equals from
func (r *PostgresBookingRepository) CompareAndSetStatus(ctx context.Context, id int64, from, to domain.BookingStatus, now time.Time) (bool, error) {
	query := `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	tag, err := r.pool.Exec(ctx, query, to, now, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpirePending expires stale pending bookings. Rows locked by a concurrent
// settlement are skipped and picked up on the next run.
func (r *PostgresBookingRepository) ExpirePending(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	query := `
		UPDATE bookings SET status = 'expired', updated_at = $1
		WHERE id IN (
			SELECT id FROM bookings
			WHERE status = 'pending' AND expires_at < $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

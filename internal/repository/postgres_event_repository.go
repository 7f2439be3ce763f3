package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

const eventColumns = `id, title, venue, address, city, start_date, end_date,
	total_capacity, tickets_sold, is_active, is_featured, is_coming_soon,
	booking_opens_at, created_at, updated_at`

// price is read as text so it round-trips through decimal without float conversion
const ticketClassColumns = `id, event_id, category, price::text, quantity_available, description`

// PostgresEventRepository implements EventRepository using PostgreSQL
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	e := &domain.Event{}
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Venue,
		&e.Address,
		&e.City,
		&e.StartDate,
		&e.EndDate,
		&e.TotalCapacity,
		&e.TicketsSold,
		&e.IsActive,
		&e.IsFeatured,
		&e.IsComingSoon,
		&e.BookingOpensAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanTicketClass(row pgx.Row) (*domain.TicketClass, error) {
	tc := &domain.TicketClass{}
	var price string
	if err := row.Scan(&tc.ID, &tc.EventID, &tc.Category, &price, &tc.QuantityAvailable, &tc.Description); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for ticket class %d: %w", price, tc.ID, err)
	}
	tc.Price = p
	return tc, nil
}

// GetEvent retrieves an event by ID
func (r *PostgresEventRepository) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	return e, err
}

// GetTicketClass retrieves a ticket class by ID
func (r *PostgresEventRepository) GetTicketClass(ctx context.Context, id int64) (*domain.TicketClass, error) {
	query := `SELECT ` + ticketClassColumns + ` FROM ticket_classes WHERE id = $1`
	tc, err := scanTicketClass(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTicketClassNotFound
	}
	return tc, err
}

// ListTicketClasses retrieves all ticket classes of an event
func (r *PostgresEventRepository) ListTicketClasses(ctx context.Context, eventID int64) ([]*domain.TicketClass, error) {
	query := `SELECT ` + ticketClassColumns + ` FROM ticket_classes WHERE event_id = $1 ORDER BY price ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []*domain.TicketClass
	for rows.Next() {
		tc, err := scanTicketClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, tc)
	}
	return classes, rows.Err()
}

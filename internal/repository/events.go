package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ticketbooth/internal/apperr"
	"ticketbooth/internal/model"
)

type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventColumns = `id, title, description, venue, date, total_tickets, available_tickets, price, status, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (model.Event, error) {
	var event model.Event
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Venue,
		&event.Date,
		&event.TotalTickets,
		&event.AvailableTickets,
		&event.Price,
		&event.Status,
		&event.CreatedBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	return event, err
}

func (s *EventStore) Create(ctx context.Context, event model.Event) (model.Event, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO events (title, description, venue, date, total_tickets, available_tickets, price, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8)
		RETURNING `+eventColumns+`
	`, event.Title, event.Description, event.Venue, event.Date, event.TotalTickets, event.Price, event.Status, event.CreatedBy)
	return scanEvent(row)
}

func (s *EventStore) GetByID(ctx context.Context, eventID int64) (model.Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Event{}, apperr.NotFound("event_not_found", "Event not found")
	}
	return event, err
}

type EventFilter struct {
	Status string
	Venue  string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

func (s *EventStore) List(ctx context.Context, filter EventFilter) ([]model.Event, int, error) {
	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Venue != "" {
		args = append(args, "%"+filter.Venue+"%")
		where = append(where, fmt.Sprintf("venue ILIKE $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM events`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit)
	limitPos := len(args)
	args = append(args, filter.Offset)
	offsetPos := len(args)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM events%s ORDER BY date LIMIT $%d OFFSET $%d`,
		eventColumns, clause, limitPos, offsetPos,
	), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]model.Event, 0, filter.Limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	return events, total, rows.Err()
}

type EventUpdate struct {
	Title        *string
	Description  *string
	Venue        *string
	Date         *time.Time
	TotalTickets *int
	Price        *float64
	Status       *string
}

// Update mutates an event under the same row lock purchases take, so a
// capacity change never races an in-flight purchase. A change to
// total_tickets shifts available_tickets by the same delta, clamped at
// zero.
func (s *EventStore) Update(ctx context.Context, eventID int64, update EventUpdate) (model.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Event{}, err
	}
	defer tx.Rollback(ctx)

	current, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Event{}, apperr.NotFound("event_not_found", "Event not found")
		}
		return model.Event{}, err
	}

	available := current.AvailableTickets
	if update.TotalTickets != nil {
		sold := current.TotalTickets - current.AvailableTickets
		available = *update.TotalTickets - sold
		if available < 0 {
			available = 0
		}
	}

	event, err := scanEvent(tx.QueryRow(ctx, `
		UPDATE events
		SET title = COALESCE($2, title),
			description = COALESCE($3, description),
			venue = COALESCE($4, venue),
			date = COALESCE($5, date),
			total_tickets = COALESCE($6, total_tickets),
			available_tickets = $7,
			price = COALESCE($8, price),
			status = COALESCE($9, status),
			updated_at = now()
		WHERE id = $1
		RETURNING `+eventColumns+`
	`, eventID, update.Title, update.Description, update.Venue, update.Date, update.TotalTickets, available, update.Price, update.Status))
	if err != nil {
		return model.Event{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Event{}, err
	}
	return event, nil
}

func (s *EventStore) Delete(ctx context.Context, eventID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Purchase converts quantity units of inventory into ticket rows, one row
// per unit, inside a single transaction. The SELECT ... FOR UPDATE
// serializes concurrent purchasers of the same event so the
// read-check-write on available_tickets cannot race. Any failure rolls the
// whole transaction back.
func (s *EventStore) Purchase(ctx context.Context, eventID, userID int64, quantity int) (model.Event, []model.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Event{}, nil, err
	}
	defer tx.Rollback(ctx)

	event, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Event{}, nil, apperr.NotFound("event_not_found", "Event not found")
		}
		return model.Event{}, nil, err
	}

	if !event.OnSale() {
		return model.Event{}, nil, apperr.Validation("event_not_on_sale", "Tickets are not on sale for this event")
	}
	if event.AvailableTickets < quantity {
		return model.Event{}, nil, apperr.Capacity(event.AvailableTickets, quantity)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE events
		SET available_tickets = available_tickets - $1, updated_at = now()
		WHERE id = $2
	`, quantity, eventID); err != nil {
		return model.Event{}, nil, err
	}

	tickets := make([]model.Ticket, 0, quantity)
	for i := 0; i < quantity; i++ {
		ticket := model.Ticket{
			EventID:       eventID,
			UserID:        &userID,
			Quantity:      1,
			PurchasePrice: event.Price,
			Status:        model.TicketStatusConfirmed,
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO tickets (event_id, user_id, quantity, purchase_price, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, ticket.EventID, ticket.UserID, ticket.Quantity, ticket.PurchasePrice, ticket.Status)
		if err := row.Scan(&ticket.ID, &ticket.CreatedAt); err != nil {
			return model.Event{}, nil, err
		}
		tickets = append(tickets, ticket)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Event{}, nil, err
	}

	event.AvailableTickets -= quantity
	return event, tickets, nil
}

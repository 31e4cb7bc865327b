package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ticketbooth/internal/model"
)

type TicketStore struct {
	pool *pgxpool.Pool
}

func NewTicketStore(pool *pgxpool.Pool) *TicketStore {
	return &TicketStore{pool: pool}
}

func (s *TicketStore) ListForUser(ctx context.Context, userID int64) ([]model.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, user_id, quantity, purchase_price, status, created_at
		FROM tickets
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		var ticket model.Ticket
		if err := rows.Scan(&ticket.ID, &ticket.EventID, &ticket.UserID, &ticket.Quantity, &ticket.PurchasePrice, &ticket.Status, &ticket.CreatedAt); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *TicketStore) CountForEvent(ctx context.Context, eventID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tickets WHERE event_id = $1`, eventID).Scan(&count)
	return count, err
}

package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"ticketbooth/internal/apperr"
	"ticketbooth/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// writeFailure is the single place errors become HTTP statuses. Untagged
// errors are logged with full detail and surfaced only as a generic 500.
func writeFailure(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.From(err); ok {
		writeError(w, statusForKind(appErr.Kind), appErr.Code, appErr.Message)
		if appErr.Kind == apperr.KindInternal {
			log.Printf("internal error: %v", err)
		}
		return
	}
	log.Printf("unhandled error: %v", err)
	writeError(w, http.StatusInternalServerError, "server_error", "Internal server error")
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindCapacity:
		return http.StatusBadRequest
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type listMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type userSummary struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func mapUser(user model.User) userSummary {
	return userSummary{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

type eventSummary struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Venue            string    `json:"venue"`
	Date             time.Time `json:"date"`
	TotalTickets     int       `json:"total_tickets"`
	AvailableTickets int       `json:"available_tickets"`
	Price            float64   `json:"price"`
	Status           string    `json:"status"`
	CreatedBy        *int64    `json:"created_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func mapEvent(event model.Event) eventSummary {
	return eventSummary{
		ID:               event.ID,
		Title:            event.Title,
		Description:      event.Description,
		Venue:            event.Venue,
		Date:             event.Date,
		TotalTickets:     event.TotalTickets,
		AvailableTickets: event.AvailableTickets,
		Price:            event.Price,
		Status:           event.Status,
		CreatedBy:        event.CreatedBy,
		CreatedAt:        event.CreatedAt,
		UpdatedAt:        event.UpdatedAt,
	}
}

type ticketSummary struct {
	ID            int64     `json:"id"`
	EventID       int64     `json:"event_id"`
	Quantity      int       `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func mapTicket(ticket model.Ticket) ticketSummary {
	return ticketSummary{
		ID:            ticket.ID,
		EventID:       ticket.EventID,
		Quantity:      ticket.Quantity,
		PurchasePrice: ticket.PurchasePrice,
		Status:        ticket.Status,
		CreatedAt:     ticket.CreatedAt,
	}
}

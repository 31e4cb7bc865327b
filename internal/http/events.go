package http

import (
	"net/http"
	"strings"
	"time"

	"ticketbooth/internal/apperr"
	"ticketbooth/internal/model"
	"ticketbooth/internal/repository"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := repository.EventFilter{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Venue:  strings.TrimSpace(r.URL.Query().Get("venue")),
		Limit:  queryInt(r, "limit", 20),
		Offset: queryInt(r, "offset", 0),
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Status != "" && !model.IsValidEventStatus(filter.Status) {
		writeFailure(w, apperr.Validation("invalid_status", "Invalid event status filter"))
		return
	}

	from, err := parseDateParam(r.URL.Query().Get("from_date"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	to, err := parseDateParam(r.URL.Query().Get("to_date"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	filter.From, filter.To = from, to

	events, total, err := s.events.List(r.Context(), filter)
	if err != nil {
		writeFailure(w, err)
		return
	}

	summaries := make([]eventSummary, 0, len(events))
	for _, event := range events {
		summaries = append(summaries, mapEvent(event))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summaries,
		"meta": listMeta{Total: total, Limit: filter.Limit, Offset: filter.Offset},
	})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeFailure(w, err)
		return
	}

	event, err := s.events.GetByID(r.Context(), eventID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": mapEvent(event)})
}

type createEventRequest struct {
	Title        string    `json:"title" validate:"required"`
	Description  string    `json:"description"`
	Venue        string    `json:"venue" validate:"required"`
	Date         time.Time `json:"date" validate:"required"`
	TotalTickets int       `json:"total_tickets" validate:"min=0"`
	Price        float64   `json:"price" validate:"min=0"`
	Status       string    `json:"status" validate:"omitempty,oneof=upcoming live completed cancelled"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
		return
	}

	var req createEventRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if req.Status == "" {
		req.Status = model.EventStatusUpcoming
	}

	creator := claims.UserID
	event, err := s.events.Create(r.Context(), model.Event{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Venue:        strings.TrimSpace(req.Venue),
		Date:         req.Date.UTC(),
		TotalTickets: req.TotalTickets,
		Price:        req.Price,
		Status:       req.Status,
		CreatedBy:    &creator,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Event created",
		"data":    mapEvent(event),
	})
}

type updateEventRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Venue        *string    `json:"venue,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	TotalTickets *int       `json:"total_tickets,omitempty" validate:"omitempty,min=0"`
	Price        *float64   `json:"price,omitempty" validate:"omitempty,min=0"`
	Status       *string    `json:"status,omitempty" validate:"omitempty,oneof=upcoming live completed cancelled"`
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeFailure(w, err)
		return
	}

	var req updateEventRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeFailure(w, err)
		return
	}

	event, err := s.events.Update(r.Context(), eventID, repository.EventUpdate{
		Title:        trimmed(req.Title),
		Description:  req.Description,
		Venue:        trimmed(req.Venue),
		Date:         req.Date,
		TotalTickets: req.TotalTickets,
		Price:        req.Price,
		Status:       req.Status,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Event updated",
		"data":    mapEvent(event),
	})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeFailure(w, err)
		return
	}

	deleted, err := s.events.Delete(r.Context(), eventID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "event_not_found", "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event deleted"})
}

type purchaseRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
		return
	}
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeFailure(w, err)
		return
	}

	var req purchaseRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeFailure(w, err)
		return
	}

	// Purchaser identity comes from the authenticated token, never the
	// request body.
	event, tickets, err := s.events.Purchase(r.Context(), eventID, claims.UserID, req.Quantity)
	if err != nil {
		writeFailure(w, err)
		return
	}

	summaries := make([]ticketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		summaries = append(summaries, mapTicket(ticket))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Purchase successful",
		"data":    mapEvent(event),
		"tickets": summaries,
	})
}

func (s *Server) handleListMyTickets(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
		return
	}

	tickets, err := s.tickets.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		writeFailure(w, err)
		return
	}

	summaries := make([]ticketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		summaries = append(summaries, mapTicket(ticket))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": summaries})
}

func parseDateParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return &parsed, nil
	}
	return nil, apperr.Validation("invalid_date", "Dates must be RFC 3339 or YYYY-MM-DD")
}

package http

import (
	"net/http"
	"strings"
	"time"

	"ticketbooth/internal/apperr"
	"ticketbooth/internal/crypto"
	"ticketbooth/internal/model"
	"ticketbooth/internal/repository"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	offset := queryInt(r, "offset", 0)

	users, total, err := s.users.List(r.Context(), limit, offset)
	if err != nil {
		writeFailure(w, err)
		return
	}

	summaries := make([]userSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, mapUser(user))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summaries,
		"meta": listMeta{Total: total, Limit: limit, Offset: offset},
	})
}

type createUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Role      string `json:"role" validate:"omitempty,oneof=user admin"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeFailure(w, err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Role == "" {
		req.Role = model.RoleUser
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeFailure(w, apperr.Internal("password_hash_failed", err))
		return
	}

	user, err := s.users.Create(r.Context(), req.Email, hash, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), req.Role)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created",
		"data":    mapUser(user),
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeFailure(w, err)
		return
	}
	if claims.Role != model.RoleAdmin && claims.UserID != userID {
		writeError(w, http.StatusForbidden, "forbidden", "You can only view your own profile")
		return
	}

	user, err := s.users.GetByID(r.Context(), userID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": mapUser(user)})
}

type updateUserRequest struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Role      *string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeFailure(w, err)
		return
	}

	isAdmin := claims.Role == model.RoleAdmin
	if !isAdmin && claims.UserID != userID {
		writeError(w, http.StatusForbidden, "forbidden", "You can only update your own profile")
		return
	}

	var req updateUserRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeFailure(w, err)
		return
	}

	// Privilege-escalation guard: only admins may touch role or active
	// status, on any record including their own.
	if !isAdmin && (req.Role != nil || req.IsActive != nil) {
		writeError(w, http.StatusForbidden, "forbidden", "You cannot change role or active status")
		return
	}

	update := repository.UserUpdate{
		FirstName: trimmed(req.FirstName),
		LastName:  trimmed(req.LastName),
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email != "" {
			update.Email = &email
		}
	}
	if req.Password != nil && strings.TrimSpace(*req.Password) != "" {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			writeFailure(w, apperr.Internal("password_hash_failed", err))
			return
		}
		update.PasswordHash = &hash
	}
	if isAdmin {
		update.Role = req.Role
		update.IsActive = req.IsActive
	}

	user, err := s.users.Update(r.Context(), userID, update)
	if err != nil {
		writeFailure(w, err)
		return
	}

	// Deactivation kills every live session immediately.
	if update.IsActive != nil && !*update.IsActive {
		if _, err := s.sessions.RevokeAllForUser(r.Context(), userID, time.Now().UTC()); err != nil {
			writeFailure(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User updated",
		"data":    mapUser(user),
	})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeFailure(w, err)
		return
	}

	deleted, err := s.users.Delete(r.Context(), userID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func (s *Server) handleUserLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeFailure(w, err)
		return
	}

	count, err := s.sessions.RevokeAllForUser(r.Context(), userID, time.Now().UTC())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Sessions revoked",
		"count":   count,
	})
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

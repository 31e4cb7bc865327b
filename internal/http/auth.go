package http

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ticketbooth/internal/apperr"
	"ticketbooth/internal/auth"
	"ticketbooth/internal/crypto"
	"ticketbooth/internal/model"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Message string      `json:"message"`
	Data    userSummary `json:"data"`
	Token   string      `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeFailure(w, err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeFailure(w, apperr.Internal("password_hash_failed", err))
		return
	}

	user, err := s.users.Create(r.Context(), req.Email, hash, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), model.RoleUser)
	if err != nil {
		writeFailure(w, err)
		return
	}

	token, err := s.issueSession(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeFailure(w, apperr.Internal("token_error", err))
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Message: "Registration successful",
		Data:    mapUser(user),
		Token:   token,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeFailure(w, err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	ip := clientIP(r)

	if s.loginThrottled(r.Context(), ip) {
		writeError(w, http.StatusTooManyRequests, "too_many_attempts", "Too many login attempts, try again later")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		// Same message for unknown email and wrong password so accounts
		// cannot be enumerated.
		if appErr, ok := apperr.From(err); ok && appErr.Kind == apperr.KindNotFound {
			s.recordLoginFailure(r.Context(), ip)
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		writeFailure(w, err)
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.recordLoginFailure(r.Context(), ip)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "account_inactive", "Account is deactivated")
		return
	}

	token, err := s.issueSession(r.Context(), user, r.UserAgent(), ip)
	if err != nil {
		writeFailure(w, apperr.Internal("token_error", err))
		return
	}
	s.clearLoginFailures(r.Context(), ip)

	writeJSON(w, http.StatusOK, authResponse{
		Message: "Login successful",
		Data:    mapUser(user),
		Token:   token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	tokenHash := tokenHashFromContext(r.Context())
	if tokenHash == "" {
		writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
		return
	}

	if _, err := s.sessions.Revoke(r.Context(), tokenHash, time.Now().UTC()); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
		return
	}

	count, err := s.sessions.RevokeAllForUser(r.Context(), claims.UserID, time.Now().UTC())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged out everywhere",
		"count":   count,
	})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
		return
	}

	user, err := s.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": mapUser(user)})
}

// issueSession mints a token and records its ledger row. A token without a
// ledger row is unusable by policy, so a failed insert fails the login.
func (s *Server) issueSession(ctx context.Context, user model.User, userAgent, ip string) (string, error) {
	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.TokenTTL, auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	session := model.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(token),
		ExpiresAt: now.Add(s.cfg.TokenTTL),
		CreatedAt: now,
	}
	if userAgent != "" {
		session.DeviceInfo = &userAgent
	}
	if ip != "" {
		session.IPAddress = &ip
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}

// Login throttling uses redis when configured; without redis it is a
// no-op, mirroring how the rest of the service treats redis as optional.

func loginAttemptsKey(ip string) string {
	return "login_attempts:" + ip
}

func (s *Server) loginThrottled(ctx context.Context, ip string) bool {
	if s.redis == nil || ip == "" {
		return false
	}
	count, err := s.redis.Get(ctx, loginAttemptsKey(ip)).Int()
	if err != nil {
		return false
	}
	return count >= s.cfg.LoginRateLimit
}

func (s *Server) recordLoginFailure(ctx context.Context, ip string) {
	if s.redis == nil || ip == "" {
		return
	}
	key := loginAttemptsKey(ip)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("login throttle incr error: %v", err)
		return
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, s.cfg.LoginRateWindow).Err(); err != nil {
			log.Printf("login throttle expire error: %v", err)
		}
	}
}

func (s *Server) clearLoginFailures(ctx context.Context, ip string) {
	if s.redis == nil || ip == "" {
		return
	}
	if err := s.redis.Del(ctx, loginAttemptsKey(ip)).Err(); err != nil {
		log.Printf("login throttle del error: %v", err)
	}
}

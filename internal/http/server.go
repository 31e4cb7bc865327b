package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"ticketbooth/internal/apperr"
	"ticketbooth/internal/auth"
	"ticketbooth/internal/config"
	"ticketbooth/internal/crypto"
	"ticketbooth/internal/repository"
)

type Server struct {
	cfg      config.Config
	pool     *pgxpool.Pool
	users    *repository.UserStore
	sessions *repository.SessionStore
	events   *repository.EventStore
	tickets  *repository.TicketStore
	redis    *redis.Client
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) *Server {
	return &Server{
		cfg:      cfg,
		pool:     pool,
		users:    repository.NewUserStore(pool),
		sessions: repository.NewSessionStore(pool),
		events:   repository.NewEventStore(pool),
		tickets:  repository.NewTicketStore(pool),
		redis:    redisClient,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.authMiddleware).Post("/logout", s.handleLogout)
			r.With(s.authMiddleware).Post("/logout-all", s.handleLogoutAll)
			r.With(s.authMiddleware).Get("/me", s.handleGetMe)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Get("/{eventID}", s.handleGetEvent)
			r.With(s.authMiddleware, s.requireAdmin).Post("/", s.handleCreateEvent)
			r.With(s.authMiddleware, s.requireAdmin).Put("/{eventID}", s.handleUpdateEvent)
			r.With(s.authMiddleware, s.requireAdmin).Delete("/{eventID}", s.handleDeleteEvent)
			r.With(s.authMiddleware).Post("/{eventID}/purchase", s.handlePurchase)
		})

		r.With(s.authMiddleware).Get("/tickets", s.handleListMyTickets)

		r.Route("/users", func(r chi.Router) {
			r.With(s.authMiddleware, s.requireAdmin).Get("/", s.handleListUsers)
			r.With(s.authMiddleware, s.requireAdmin).Post("/", s.handleCreateUser)
			r.With(s.authMiddleware).Get("/{userID}", s.handleGetUser)
			r.With(s.authMiddleware).Put("/{userID}", s.handleUpdateUser)
			r.With(s.authMiddleware, s.requireAdmin).Delete("/{userID}", s.handleDeleteUser)
			r.With(s.authMiddleware, s.requireAdmin).Post("/{userID}/logout-all", s.handleUserLogoutAll)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, database := "ok", "connected"
	code := http.StatusOK
	if err := s.pool.Ping(ctx); err != nil {
		status, database = "degraded", "disconnected"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]string{
		"status":    status,
		"database":  database,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Auth

type claimsKey struct{}
type tokenHashKey struct{}

// authMiddleware admits a request only when the token's signature and
// expiry verify AND the session ledger still honors it. Credential
// failures are all 401; a ledger store fault is a 500 so callers can tell
// "not authorized" from "broken".
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "token_expired", "Token has expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
			return
		}

		tokenHash := crypto.HashToken(token)
		session, err := s.sessions.GetByTokenHash(r.Context(), tokenHash)
		if err != nil {
			if appErr, ok := apperr.From(err); ok && appErr.Kind == apperr.KindNotFound {
				writeError(w, http.StatusUnauthorized, "session_revoked", "Session is no longer valid")
				return
			}
			log.Printf("session lookup error: %v", err)
			writeError(w, http.StatusInternalServerError, "server_error", "Internal server error")
			return
		}
		if !session.Valid(time.Now().UTC()) {
			writeError(w, http.StatusUnauthorized, "session_revoked", "Session is no longer valid")
			return
		}

		// Ledger activity tracking must not block or fail the request.
		go func() {
			touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.sessions.Touch(touchCtx, tokenHash, time.Now().UTC()); err != nil {
				log.Printf("session touch error: %v", err)
			}
		}()

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = context.WithValue(ctx, tokenHashKey{}, tokenHash)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
			return
		}
		if claims.Role != "admin" {
			writeError(w, http.StatusForbidden, "admin_only", "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func tokenHashFromContext(ctx context.Context) string {
	value := ctx.Value(tokenHashKey{})
	hash, _ := value.(string)
	return hash
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid_"+name, "Invalid "+name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}

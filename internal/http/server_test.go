package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ticketbooth/internal/config"
	"ticketbooth/internal/db"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("TICKETBOOTH_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("TICKETBOOTH_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url, 5*time.Second)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	if err := db.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	return pool
}

func newTestServer(t *testing.T, pool *pgxpool.Pool) *httptest.Server {
	cfg := config.Config{
		JWTSecret: "test-secret",
		JWTIssuer: "test-issuer",
		TokenTTL:  time.Hour,
	}
	server := NewServer(cfg, pool, nil)
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)
	return app
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s.%d@example.local", prefix, time.Now().UnixNano())
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

type authPayload struct {
	Message string      `json:"message"`
	Data    userSummary `json:"data"`
	Token   string      `json:"token"`
}

func registerUser(t *testing.T, app *httptest.Server, email, password string) authPayload {
	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/register", "", map[string]string{
		"email":      email,
		"password":   password,
		"first_name": "Test",
		"last_name":  "User",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	var payload authPayload
	decodeBody(t, resp, &payload)
	if payload.Token == "" {
		t.Fatalf("register: expected token in response")
	}
	return payload
}

func loginUser(t *testing.T, app *httptest.Server, email, password string) authPayload {
	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var payload authPayload
	decodeBody(t, resp, &payload)
	return payload
}

func createTestEvent(t *testing.T, pool *pgxpool.Pool, totalTickets int, status string) int64 {
	var eventID int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO events (title, venue, date, total_tickets, available_tickets, price, status)
		VALUES ('Test Concert', 'Test Hall', now() + interval '7 days', $1, $1, 25.00, $2)
		RETURNING id
	`, totalTickets, status).Scan(&eventID)
	if err != nil {
		t.Fatalf("event insert error: %v", err)
	}
	return eventID
}

func TestRegisterLoginLogout(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app := newTestServer(t, pool)

	email := uniqueEmail("alice")
	registered := registerUser(t, app, email, "Password123")
	if registered.Data.Role != "user" {
		t.Fatalf("expected role user, got %s", registered.Data.Role)
	}

	// A ledger row must exist for the issued token.
	var sessionCount int
	if err := pool.QueryRow(context.Background(), `SELECT count(*) FROM sessions WHERE user_id = $1`, registered.Data.ID).Scan(&sessionCount); err != nil {
		t.Fatalf("session count error: %v", err)
	}
	if sessionCount != 1 {
		t.Fatalf("expected 1 session row, got %d", sessionCount)
	}

	// Token admits authenticated requests.
	resp := doReq(t, http.MethodGet, app.URL+"/api/auth/me", registered.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.StatusCode)
	}

	// Correct password logs in; wrong password gets the generic message.
	loginUser(t, app, email, "Password123")

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "WrongPassword",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", resp.StatusCode)
	}
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if errBody["message"] != "Invalid email or password" {
		t.Fatalf("expected generic message, got %q", errBody["message"])
	}

	// Unknown account renders the identical message.
	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"email":    uniqueEmail("nobody"),
		"password": "Password123",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown login: expected 401, got %d", resp.StatusCode)
	}
	var unknownBody map[string]string
	decodeBody(t, resp, &unknownBody)
	if unknownBody["message"] != errBody["message"] {
		t.Fatalf("messages must not distinguish unknown user from wrong password")
	}

	// Logout revokes the presented token; subsequent use is rejected.
	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/logout", registered.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, app.URL+"/api/auth/me", registered.Token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPurchaseFlow(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app := newTestServer(t, pool)

	buyer := registerUser(t, app, uniqueEmail("buyer"), "Password123")
	eventID := createTestEvent(t, pool, 5, "upcoming")
	purchaseURL := fmt.Sprintf("%s/api/events/%d/purchase", app.URL, eventID)

	resp := doReq(t, http.MethodPost, purchaseURL, buyer.Token, map[string]int{"quantity": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purchase: expected 200, got %d", resp.StatusCode)
	}
	var purchased struct {
		Data    eventSummary    `json:"data"`
		Tickets []ticketSummary `json:"tickets"`
	}
	decodeBody(t, resp, &purchased)
	if purchased.Data.AvailableTickets != 2 {
		t.Fatalf("expected 2 remaining, got %d", purchased.Data.AvailableTickets)
	}
	if len(purchased.Tickets) != 3 {
		t.Fatalf("expected 3 ticket rows, got %d", len(purchased.Tickets))
	}

	// Oversized second purchase fails with the exact counts and leaves
	// inventory untouched.
	resp = doReq(t, http.MethodPost, purchaseURL, buyer.Token, map[string]int{"quantity": 3})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized purchase: expected 400, got %d", resp.StatusCode)
	}
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if errBody["message"] != "Not enough tickets available. Available: 2, Requested: 3" {
		t.Fatalf("unexpected capacity message: %q", errBody["message"])
	}

	resp = doReq(t, http.MethodGet, fmt.Sprintf("%s/api/events/%d", app.URL, eventID), "", nil)
	var fetched struct {
		Data eventSummary `json:"data"`
	}
	decodeBody(t, resp, &fetched)
	if fetched.Data.AvailableTickets != 2 {
		t.Fatalf("failed purchase must not change inventory, got %d", fetched.Data.AvailableTickets)
	}

	// Purchases against closed events are rejected.
	closedID := createTestEvent(t, pool, 5, "completed")
	resp = doReq(t, http.MethodPost, fmt.Sprintf("%s/api/events/%d/purchase", app.URL, closedID), buyer.Token, map[string]int{"quantity": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("closed event: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, app.URL+"/api/events/999999999/purchase", buyer.Token, map[string]int{"quantity": 1})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing event: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The buyer sees one ticket row per purchased unit.
	resp = doReq(t, http.MethodGet, app.URL+"/api/tickets", buyer.Token, nil)
	var owned struct {
		Data []ticketSummary `json:"data"`
	}
	decodeBody(t, resp, &owned)
	if len(owned.Data) != 3 {
		t.Fatalf("expected 3 owned tickets, got %d", len(owned.Data))
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app := newTestServer(t, pool)

	email := uniqueEmail("multi")
	first := registerUser(t, app, email, "Password123")
	second := loginUser(t, app, email, "Password123")
	third := loginUser(t, app, email, "Password123")

	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/logout-all", third.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout-all: expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Count int64 `json:"count"`
	}
	decodeBody(t, resp, &result)
	if result.Count != 3 {
		t.Fatalf("expected 3 revoked sessions, got %d", result.Count)
	}

	for i, token := range []string{first.Token, second.Token, third.Token} {
		resp := doReq(t, http.MethodGet, app.URL+"/api/auth/me", token, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %d: expected 401 after logout-all, got %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestSelfUpdateCannotEscalate(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app := newTestServer(t, pool)

	user := registerUser(t, app, uniqueEmail("plain"), "Password123")
	selfURL := fmt.Sprintf("%s/api/users/%d", app.URL, user.Data.ID)

	resp := doReq(t, http.MethodPut, selfURL, user.Token, map[string]string{"role": "admin"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("role escalation: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPut, selfURL, user.Token, map[string]bool{"is_active": false})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("is_active change: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Role is unchanged in the store.
	var role string
	if err := pool.QueryRow(context.Background(), `SELECT role FROM users WHERE id = $1`, user.Data.ID).Scan(&role); err != nil {
		t.Fatalf("role query error: %v", err)
	}
	if role != "user" {
		t.Fatalf("expected role user, got %s", role)
	}

	// Plain profile self-updates still work.
	resp = doReq(t, http.MethodPut, selfURL, user.Token, map[string]string{"first_name": "Renamed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("self update: expected 200, got %d", resp.StatusCode)
	}
	var updated struct {
		Data userSummary `json:"data"`
	}
	decodeBody(t, resp, &updated)
	if updated.Data.FirstName != "Renamed" {
		t.Fatalf("expected renamed profile, got %q", updated.Data.FirstName)
	}
}

func TestAdminEndpoints(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app := newTestServer(t, pool)

	email := uniqueEmail("admin")
	account := registerUser(t, app, email, "Password123")
	if _, err := pool.Exec(context.Background(), `UPDATE users SET role = 'admin' WHERE id = $1`, account.Data.ID); err != nil {
		t.Fatalf("promote error: %v", err)
	}
	// A fresh login carries the admin role in its claims.
	admin := loginUser(t, app, email, "Password123")

	plain := registerUser(t, app, uniqueEmail("member"), "Password123")

	// Non-admins cannot reach admin surfaces.
	resp := doReq(t, http.MethodGet, app.URL+"/api/users", plain.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("user list as non-admin: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, app.URL+"/api/users", admin.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user list as admin: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Event lifecycle through the API.
	resp = doReq(t, http.MethodPost, app.URL+"/api/events", admin.Token, map[string]interface{}{
		"title":         "Admin Gala",
		"venue":         "Main Hall",
		"date":          time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"total_tickets": 10,
		"price":         12.50,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("event create: expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Data eventSummary `json:"data"`
	}
	decodeBody(t, resp, &created)
	if created.Data.AvailableTickets != 10 {
		t.Fatalf("expected full availability, got %d", created.Data.AvailableTickets)
	}

	// Capacity change shifts availability by the delta.
	purchaseURL := fmt.Sprintf("%s/api/events/%d/purchase", app.URL, created.Data.ID)
	resp = doReq(t, http.MethodPost, purchaseURL, plain.Token, map[string]int{"quantity": 4})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purchase: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPut, fmt.Sprintf("%s/api/events/%d", app.URL, created.Data.ID), admin.Token, map[string]int{"total_tickets": 12})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("event update: expected 200, got %d", resp.StatusCode)
	}
	var updated struct {
		Data eventSummary `json:"data"`
	}
	decodeBody(t, resp, &updated)
	if updated.Data.AvailableTickets != 8 {
		t.Fatalf("expected availability 8 after capacity change, got %d", updated.Data.AvailableTickets)
	}

	// Admin can revoke a user's sessions.
	resp = doReq(t, http.MethodPost, fmt.Sprintf("%s/api/users/%d/logout-all", app.URL, plain.Data.ID), admin.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin logout-all: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, app.URL+"/api/auth/me", plain.Token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked user token: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealth(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app := newTestServer(t, pool)

	resp := doReq(t, http.MethodGet, app.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" || body["database"] != "connected" {
		t.Fatalf("unexpected health body: %v", body)
	}
	if body["timestamp"] == "" {
		t.Fatalf("expected timestamp in health body")
	}
}

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{
		UserID: 42,
		Email:  "alice@example.com",
		Role:   "user",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if claims.UserID != 42 || claims.Email != "alice@example.com" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAccessTokensAreUnique(t *testing.T) {
	claims := Claims{UserID: 7, Email: "bob@example.com", Role: "user"}
	first, err := NewAccessToken("secret", "issuer", time.Minute, claims)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	second, err := NewAccessToken("secret", "issuer", time.Minute, claims)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if first == second {
		t.Fatalf("two tokens for the same identity must not be identical")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: 1})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if _, err := ParseToken("other-secret", "issuer", token); err == nil {
		t.Fatalf("expected signature mismatch to error")
	}
}

func TestParseTokenWrongIssuer(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: 1})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if _, err := ParseToken("secret", "someone-else", token); err == nil {
		t.Fatalf("expected issuer mismatch to error")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", -time.Minute, Claims{UserID: 1})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	_, err = ParseToken("secret", "issuer", token)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("secret", "issuer", "not-a-token")
	if err == nil {
		t.Fatalf("expected malformed token to error")
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("malformed token must not look expired")
	}
}

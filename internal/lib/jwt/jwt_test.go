package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := "super-secret"

	tok, err := NewAccessToken(42, "ada", secret, time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	claims, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("UserID mismatch: got %d want 42", claims.UserID)
	}
	if claims.Username != "ada" {
		t.Fatalf("Username mismatch: got %q want %q", claims.Username, "ada")
	}
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := "refresh-secret"

	tok, err := NewRefreshToken(7, secret, time.Hour)
	if err != nil {
		t.Fatalf("NewRefreshToken error: %v", err)
	}

	claims, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.UserID != 7 {
		t.Fatalf("UserID mismatch: got %d want 7", claims.UserID)
	}
}

func TestRefreshToken_UniquePerIssuance(t *testing.T) {
	t.Parallel()

	secret := "refresh-secret"

	first, err := NewRefreshToken(7, secret, time.Hour)
	if err != nil {
		t.Fatalf("NewRefreshToken error: %v", err)
	}
	second, err := NewRefreshToken(7, secret, time.Hour)
	if err != nil {
		t.Fatalf("NewRefreshToken error: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct tokens per issuance")
	}
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	tok, err := NewAccessToken(1, "u", "secret", -1*time.Second)
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	_, err = ParseToken(tok, "secret")
	if err == nil {
		t.Fatalf("expected error for expired token, got nil")
	}
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewAccessToken(1, "u", "right-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	_, err = ParseToken(tok, "wrong-secret")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseToken_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ParseToken("not.a.jwt", "k")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenFileIsExpired(t *testing.T) {
	tf := &TokenFile{ExpiresAt: time.Now().Add(30 * time.Minute)}

	if tf.IsExpired(0) {
		t.Error("token valid for 30m should not be expired without margin")
	}
	if !tf.IsExpired(1 * time.Hour) {
		t.Error("token valid for 30m should be expired with a 1h margin")
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := TokenExpiry(signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("expiry = %v, want %v", got, exp)
	}
}

func TestTokenExpiry_NoExpClaim(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := tok.SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := TokenExpiry(signed); err == nil {
		t.Error("expected error for token without exp claim")
	}
}

func TestTokenExpiry_Garbage(t *testing.T) {
	if _, err := TokenExpiry("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Secret:    testSecret,
		AccessTTL: ttl,
		Issuer:    "authcore-test",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: time.Minute}); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewManager(Config{Secret: testSecret}); err == nil {
		t.Fatal("expected error for zero TTL")
	}
}

func TestSignAndParse(t *testing.T) {
	m := testManager(t, 15*time.Minute)
	now := time.Now()

	token, err := m.Sign("user-1", "tenant-1", "a@acme.example", "admin", now)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.TenantID != "tenant-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Email != "a@acme.example" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	wantExp := now.Add(15 * time.Minute)
	if d := claims.ExpiresAt.Time.Sub(wantExp); d < -time.Second || d > time.Second {
		t.Fatalf("exp drifted by %v", d)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := testManager(t, 15*time.Minute)

	token, err := m.Sign("user-1", "tenant-1", "a@acme.example", "admin", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	m := testManager(t, 15*time.Minute)

	token, err := m.Sign("user-1", "tenant-1", "a@acme.example", "admin", time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.Parse(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for bad signature, got %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := testManager(t, 15*time.Minute)

	other, err := NewManager(Config{
		Secret:    []byte("another-secret-another-secret-ok"),
		AccessTTL: 15 * time.Minute,
		Issuer:    "authcore-test",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := other.Sign("user-1", "tenant-1", "a@acme.example", "admin", time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	m := testManager(t, 15*time.Minute)

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, AccessClaims{
		UserID:   "user-1",
		TenantID: "tenant-1",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "authcore-test",
		},
	})
	token, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for alg=none, got %v", err)
	}
}

func TestExpiryWorksOnExpiredTokens(t *testing.T) {
	m := testManager(t, 15*time.Minute)
	issued := time.Now().Add(-time.Hour)

	token, err := m.Sign("user-1", "tenant-1", "a@acme.example", "admin", issued)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	exp, err := m.Expiry(token)
	if err != nil {
		t.Fatalf("expiry: %v", err)
	}
	want := issued.Add(15 * time.Minute)
	if d := exp.Sub(want); d < -time.Second || d > time.Second {
		t.Fatalf("expiry drifted by %v", d)
	}

	if _, err := m.Expiry("garbage"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dentara/authcore/jwt"
)

type stubValidator struct {
	claims *jwt.AccessClaims
	err    error
	seen   string
}

func (v *stubValidator) ValidateAccessToken(_ context.Context, token string) (*jwt.AccessClaims, error) {
	v.seen = token
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func okHandler(t *testing.T, wantUser string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("no claims in context")
		}
		if claims.UserID != wantUser {
			t.Fatalf("unexpected user %q", claims.UserID)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticatePassesValidToken(t *testing.T) {
	v := &stubValidator{claims: &jwt.AccessClaims{UserID: "user-1", Role: "staff"}}
	handler := Authenticate(v)(okHandler(t, "user-1"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if v.seen != "tok-123" {
		t.Fatalf("validator saw %q", v.seen)
	}
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	v := &stubValidator{claims: &jwt.AccessClaims{}}
	handler := Authenticate(v)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached without credentials")
	}))

	for _, header := range []string{"", "Basic dXNlcjpwYXNz", "Bearer", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestAuthenticateRejectsInvalidToken(t *testing.T) {
	v := &stubValidator{err: errors.New("bad token")}
	handler := Authenticate(v)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached with invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	v := &stubValidator{claims: &jwt.AccessClaims{UserID: "user-1", Role: "staff"}}

	allowed := Authenticate(v)(RequireRole("staff", "admin")(okHandler(t, "user-1")))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	allowed.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("allowed role: status = %d, want 204", rec.Code)
	}

	denied := Authenticate(v)(RequireRole("admin")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached with wrong role")
	})))
	rec = httptest.NewRecorder()
	denied.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("denied role: status = %d, want 403", rec.Code)
	}
}

func TestRequireRoleWithoutAuthenticate(t *testing.T) {
	handler := RequireRole("admin")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached without claims")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

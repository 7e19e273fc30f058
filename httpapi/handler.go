// Package httpapi exposes the authentication flows over HTTP. Responses
// are JSON; error bodies carry only the generic message for the error's
// kind, never internal detail.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/dentara/authcore"
	"github.com/dentara/authcore/middleware"
)

// Handler serves the /api/auth routes.
type Handler struct {
	auth   *authcore.AuthService
	tokens *authcore.TokenService
	log    *zap.Logger
}

// NewHandler wires the handler.
func NewHandler(auth *authcore.AuthService, tokens *authcore.TokenService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{auth: auth, tokens: tokens, log: log}
}

// Router returns the fully wired mux.
func (h *Handler) Router() http.Handler {
	authn := middleware.Authenticate(h.tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register-tenant", h.registerTenant)
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("POST /api/auth/refresh", h.refresh)
	mux.HandleFunc("POST /api/auth/logout", h.logout)
	mux.HandleFunc("POST /api/auth/password-reset-request", h.passwordResetRequest)
	mux.HandleFunc("POST /api/auth/password-reset", h.passwordReset)
	mux.HandleFunc("GET /api/auth/verify-email", h.verifyEmail)
	mux.Handle("POST /api/auth/change-password", authn(http.HandlerFunc(h.changePassword)))
	mux.Handle("POST /api/auth/resend-verification", authn(http.HandlerFunc(h.resendVerification)))
	mux.Handle("GET /api/auth/me", authn(http.HandlerFunc(h.me)))
	mux.HandleFunc("GET /metrics", h.metrics)
	return mux
}

var kindMessages = map[authcore.Kind]struct {
	status  int
	message string
}{
	authcore.KindBadRequest:   {http.StatusBadRequest, "bad request"},
	authcore.KindUnauthorized: {http.StatusUnauthorized, "unauthorized"},
	authcore.KindNotFound:     {http.StatusNotFound, "not found"},
	authcore.KindConflict:     {http.StatusConflict, "conflict"},
	authcore.KindInternal:     {http.StatusInternalServerError, "internal error"},
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := authcore.KindOf(err)
	entry, ok := kindMessages[kind]
	if !ok {
		entry = kindMessages[authcore.KindInternal]
	}
	if entry.status >= 500 {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, entry.status, map[string]string{"error": entry.message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (h *Handler) badRequest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
}

type registerTenantRequest struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) registerTenant(w http.ResponseWriter, r *http.Request) {
	var req registerTenantRequest
	if err := decode(r, &req); err != nil || req.Name == "" || req.Domain == "" || req.Email == "" {
		h.badRequest(w, r)
		return
	}
	result, err := h.auth.RegisterTenant(r.Context(), req.Name, req.Domain, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type loginRequest struct {
	Domain   string `json:"domain"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil || req.Domain == "" || req.Email == "" {
		h.badRequest(w, r)
		return
	}
	result, err := h.auth.Login(r.Context(), req.Domain, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil || req.RefreshToken == "" {
		h.badRequest(w, r)
		return
	}
	result, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r)
		return
	}
	// The access token comes from the Authorization header when present;
	// logout works without one so an expired session can still be cleared.
	if err := h.auth.Logout(r.Context(), middleware.BearerToken(r), req.RefreshToken); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

type passwordResetRequestBody struct {
	Domain string `json:"domain"`
	Email  string `json:"email"`
}

func (h *Handler) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequestBody
	if err := decode(r, &req); err != nil || req.Domain == "" || req.Email == "" {
		h.badRequest(w, r)
		return
	}
	if err := h.auth.RequestPasswordReset(r.Context(), req.Domain, req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	// Identical response whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]string{"status": "if the account exists, an email has been sent"})
}

type passwordResetBody struct {
	Token       string `json:"token"`
	NewPassword string `json:"password"`
}

func (h *Handler) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetBody
	if err := decode(r, &req); err != nil || req.Token == "" {
		h.badRequest(w, r)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password reset"})
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.badRequest(w, r)
		return
	}
	if err := h.auth.VerifyEmail(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "email verified"})
}

func (h *Handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if err := h.auth.RequestEmailVerification(r.Context(), claims.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verification email sent"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	user, err := h.auth.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// metrics renders the counters in plain-text exposition format, one
// "name value" line per counter in stable order.
func (h *Handler) metrics(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.tokens.Metrics().Snapshot()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, name := range names {
		fmt.Fprintf(w, "auth_%s %d\n", name, snapshot[name])
	}
}

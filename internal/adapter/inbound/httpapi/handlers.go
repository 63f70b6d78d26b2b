package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorhq/sessiond/internal/domain/principal"
	"github.com/miradorhq/sessiond/internal/domain/session"
	"github.com/miradorhq/sessiond/internal/service"
)

// maxBodyBytes bounds request bodies. Login payloads are tiny.
const maxBodyBytes = 64 << 10

// Handler serves the session lifecycle HTTP API.
type Handler struct {
	svc     *service.AuthService
	tracker *service.ActivityTracker
	store   session.Store
	metrics *Metrics
	logger  *slog.Logger
	version string
}

// NewHandler creates the API handler. The store is only probed by /health;
// all session access goes through the service.
func NewHandler(svc *service.AuthService, tracker *service.ActivityTracker, store session.Store, metrics *Metrics, logger *slog.Logger, version string) *Handler {
	return &Handler{
		svc:     svc,
		tracker: tracker,
		store:   store,
		metrics: metrics,
		logger:  logger,
		version: version,
	}
}

// Routes builds the full route table, wrapped in the shared middleware.
func (h *Handler) Routes(reg prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	activity := ActivityMiddleware(h.tracker, h.metrics)
	authed := func(next http.Handler) http.Handler {
		return Chain(next, RequireAuth(h.svc), activity)
	}

	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.HandleFunc("GET /api/auth/session", h.handleSession)
	mux.Handle("GET /api/auth/me", authed(http.HandlerFunc(h.handleMe)))
	mux.Handle("POST /api/auth/extend", authed(http.HandlerFunc(h.handleExtend)))

	// Example of a permission-guarded route: the dashboard snapshot is only
	// served to roles that carry view_dashboard.
	mux.Handle("GET /api/dashboard", Chain(
		http.HandlerFunc(h.handleDashboard),
		RequirePermission(h.svc, principal.PermViewDashboard),
		activity,
	))

	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", h.handleHealth)

	return Chain(mux,
		RequestIDMiddleware(h.logger),
		MetricsMiddleware(h.metrics),
	)
}

// loginRequest is the POST /api/auth/login payload.
type loginRequest struct {
	Email   string `json:"email"`
	Secret  string `json:"secret"`
	AsAdmin bool   `json:"as_admin"`
}

// loginResponse is the login outcome. On failure, Error carries the
// user-facing message and Retryable hints whether trying again may help.
type loginResponse struct {
	Success   bool                 `json:"success"`
	Code      string               `json:"code"`
	Principal *principal.Principal `json:"principal,omitempty"`
	Error     string               `json:"error,omitempty"`
	Retryable bool                 `json:"retryable,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())

	var req loginRequest
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Solicitud inválida")
		return
	}
	if req.Email == "" || req.Secret == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Email y contraseña son obligatorios")
		return
	}

	result := h.svc.Login(r.Context(), req.Email, req.Secret, req.AsAdmin)
	h.metrics.LoginsTotal.WithLabelValues(string(result.Code)).Inc()

	resp := loginResponse{
		Success:   result.Success,
		Code:      string(result.Code),
		Principal: result.Principal,
		Error:     result.Error,
		Retryable: result.Retryable,
	}

	status := http.StatusOK
	switch result.Code {
	case service.LoginOK:
		status = http.StatusOK
	case service.LoginFailed:
		status = http.StatusUnauthorized
	case service.LoginInactive:
		status = http.StatusForbidden
	case service.LoginUnavailable:
		status = http.StatusServiceUnavailable
	case service.LoginBusy:
		status = http.StatusConflict
	}

	if !result.Success {
		logger.Info("login rejected", "code", result.Code, "as_admin", req.AsAdmin)
	}
	writeJSON(w, status, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// sessionResponse is the countdown snapshot for headers and timeout dialogs.
type sessionResponse struct {
	Authenticated bool                 `json:"authenticated"`
	Slot          string               `json:"slot,omitempty"`
	Principal     *principal.Principal `json:"principal,omitempty"`

	SessionRemainingMs       int64  `json:"session_remaining_ms"`
	InactivityRemainingMs    int64  `json:"inactivity_remaining_ms"`
	SessionRemainingLabel    string `json:"session_remaining_label"`
	InactivityRemainingLabel string `json:"inactivity_remaining_label"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	info := h.svc.SessionInfo(r.Context())

	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated:            info.Authenticated,
		Slot:                     string(info.Slot),
		Principal:                info.Principal,
		SessionRemainingMs:       info.SessionRemaining.Milliseconds(),
		InactivityRemainingMs:    info.InactivityRemaining.Milliseconds(),
		SessionRemainingLabel:    info.SessionRemainingLabel,
		InactivityRemainingLabel: info.InactivityRemainingLabel,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p := h.svc.CurrentPrincipal(r.Context())
	if p == nil {
		// The guard already passed, but the session can expire between the
		// guard's resolve and this one.
		writeError(w, http.StatusUnauthorized, "unauthenticated", "No hay una sesión activa")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ExtendSession(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "No hay una sesión activa")
		return
	}
	info := h.svc.SessionInfo(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated:            info.Authenticated,
		Slot:                     string(info.Slot),
		Principal:                info.Principal,
		SessionRemainingMs:       info.SessionRemaining.Milliseconds(),
		InactivityRemainingMs:    info.InactivityRemaining.Milliseconds(),
		SessionRemainingLabel:    info.SessionRemainingLabel,
		InactivityRemainingLabel: info.InactivityRemainingLabel,
	})
}

// dashboardResponse is a minimal snapshot for the admin dashboard shell.
type dashboardResponse struct {
	Principal   *principal.Principal `json:"principal"`
	Permissions []string             `json:"permissions"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := h.svc.CurrentPrincipal(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "No hay una sesión activa")
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Principal:   p,
		Permissions: principal.Permissions(p.Role),
	})
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Error: message})
}

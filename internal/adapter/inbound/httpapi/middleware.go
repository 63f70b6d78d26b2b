package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/miradorhq/sessiond/internal/service"
)

// requestIDContextKey is the type for the request ID context key.
type requestIDContextKey struct{}

// RequestIDKey is the context key for the request ID.
var RequestIDKey = requestIDContextKey{}

// loggerContextKey is the type for the enriched logger context key.
type loggerContextKey struct{}

// LoggerKey is the context key for the enriched logger.
var LoggerKey = loggerContextKey{}

// RequestIDMiddleware extracts or generates a request ID and enriches the
// logger. The request ID is stored in context using RequestIDKey; an enriched
// logger with a request_id field is stored using LoggerKey.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enrichedLogger := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, enrichedLogger)

			// Set response header for correlation
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// RequireAuth guards a route: the request proceeds only when a session
// currently resolves. Expiry detected during the check clears the slot, so
// the 401 and the cleanup happen in the same request.
func RequireAuth(svc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !svc.IsAuthenticated(r.Context()) {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "No hay una sesión activa")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission guards a route behind a role permission. Implies
// RequireAuth: an unauthenticated request gets 401, an authenticated one
// without the permission gets 403.
func RequirePermission(svc *service.AuthService, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := svc.CurrentPrincipal(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "No hay una sesión activa")
				return
			}
			if !p.HasPermission(permission) {
				writeError(w, http.StatusForbidden, "forbidden", "No tienes permiso para esta acción")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActivityMiddleware feeds every request on guarded routes into the activity
// tracker as an interaction signal. Non-blocking; the tracker coalesces.
func ActivityMiddleware(tracker *service.ActivityTracker, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracker.Signal(service.SignalClick)
			if metrics != nil {
				metrics.ActivitySignalsTotal.Inc()
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// MetricsMiddleware records request counts and durations per route pattern.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			path := r.URL.Path
			metrics.RequestsTotal.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
			metrics.RequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
		})
	}
}

// Chain composes middlewares outermost-first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

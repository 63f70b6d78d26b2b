package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/miradorhq/sessiond/internal/domain/session"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// checkHealth probes the credential store and collects runtime info.
// A corrupted record is not a health failure: the resolver self-heals those.
// Only a backend that cannot be read at all marks the service unhealthy.
func (h *Handler) checkHealth(r *http.Request, store session.Store) HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if store != nil {
		_, err := store.Load(r.Context(), session.SlotAdmin)
		switch {
		case err == nil || errors.Is(err, session.ErrCorruptedRecord):
			checks["store"] = "ok"
		default:
			checks["store"] = fmt.Sprintf("error: %v", err)
			healthy = false
		}
	} else {
		checks["store"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.checkHealth(r, h.store)

	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

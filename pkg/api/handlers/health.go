package handlers

import (
	"net/http"
	"time"

	"github.com/marmos91/yamlauth/pkg/credstore"
)

// StoreStatus reports the state of the credential store.
// *credstore.Store satisfies it.
type StoreStatus interface {
	State() credstore.State
	Len() int
}

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated:
//   - Liveness: is the process serving HTTP?
//   - Readiness: are credentials loaded?
type HealthHandler struct {
	store     StoreStatus
	startedAt time.Time
}

// NewHealthHandler creates a new health handler. store may be nil, in which
// case the readiness probe always fails.
func NewHealthHandler(store StoreStatus) *HealthHandler {
	return &HealthHandler{store: store, startedAt: time.Now()}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service":    "yamlauth",
		"started_at": h.startedAt.UTC().Format(time.RFC3339),
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
	}))
}

// Readiness handles GET /health/ready. It returns 200 only once a users
// file has been loaded, and 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store not initialized"))
		return
	}

	state := h.store.State()
	if state != credstore.StatePopulated {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("credentials not loaded"))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"state": state.String(),
		"users": h.store.Len(),
	}))
}

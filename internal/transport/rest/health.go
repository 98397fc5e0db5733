package rest

import (
	"context"
	"net/http"
	"time"
)

// pinger is the minimal interface for storage health checks.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	storage     pinger
	storageName string
	version     string
	now         func() time.Time
}

// NewHealthHandler creates a HealthHandler. storageName labels the storage
// component in /health ("postgres" or "memory").
func NewHealthHandler(storage pinger, storageName, version string) *HealthHandler {
	return &HealthHandler{
		storage:     storage,
		storageName: storageName,
		version:     version,
		now:         time.Now,
	}
}

// HealthResponse is the JSON response for /health and its probes.
type HealthResponse struct {
	Status     string                `json:"status"`
	Version    string                `json:"version,omitempty"`
	Components map[string]CompStatus `json:"components,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// CompStatus is the status of an individual component.
type CompStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// Live is the liveness probe. Always returns 200.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: h.now(),
	})
}

// Ready is the readiness probe. Pings storage: 200 if OK, 503 if not.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.storage.Ping(ctx); err != nil {
		status, code = "down", http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: h.now(),
	})
}

// Health is the full health check with storage latency and version.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	start := time.Now()
	err := h.storage.Ping(ctx)
	latency := time.Since(start)

	comp := CompStatus{Status: "ok", Latency: latency.String()}
	overall, code := "ok", http.StatusOK
	if err != nil {
		comp = CompStatus{Status: "down"}
		overall, code = "down", http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:     overall,
		Version:    h.version,
		Components: map[string]CompStatus{h.storageName: comp},
		Timestamp:  h.now(),
	})
}

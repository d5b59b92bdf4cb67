package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"evalpanel/internal/config"
)

// Health is the liveness response
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Clients int    `json:"websocket_clients"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	started time.Time
	clients func() int
}

// NewHealthHandler creates a new health handler. clients reports the number
// of connected event stream clients and may be nil.
func NewHealthHandler(clients func() int) *HealthHandler {
	return &HealthHandler{started: time.Now(), clients: clients}
}

// HealthCheck handles GET /healthz
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := Health{
		Status:  "ok",
		Version: config.AppVersion,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	}
	if h.clients != nil {
		resp.Clients = h.clients()
	}
	render.JSON(w, r, resp)
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "evalpanel/internal/errors"
	"evalpanel/internal/operations"
)

// RunService exposes the most recent run
type RunService interface {
	// LatestState returns the live state of the latest run, nil before the
	// first run starts
	LatestState() *operations.RunState
	// LatestManifest returns the manifest of the latest completed run
	LatestManifest() *operations.RunManifest
}

// RunStatus is the response of the run endpoint while no manifest exists yet
type RunStatus struct {
	RunID  string                     `json:"run_id"`
	Status operations.RunStatus       `json:"status"`
	Stages []operations.StageSnapshot `json:"stages"`
}

// RunHandler serves the latest run
type RunHandler struct {
	service RunService
	errors  *apperrors.ErrorHandler
	logger  *slog.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(service RunService, errors *apperrors.ErrorHandler, logger *slog.Logger) *RunHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunHandler{
		service: service,
		errors:  errors,
		logger:  logger.With(slog.String("handler", "run")),
	}
}

// Routes returns the run routes
func (h *RunHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetRun)
	r.Get("/selection", h.GetSelection)
	r.Get("/stages", h.GetStages)
	return r
}

// GetRun handles GET /api/v1/run
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("run-handler").Start(r.Context(), "run_handler.get_run",
		trace.WithAttributes(attribute.String("request_id", middleware.GetReqID(r.Context()))))
	defer span.End()

	state := h.service.LatestState()
	if err := h.check(state); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	if m := h.service.LatestManifest(); m != nil && m.RunID == state.ID() {
		render.JSON(w, r, m)
		return
	}

	h.logger.DebugContext(ctx, "run in progress", slog.String("run_id", state.ID()))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, RunStatus{
		RunID:  state.ID(),
		Status: state.Status(),
		Stages: state.Snapshots(),
	})
}

// GetSelection handles GET /api/v1/run/selection
func (h *RunHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	state := h.service.LatestState()
	if err := h.check(state); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	m := h.service.LatestManifest()
	if m == nil || m.RunID != state.ID() || m.Ledger == nil {
		h.errors.HandleError(w, r, apperrors.NotFoundError("selection ledger"))
		return
	}
	render.JSON(w, r, m.Ledger)
}

// GetStages handles GET /api/v1/run/stages. Stages are reported for failed
// runs too.
func (h *RunHandler) GetStages(w http.ResponseWriter, r *http.Request) {
	state := h.service.LatestState()
	if state == nil {
		h.errors.HandleError(w, r, apperrors.ErrRunNotFound)
		return
	}
	render.JSON(w, r, state.Snapshots())
}

func (h *RunHandler) check(state *operations.RunState) error {
	if state == nil {
		return apperrors.ErrRunNotFound
	}
	if state.Status() == operations.RunStatusFailed {
		if err := state.Err(); err != nil {
			return apperrors.ErrRunFailed(err)
		}
	}
	return nil
}

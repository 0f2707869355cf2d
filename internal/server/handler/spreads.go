package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// SpreadRunner is the spread calculator surface the API needs.
type SpreadRunner interface {
	Run(ctx context.Context) (domain.RunReport, error)
	ListActive(ctx context.Context, limit int) ([]domain.Spread, error)
}

// SpreadHandler serves the active spread set and on-demand passes.
type SpreadHandler struct {
	svc     SpreadRunner
	trigger Triggerer
	job     string
	logger  *slog.Logger
}

// NewSpreadHandler creates a SpreadHandler. trigger may be nil, in which
// case ?async=true is rejected.
func NewSpreadHandler(svc SpreadRunner, trigger Triggerer, job string, logger *slog.Logger) *SpreadHandler {
	return &SpreadHandler{svc: svc, trigger: trigger, job: job, logger: logHandler(logger, "spreads")}
}

// ListActive returns active spreads ordered by skew.
// GET /api/spreads?limit=
func (h *SpreadHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spreads, err := h.svc.ListActive(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list spreads", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list spreads")
		return
	}
	if spreads == nil {
		spreads = []domain.Spread{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"spreads": spreads, "count": len(spreads)})
}

// Run executes one calculator pass and returns its report. With
// ?async=true the pass is queued on the scheduler instead.
// POST /api/spreads/run
func (h *SpreadHandler) Run(w http.ResponseWriter, r *http.Request) {
	runPass(w, r, h.svc.Run, h.trigger, h.job, h.logger)
}

// runPass is shared by the spread and mapping run endpoints.
func runPass(
	w http.ResponseWriter,
	r *http.Request,
	run func(context.Context) (domain.RunReport, error),
	trigger Triggerer,
	job string,
	logger *slog.Logger,
) {
	if isAsync(r) {
		if trigger == nil {
			writeError(w, http.StatusConflict, "scheduler is not running")
			return
		}
		if err := trigger.Trigger(job); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job": job})
		return
	}

	report, err := run(r.Context())
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		logger.ErrorContext(r.Context(), "handler: pass failed",
			slog.String("job", job),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, report)
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

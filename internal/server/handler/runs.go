package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// RunsDeps are the read sources behind the run history endpoints. Any of
// them may be nil; the matching endpoint then answers 503.
type RunsDeps struct {
	Reports domain.ReportCache
	Spreads domain.SpreadStore
	Bus     domain.SignalBus
	Audit   domain.AuditStore
}

// RunsHandler serves pass reports, per-run spreads and the audit trail.
type RunsHandler struct {
	deps   RunsDeps
	logger *slog.Logger
}

// NewRunsHandler creates a RunsHandler.
func NewRunsHandler(deps RunsDeps, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{deps: deps, logger: logHandler(logger, "runs")}
}

// Latest returns the most recent report for {kind} (match or spread).
// GET /api/runs/{kind}/latest
func (h *RunsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	kind := domain.RunKind(r.PathValue("kind"))
	if kind != domain.RunKindMatch && kind != domain.RunKindSpread {
		writeError(w, http.StatusBadRequest, "kind must be match or spread")
		return
	}
	if h.deps.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report cache is not configured")
		return
	}

	report, err := h.deps.Reports.GetReport(r.Context(), kind)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no report for "+string(kind))
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: get report", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read report")
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

// Spreads returns every spread inserted by run {id}, active or not.
// GET /api/runs/{id}/spreads
func (h *RunsHandler) Spreads(w http.ResponseWriter, r *http.Request) {
	if h.deps.Spreads == nil {
		writeError(w, http.StatusServiceUnavailable, "spread store is not configured")
		return
	}
	runID := r.PathValue("id")
	spreads, err := h.deps.Spreads.ListByRun(r.Context(), runID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list run spreads",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list spreads")
		return
	}
	if spreads == nil {
		spreads = []domain.Spread{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "spreads": spreads, "count": len(spreads)})
}

// Events pages through the run report stream. Pass the last seen id as
// ?after= to continue.
// GET /api/runs/events?after=&limit=
func (h *RunsHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.deps.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "signal bus is not configured")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}

	msgs, err := h.deps.Bus.StreamRead(r.Context(), domain.StreamRuns, after, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: read run stream", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	type event struct {
		ID     string `json:"id"`
		Report any    `json:"report"`
	}
	events := make([]event, 0, len(msgs))
	next := after
	for _, m := range msgs {
		events = append(events, event{ID: m.ID, Report: asJSON(m.Payload)})
		next = m.ID
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "next": next})
}

// Audit lists audit entries, newest first.
// GET /api/audit?limit=&since=
func (h *RunsHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if h.deps.Audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store is not configured")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := domain.ListOpts{Limit: limit}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		opts.Since = &since
	}

	entries, err := h.deps.Audit.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

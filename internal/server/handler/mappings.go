package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// MappingRunner is the market matcher surface the API needs.
type MappingRunner interface {
	Run(ctx context.Context) (domain.RunReport, error)
	ListMappings(ctx context.Context) ([]domain.Mapping, error)
	VerifyMapping(ctx context.Context, a, b string, verified bool) error
}

// MappingHandler serves cross-platform mappings.
type MappingHandler struct {
	svc     MappingRunner
	trigger Triggerer
	job     string
	logger  *slog.Logger
}

// NewMappingHandler creates a MappingHandler. trigger may be nil.
func NewMappingHandler(svc MappingRunner, trigger Triggerer, job string, logger *slog.Logger) *MappingHandler {
	return &MappingHandler{svc: svc, trigger: trigger, job: job, logger: logHandler(logger, "mappings")}
}

// List returns every mapping, best score first.
// GET /api/mappings
func (h *MappingHandler) List(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.svc.ListMappings(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list mappings", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list mappings")
		return
	}
	if mappings == nil {
		mappings = []domain.Mapping{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings, "count": len(mappings)})
}

type verifyRequest struct {
	MarketIDA string `json:"market_id_a"`
	MarketIDB string `json:"market_id_b"`
	Verified  *bool  `json:"verified"`
}

// Verify sets or clears the manual-verification flag on a mapping.
// POST /api/mappings/verify
func (h *MappingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, b := strings.TrimSpace(req.MarketIDA), strings.TrimSpace(req.MarketIDB)
	if a == "" || b == "" || a == b || req.Verified == nil {
		writeError(w, http.StatusBadRequest, "market_id_a, market_id_b (distinct) and verified are required")
		return
	}

	err := h.svc.VerifyMapping(r.Context(), a, b, *req.Verified)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "mapping not found")
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: verify mapping", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to verify mapping")
	default:
		a, b = domain.OrderPair(a, b)
		writeJSON(w, http.StatusOK, map[string]any{
			"market_id_a": a,
			"market_id_b": b,
			"verified":    *req.Verified,
		})
	}
}

// Run executes one matcher pass and returns its report.
// POST /api/mappings/run
func (h *MappingHandler) Run(w http.ResponseWriter, r *http.Request) {
	runPass(w, r, h.svc.Run, h.trigger, h.job, h.logger)
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// MarketHandler looks up single markets so clients can resolve the ids
// carried by spreads and mappings.
type MarketHandler struct {
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets domain.MarketStore, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logHandler(logger, "markets")}
}

// Get returns one market.
// GET /api/markets/{id}
func (h *MarketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, err := h.markets.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market not found")
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: get market",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
	default:
		writeJSON(w, http.StatusOK, m)
	}
}

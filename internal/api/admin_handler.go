package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"meta-relay/internal/graph"
	"meta-relay/internal/service/statistics"
)

// TokenExchanger issues app access tokens.
type TokenExchanger interface {
	ExchangeAppToken(ctx context.Context) (*graph.AppToken, error)
}

type AdminHandler struct {
	stats  *statistics.Service
	tokens TokenExchanger
	logger *zap.Logger
}

func NewAdminHandler(stats *statistics.Service, tokens TokenExchanger, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		stats:  stats,
		tokens: tokens,
		logger: logger,
	}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.GetGlobalStatistics(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) RenewToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.ExchangeAppToken(r.Context())
	if err != nil {
		h.logger.Error("Token exchange failed", zap.Error(err))
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

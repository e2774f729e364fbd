package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"meta-relay/internal/graph"
	"meta-relay/internal/service/message"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Code   int    `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service errors onto HTTP statuses. Unknown errors
// are logged and reported as 500 without their text.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var sendErr *message.SendError
	if errors.As(err, &sendErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  sendErr.Message,
			Reason: string(sendErr.Reason),
			Code:   sendErr.Code,
		})
		return
	}

	switch {
	case errors.Is(err, message.ErrEmptyRecipient),
		errors.Is(err, message.ErrEmptyContent),
		errors.Is(err, message.ErrTemplateNameMissing),
		errors.Is(err, message.ErrUnsupportedChannel):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, message.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var apiErr *graph.APIError
	if errors.As(err, &apiErr) {
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: "provider request failed",
			Code:  apiErr.Code,
		})
		return
	}

	logger.Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"meta-relay/internal/service/message"
	"meta-relay/internal/webhook"
)

const eventReceived = "EVENT_RECEIVED"

type WebhookHandler struct {
	verifyToken string
	interpreter webhook.Interpreter
	reconciler  *message.Reconciler
	logger      *zap.Logger
}

func NewWebhookHandler(verifyToken string, interpreter webhook.Interpreter, reconciler *message.Reconciler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		interpreter: interpreter,
		reconciler:  reconciler,
		logger:      logger.With(zap.String("channel", string(interpreter.Channel()))),
	}
}

// Verify answers Meta's subscription handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		h.logger.Info("Webhook subscription verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, challenge)
		return
	}

	h.logger.Warn("Webhook verification rejected", zap.String("mode", mode))
	writeError(w, http.StatusForbidden, "verification failed")
}

// Receive always acknowledges with 200 once the signature has passed.
// Processing failures are logged; Meta would only redeliver the same payload.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
	}

	events := h.interpreter.Interpret(body)
	if len(events) > 0 {
		if err := h.reconciler.Process(r.Context(), events); err != nil {
			h.logger.Error("Webhook processing failed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Int("events", len(events)),
				zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, eventReceived)
}

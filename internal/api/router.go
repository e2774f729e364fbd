// Package api exposes the webhook endpoints and the REST surface used by the UI.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handlers struct {
	Webhooks  []*WebhookHandler
	Messages  *MessageHandler
	Admin     *AdminHandler
	AppSecret string
	Logger    *zap.Logger
}

func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)

	for _, wh := range h.Webhooks {
		path := "/" + strings.ToLower(string(wh.interpreter.Channel())) + "/webhook"
		r.Get(path, wh.Verify)
		r.With(requireSignature(h.AppSecret, h.Logger)).Post(path, wh.Receive)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/whatsapp/send", h.Messages.SendWhatsApp)
		r.Post("/whatsapp/send-template", h.Messages.SendTemplate)
		r.Get("/whatsapp/templates", h.Messages.ListTemplates)
		r.Post("/messenger/send", h.Messages.SendMessenger)

		r.Get("/{channel}/conversations", h.Messages.ListConversations)
		r.Get("/{channel}/conversations/{id}/messages", h.Messages.ListMessages)
		r.Delete("/{channel}/conversations/{id}", h.Messages.DeleteConversation)

		r.Get("/stats", h.Admin.Stats)
		r.Post("/meta/token", h.Admin.RenewToken)
	})

	return r
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"meta-relay/internal/graph"
	"meta-relay/internal/models"
	"meta-relay/internal/repository"
	"meta-relay/internal/service/message"
)

type MessageHandler struct {
	sender        *message.Sender
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	logger        *zap.Logger
}

func NewMessageHandler(
	sender *message.Sender,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		sender:        sender,
		conversations: conversations,
		messages:      messages,
		logger:        logger,
	}
}

type sendWhatsAppRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type sendMessengerRequest struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
}

type sendTemplateRequest struct {
	To           string                    `json:"to"`
	TemplateName string                    `json:"templateName"`
	Code         string                    `json:"code"`
	Components   []graph.TemplateComponent `json:"components"`
}

func (h *MessageHandler) SendWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req sendWhatsAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.sender.Send(r.Context(), models.ChannelWhatsApp, req.To, req.Message)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) SendMessenger(w http.ResponseWriter, r *http.Request) {
	var req sendMessengerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.sender.Send(r.Context(), models.ChannelMessenger, req.RecipientID, req.Message)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) SendTemplate(w http.ResponseWriter, r *http.Request) {
	var req sendTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.sender.SendTemplate(r.Context(), message.TemplateRequest{
		To:           req.To,
		TemplateName: req.TemplateName,
		LanguageCode: req.Code,
		Components:   req.Components,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *MessageHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.sender.Templates(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	channel, ok := channelParam(w, r)
	if !ok {
		return
	}

	summaries, err := h.conversations.ListSummariesByChannel(r.Context(), channel)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if summaries == nil {
		summaries = []*models.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversationParam(w, r)
	if !ok {
		return
	}

	msgs, err := h.messages.ListByConversationID(r.Context(), conv.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *MessageHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversationParam(w, r)
	if !ok {
		return
	}

	if err := h.conversations.Delete(r.Context(), conv.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Conversation deleted",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("channel", string(conv.Channel)))
	w.WriteHeader(http.StatusNoContent)
}

// conversationParam loads {id} and checks it belongs to the {channel} in the route.
func (h *MessageHandler) conversationParam(w http.ResponseWriter, r *http.Request) (*models.Conversation, bool) {
	channel, ok := channelParam(w, r)
	if !ok {
		return nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}

	conv, err := h.conversations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return nil, false
		}
		writeServiceError(w, h.logger, err)
		return nil, false
	}

	if conv.Channel != channel {
		h.logger.Warn("Conversation requested on the wrong channel",
			zap.String("conversation_id", id.String()),
			zap.String("requested", string(channel)),
			zap.String("actual", string(conv.Channel)))
		writeError(w, http.StatusNotFound, "conversation not found on this channel")
		return nil, false
	}
	return conv, true
}

func channelParam(w http.ResponseWriter, r *http.Request) (models.Channel, bool) {
	channel, ok := models.ParseChannel(chi.URLParam(r, "channel"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown channel")
		return "", false
	}
	return channel, true
}

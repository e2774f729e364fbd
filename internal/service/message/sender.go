package message

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"meta-relay/internal/graph"
	"meta-relay/internal/models"
	"meta-relay/internal/repository"
	"meta-relay/internal/service"
	"meta-relay/internal/service/conversation"
)

const pendingIDPrefix = "pending-"

var (
	ErrEmptyRecipient      = errors.New("recipient is required")
	ErrEmptyContent        = errors.New("message content is required")
	ErrUnsupportedChannel  = errors.New("channel does not support this operation")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrTemplateNameMissing = errors.New("template name is required")
)

// Provider is the subset of the Graph client the send pipeline needs.
type Provider interface {
	SendWhatsAppText(ctx context.Context, to, body string) (string, error)
	SendWhatsAppTemplate(ctx context.Context, msg graph.TemplateMessage) (string, error)
	SendMessengerText(ctx context.Context, recipientID, text string) (string, error)
	FetchTemplates(ctx context.Context) ([]graph.Template, error)
}

type TemplateRequest struct {
	To           string
	TemplateName string
	LanguageCode string
	Components   []graph.TemplateComponent
}

type TemplateResult struct {
	MessageID string `json:"messageId"`
}

type Sender struct {
	provider   Provider
	messages   repository.MessageRepository
	resolver   *conversation.Resolver
	reconciler *Reconciler
	retry      *RetryHandler
	language   string
	logger     *zap.Logger
}

func NewSender(
	provider Provider,
	messages repository.MessageRepository,
	resolver *conversation.Resolver,
	reconciler *Reconciler,
	retry *RetryHandler,
	defaultLanguage string,
	logger *zap.Logger,
) *Sender {
	return &Sender{
		provider:   provider,
		messages:   messages,
		resolver:   resolver,
		reconciler: reconciler,
		retry:      retry,
		language:   defaultLanguage,
		logger:     logger,
	}
}

// Send delivers a text message on channel and returns the stored record.
func (s *Sender) Send(ctx context.Context, channel models.Channel, recipientID, content string) (*models.Message, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, ErrEmptyRecipient
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	var dispatch func(ctx context.Context) (string, error)
	switch channel {
	case models.ChannelWhatsApp:
		dispatch = func(ctx context.Context) (string, error) {
			return s.provider.SendWhatsAppText(ctx, recipientID, content)
		}
	case models.ChannelMessenger:
		dispatch = func(ctx context.Context) (string, error) {
			return s.provider.SendMessengerText(ctx, recipientID, content)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
	}

	return s.deliver(ctx, channel, recipientID, content, models.MessageTypeText, dispatch)
}

// SendTemplate sends a WhatsApp template. The stored content is the catalog
// body with its placeholders filled in.
func (s *Sender) SendTemplate(ctx context.Context, req TemplateRequest) (*TemplateResult, error) {
	req.To = strings.TrimSpace(req.To)
	if req.To == "" {
		return nil, ErrEmptyRecipient
	}
	if req.TemplateName == "" {
		return nil, ErrTemplateNameMissing
	}

	language := req.LanguageCode
	if language == "" {
		language = s.language
	}

	catalog, err := s.Templates(ctx)
	if err != nil {
		return nil, err
	}
	tpl, ok := findTemplate(catalog, req.TemplateName, language)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrTemplateNotFound, req.TemplateName, language)
	}
	content := renderTemplate(tpl, req.Components)

	msg, err := s.deliver(ctx, models.ChannelWhatsApp, req.To, content, models.MessageTypeTemplate,
		func(ctx context.Context) (string, error) {
			return s.provider.SendWhatsAppTemplate(ctx, graph.TemplateMessage{
				To:           req.To,
				Name:         tpl.Name,
				LanguageCode: tpl.Language,
				Components:   req.Components,
			})
		})
	if err != nil {
		return nil, err
	}
	return &TemplateResult{MessageID: msg.MessageID}, nil
}

// Templates returns the provider's template catalog, retrying transient failures.
func (s *Sender) Templates(ctx context.Context) ([]graph.Template, error) {
	var catalog []graph.Template
	err := s.retry.Retry(ctx, func() error {
		var err error
		catalog, err = s.provider.FetchTemplates(ctx)
		return err
	})
	if err != nil {
		s.alertIfUnauthorized(ctx, err)
		return nil, fmt.Errorf("fetch template catalog: %w", err)
	}
	return catalog, nil
}

// deliver runs the PENDING -> SENT -> DELIVERED pipeline, or PENDING -> FAILED.
func (s *Sender) deliver(
	ctx context.Context,
	channel models.Channel,
	recipientID, content string,
	msgType models.MessageType,
	dispatch func(ctx context.Context) (string, error),
) (*models.Message, error) {
	conv, err := s.resolver.Resolve(ctx, recipientID, channel)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		Content:        content,
		Type:           msgType,
		Sender:         s.reconciler.BusinessID(channel),
		MessageID:      pendingIDPrefix + uuid.NewString(),
		Direction:      models.MessageDirectionOutbound,
		Status:         models.MessageStatusPending,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store pending message: %w", err)
	}

	providerID, err := dispatch(ctx)
	if err != nil {
		return nil, s.fail(ctx, msg, recipientID, err)
	}

	msg.MessageID = providerID
	msg.Status = models.MessageStatusSent
	if err := s.messages.Update(ctx, msg); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("mark message %s sent: %w", providerID, err)
		}
		// The provider's echo webhook stored this id first; keep that record.
		s.logger.Info("Provider echo arrived before send response, dropping placeholder",
			zap.String("message_id", providerID))
		if err := s.messages.Delete(ctx, msg.ID); err != nil {
			return nil, fmt.Errorf("drop placeholder for %s: %w", providerID, err)
		}
	}

	s.logger.Info("Message sent",
		zap.String("channel", string(channel)),
		zap.String("recipient_id", recipientID),
		zap.String("message_id", providerID))

	delivered, err := s.reconciler.ApplyStatus(ctx, providerID, models.MessageStatusDelivered)
	if err != nil {
		return nil, err
	}
	if delivered == nil {
		return nil, fmt.Errorf("message %s vanished after send", providerID)
	}
	return delivered, nil
}

func (s *Sender) fail(ctx context.Context, msg *models.Message, recipientID string, cause error) error {
	sendErr := classifySendError(cause, recipientID)
	sendErr.MessageID = msg.ID.String()

	msg.Status = models.MessageStatusFailed
	msg.FailureReason = sendErr.Message
	if err := s.messages.Update(ctx, msg); err != nil {
		s.logger.Error("Failed to mark message as FAILED",
			zap.String("id", msg.ID.String()),
			zap.Error(err))
	}

	s.logger.Warn("Message send failed",
		zap.String("recipient_id", recipientID),
		zap.String("reason", string(sendErr.Reason)),
		zap.Int("code", sendErr.Code),
		zap.Error(cause))
	s.alertIfUnauthorized(ctx, cause)
	return sendErr
}

func (s *Sender) alertIfUnauthorized(ctx context.Context, err error) {
	var apiErr *graph.APIError
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		s.reconciler.alert(ctx, service.ErrorTypeProviderAuth, err, "Graph API rejected the access token")
	}
}

// Package message keeps the message ledger consistent with provider events
// and drives outbound sends.
package message

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"meta-relay/internal/config"
	"meta-relay/internal/models"
	"meta-relay/internal/repository"
	"meta-relay/internal/service"
	"meta-relay/internal/service/conversation"
	"meta-relay/internal/webhook"
)

const alertTimeout = 30 * time.Second

// Alerter receives failures an operator should hear about.
type Alerter interface {
	NotifyCriticalError(ctx context.Context, errType service.ErrorType, err error, details string)
}

type Reconciler struct {
	messages    repository.MessageRepository
	resolver    *conversation.Resolver
	businessIDs map[models.Channel]string
	alerter     Alerter
	alerts      sync.WaitGroup
	logger      *zap.Logger
}

func NewReconciler(
	messages repository.MessageRepository,
	resolver *conversation.Resolver,
	meta config.MetaConfig,
	alerter Alerter,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		messages: messages,
		resolver: resolver,
		businessIDs: map[models.Channel]string{
			models.ChannelWhatsApp:  meta.WhatsAppBusinessNumber,
			models.ChannelMessenger: meta.MessengerPageID,
		},
		alerter: alerter,
		logger:  logger,
	}
}

// BusinessID is the identifier the business sends as on channel.
func (r *Reconciler) BusinessID(channel models.Channel) string {
	return r.businessIDs[channel]
}

// Process applies every event in order. Ignorable outcomes (duplicates, unknown
// message ids) are logged; storage errors are joined and returned.
func (r *Reconciler) Process(ctx context.Context, events []webhook.Event) error {
	var errs []error
	for _, event := range events {
		switch ev := event.(type) {
		case *webhook.IncomingMessage:
			if _, _, err := r.RecordIncoming(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		case *webhook.StatusUpdate:
			if _, err := r.ApplyStatus(ctx, ev.MessageID, ev.Status); err != nil {
				errs = append(errs, err)
			}
		default:
			r.logger.Warn("Unhandled webhook event", zap.String("type", fmt.Sprintf("%T", event)))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		r.alert(ctx, service.ErrorTypeDatabase, err, "webhook reconciliation")
	}
	return err
}

// RecordIncoming stores ev unless its provider message id is already known.
// created is false for duplicates, which are not an error.
func (r *Reconciler) RecordIncoming(ctx context.Context, ev *webhook.IncomingMessage) (msg *models.Message, created bool, err error) {
	exists, err := r.messages.ExistsByMessageID(ctx, ev.MessageID)
	if err != nil {
		return nil, false, fmt.Errorf("check message %s: %w", ev.MessageID, err)
	}
	if exists {
		r.logger.Info("Duplicate message ignored",
			zap.String("message_id", ev.MessageID),
			zap.String("channel", string(ev.Channel)))
		return nil, false, nil
	}

	businessID := r.BusinessID(ev.Channel)
	direction := ClassifyDirection(ev.SenderID, businessID)

	contactID := ev.SenderID
	if direction == models.MessageDirectionOutbound && ev.RecipientID != "" && !sameAccount(ev.RecipientID, businessID) {
		contactID = ev.RecipientID
	}

	conv, err := r.resolver.Resolve(ctx, contactID, ev.Channel)
	if err != nil {
		return nil, false, err
	}

	msg = &models.Message{
		ConversationID: conv.ID,
		Content:        ev.Content,
		Type:           ev.Type,
		Sender:         ev.SenderID,
		MessageID:      ev.MessageID,
		Direction:      direction,
		Status:         initialStatus(ev.Channel),
		Timestamp:      ev.Timestamp,
	}
	if err := r.messages.Create(ctx, msg); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			r.logger.Info("Duplicate message ignored after concurrent insert",
				zap.String("message_id", ev.MessageID))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store message %s: %w", ev.MessageID, err)
	}

	r.logger.Info("Message recorded",
		zap.String("id", msg.ID.String()),
		zap.String("message_id", msg.MessageID),
		zap.String("conversation_id", conv.ID.String()),
		zap.String("direction", string(direction)))
	return msg, true, nil
}

// ApplyStatus overwrites the stored status of messageID. The last update
// received wins, even if it moves the status backwards. An unknown id is a
// no-op and returns (nil, nil).
func (r *Reconciler) ApplyStatus(ctx context.Context, messageID string, status models.MessageStatus) (*models.Message, error) {
	msg, err := r.messages.GetByMessageID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Info("Status for unknown message ignored",
				zap.String("message_id", messageID),
				zap.String("status", string(status)))
			return nil, nil
		}
		return nil, fmt.Errorf("load message %s: %w", messageID, err)
	}

	previous := msg.Status
	msg.Status = status
	if err := r.messages.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("update status of %s: %w", messageID, err)
	}

	r.logger.Debug("Message status updated",
		zap.String("message_id", messageID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	return msg, nil
}

// alert notifies operators in the background. The notification outlives the
// caller's context but is bounded by alertTimeout.
func (r *Reconciler) alert(ctx context.Context, errType service.ErrorType, err error, details string) {
	if r.alerter == nil {
		return
	}
	r.alerts.Add(1)
	go func() {
		defer r.alerts.Done()
		alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()
		r.alerter.NotifyCriticalError(alertCtx, errType, err, details)
	}()
}

// WaitAlerts blocks until every pending alert has been handed to the alerter.
func (r *Reconciler) WaitAlerts() {
	r.alerts.Wait()
}

// initialStatus is the status a freshly received message is stored with.
// Messenger messages wait for a delivery or read event to move them on.
func initialStatus(channel models.Channel) models.MessageStatus {
	if channel == models.ChannelWhatsApp {
		return models.MessageStatusDelivered
	}
	return models.MessageStatusPending
}

// Package conversation finds or creates the conversation a contact belongs to.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"meta-relay/internal/models"
	"meta-relay/internal/repository"
)

type Resolver struct {
	repo   repository.ConversationRepository
	locker *KeyLocker
	logger *zap.Logger
}

func NewResolver(repo repository.ConversationRepository, locker *KeyLocker, logger *zap.Logger) *Resolver {
	return &Resolver{
		repo:   repo,
		locker: locker,
		logger: logger,
	}
}

// Resolve returns the conversation for (contactID, channel), creating it on first use.
// Creation is serialized per key; the unique index catches anything that slips past.
func (r *Resolver) Resolve(ctx context.Context, contactID string, channel models.Channel) (*models.Conversation, error) {
	if contactID == "" {
		return nil, fmt.Errorf("resolve conversation: empty contact id")
	}
	if !channel.Valid() {
		return nil, fmt.Errorf("resolve conversation: invalid channel %q", channel)
	}

	conv, err := r.find(ctx, contactID, channel)
	if err != nil || conv != nil {
		return conv, err
	}

	unlock, err := r.locker.Lock(ctx, lockKey(contactID, channel))
	if err != nil {
		return nil, fmt.Errorf("lock conversation key: %w", err)
	}
	defer unlock()

	conv, err = r.find(ctx, contactID, channel)
	if err != nil || conv != nil {
		return conv, err
	}

	conv = &models.Conversation{
		ContactID: contactID,
		Channel:   channel,
	}
	if err := r.repo.Create(ctx, conv); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			r.logger.Debug("Conversation created concurrently, re-reading",
				zap.String("contact_id", contactID),
				zap.String("channel", string(channel)))
			return r.repo.GetByContactAndChannel(ctx, contactID, channel)
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	r.logger.Info("Conversation created",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("contact_id", contactID),
		zap.String("channel", string(channel)))
	return conv, nil
}

func (r *Resolver) find(ctx context.Context, contactID string, channel models.Channel) (*models.Conversation, error) {
	conv, err := r.repo.GetByContactAndChannel(ctx, contactID, channel)
	if err == nil {
		return conv, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("find conversation: %w", err)
}

func lockKey(contactID string, channel models.Channel) string {
	return fmt.Sprintf("conversation:%s:%s", channel, contactID)
}

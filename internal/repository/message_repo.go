package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"meta-relay/internal/models"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	Update(ctx context.Context, message *models.Message) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByMessageID(ctx context.Context, messageID string) (*models.Message, error)
	ExistsByMessageID(ctx context.Context, messageID string) (bool, error)
	ListByConversationID(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)
	CountByChannelAndDirection(ctx context.Context, channel models.Channel, direction models.MessageDirection) (int64, error)
	CountByChannelAndStatus(ctx context.Context, channel models.Channel, status models.MessageStatus) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) Update(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Save(message).Error
}

func (r *messageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Message{}, "id = ?", id).Error
}

func (r *messageRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("message_id = ?", messageID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *messageRepository) ListByConversationID(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	var messages []*models.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) CountByChannelAndDirection(ctx context.Context, channel models.Channel, direction models.MessageDirection) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.channel = ? AND messages.direction = ?", channel, direction).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *messageRepository) CountByChannelAndStatus(ctx context.Context, channel models.Channel, status models.MessageStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.channel = ? AND messages.status = ?", channel, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

package repository

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"meta-relay/internal/models"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetByContactAndChannel(ctx context.Context, contactID string, channel models.Channel) (*models.Conversation, error)
	ListSummariesByChannel(ctx context.Context, channel models.Channel) ([]*models.ConversationSummary, error)
	CountByChannel(ctx context.Context, channel models.Channel) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conversation).Error
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *conversationRepository) GetByContactAndChannel(ctx context.Context, contactID string, channel models.Channel) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).
		Where("contact_id = ? AND channel = ?", contactID, channel).
		First(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

type conversationSummaryRow struct {
	ID           uuid.UUID
	ContactID    string
	Channel      models.Channel
	CreatedAt    time.Time
	LastMessage  *string
	LastActivity *time.Time
}

// ListSummariesByChannel returns one row per conversation with its latest message,
// most recent activity first. Conversations without messages sort by creation time.
func (r *conversationRepository) ListSummariesByChannel(ctx context.Context, channel models.Channel) ([]*models.ConversationSummary, error) {
	var rows []conversationSummaryRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.id, c.contact_id, c.channel, c.created_at,
		       m.content AS last_message, m.timestamp AS last_activity
		FROM conversations c
		LEFT JOIN messages m ON m.id = (
			SELECT m2.id FROM messages m2
			WHERE m2.conversation_id = c.id
			ORDER BY m2.timestamp DESC
			LIMIT 1
		)
		WHERE c.channel = ?
	`, channel).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		summary := &models.ConversationSummary{
			ID:           row.ID,
			ContactID:    row.ContactID,
			Channel:      row.Channel,
			LastActivity: row.LastActivity,
		}
		if row.LastMessage != nil {
			summary.LastMessage = *row.LastMessage
		}
		summaries = append(summaries, summary)
	}

	sortByActivity(summaries, rows)
	return summaries, nil
}

func sortByActivity(summaries []*models.ConversationSummary, rows []conversationSummaryRow) {
	activity := make(map[uuid.UUID]time.Time, len(rows))
	for _, row := range rows {
		if row.LastActivity != nil {
			activity[row.ID] = *row.LastActivity
		} else {
			activity[row.ID] = row.CreatedAt
		}
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return activity[summaries[i].ID].After(activity[summaries[j].ID])
	})
}

func (r *conversationRepository) CountByChannel(ctx context.Context, channel models.Channel) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("channel = ?", channel).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes the conversation together with every message it owns.
func (r *conversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Conversation{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

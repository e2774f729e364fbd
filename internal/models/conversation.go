package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Channel string

const (
	ChannelWhatsApp  Channel = "WHATSAPP"
	ChannelMessenger Channel = "MESSENGER"
)

func (c Channel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelMessenger
}

// ParseChannel accepts the lowercase route form ("whatsapp") as well as the stored form.
func ParseChannel(s string) (Channel, bool) {
	switch s {
	case "whatsapp", "WHATSAPP":
		return ChannelWhatsApp, true
	case "messenger", "MESSENGER":
		return ChannelMessenger, true
	}
	return "", false
}

type Conversation struct {
	ID        uuid.UUID  `gorm:"type:char(36);primary_key" json:"id"`
	ContactID string     `gorm:"type:varchar(191);not null;uniqueIndex:idx_contact_channel" json:"contactId"`
	Channel   Channel    `gorm:"type:varchar(20);not null;uniqueIndex:idx_contact_channel" json:"channel"`
	Messages  []*Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	ID           uuid.UUID  `json:"id"`
	ContactID    string     `json:"contactId"`
	Channel      Channel    `json:"channel"`
	LastMessage  string     `json:"lastMessage"`
	LastActivity *time.Time `json:"lastActivity"`
}

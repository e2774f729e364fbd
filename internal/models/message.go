package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageDirection string

const (
	MessageDirectionInbound  MessageDirection = "INBOUND"
	MessageDirectionOutbound MessageDirection = "OUTBOUND"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "PENDING"
	MessageStatusSent      MessageStatus = "SENT"
	MessageStatusDelivered MessageStatus = "DELIVERED"
	MessageStatusRead      MessageStatus = "READ"
	MessageStatusFailed    MessageStatus = "FAILED"
)

// ParseMessageStatus uppercases a provider status string ("delivered") into the
// internal enum. Unknown values report false.
func ParseMessageStatus(s string) (MessageStatus, bool) {
	status := MessageStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case MessageStatusPending, MessageStatusSent, MessageStatusDelivered,
		MessageStatusRead, MessageStatusFailed:
		return status, true
	}
	return "", false
}

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeTemplate MessageType = "template"
	MessageTypeImage    MessageType = "image"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
	MessageTypeVideo    MessageType = "video"
	MessageTypeUnknown  MessageType = "unknown"
)

type Message struct {
	ID             uuid.UUID        `gorm:"type:char(36);primary_key" json:"id"`
	ConversationID uuid.UUID        `gorm:"type:char(36);not null;index" json:"conversationId"`
	Content        string           `gorm:"type:text;not null" json:"content"`
	Type           MessageType      `gorm:"type:varchar(20);not null" json:"type"`
	Sender         string           `gorm:"type:varchar(191);not null" json:"sender"`
	MessageID      string           `gorm:"type:varchar(191);not null;uniqueIndex" json:"messageId"`
	Direction      MessageDirection `gorm:"type:varchar(20);not null" json:"direction"`
	Status         MessageStatus    `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	FailureReason  string           `gorm:"type:text" json:"failureReason,omitempty"`
	Timestamp      time.Time        `gorm:"not null;index" json:"timestamp"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return nil
}

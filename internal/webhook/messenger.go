package webhook

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"meta-relay/internal/models"
)

const messengerObject = "page"

type messengerPayload struct {
	Object string           `json:"object"`
	Entry  []messengerEntry `json:"entry"`
}

type messengerEntry struct {
	ID        string               `json:"id"`
	Time      int64                `json:"time"`
	Messaging []messengerMessaging `json:"messaging"`
}

type messengerMessaging struct {
	Sender    messengerUser      `json:"sender"`
	Recipient messengerUser      `json:"recipient"`
	Timestamp int64              `json:"timestamp"` // milliseconds
	Message   *messengerMessage  `json:"message,omitempty"`
	Delivery  *messengerDelivery `json:"delivery,omitempty"`
	Read      *messengerRead     `json:"read,omitempty"`
}

type messengerUser struct {
	ID string `json:"id"`
}

type messengerMessage struct {
	MID         string                `json:"mid"`
	Text        string                `json:"text"`
	IsEcho      bool                  `json:"is_echo,omitempty"`
	Attachments []messengerAttachment `json:"attachments,omitempty"`
}

type messengerAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

type messengerDelivery struct {
	MIDs      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

type messengerRead struct {
	MID       string `json:"mid,omitempty"`
	Watermark int64  `json:"watermark"`
}

type MessengerInterpreter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewMessengerInterpreter(logger *zap.Logger) *MessengerInterpreter {
	return &MessengerInterpreter{logger: logger, now: time.Now}
}

func (m *MessengerInterpreter) Channel() models.Channel {
	return models.ChannelMessenger
}

func (m *MessengerInterpreter) Interpret(body []byte) []Event {
	var payload messengerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		m.logger.Warn("Ignoring malformed Messenger payload", zap.Error(err))
		return nil
	}

	if payload.Object != messengerObject {
		m.logger.Info("Ignoring payload for unexpected object",
			zap.String("object", payload.Object))
		return nil
	}

	var events []Event
	for _, entry := range payload.Entry {
		for _, ev := range entry.Messaging {
			if event := m.interpretMessaging(ev); event != nil {
				events = append(events, event)
			}
		}
	}
	return events
}

func (m *MessengerInterpreter) interpretMessaging(ev messengerMessaging) Event {
	switch {
	case ev.Message != nil:
		if ev.Message.MID == "" {
			m.logger.Warn("Skipping Messenger message without mid",
				zap.String("sender_id", ev.Sender.ID))
			return nil
		}
		msgType, content := messengerContent(ev.Message)
		return &IncomingMessage{
			Channel:     models.ChannelMessenger,
			SenderID:    ev.Sender.ID,
			RecipientID: ev.Recipient.ID,
			MessageID:   ev.Message.MID,
			Type:        msgType,
			Content:     content,
			Timestamp:   m.millis(ev.Timestamp),
		}

	case ev.Delivery != nil:
		if len(ev.Delivery.MIDs) == 0 {
			m.logger.Debug("Messenger delivery without mids",
				zap.Int64("watermark", ev.Delivery.Watermark))
			return nil
		}
		return &StatusUpdate{
			Channel:     models.ChannelMessenger,
			MessageID:   ev.Delivery.MIDs[0],
			RecipientID: ev.Sender.ID,
			Status:      models.MessageStatusDelivered,
		}

	case ev.Read != nil:
		if ev.Read.MID == "" {
			m.logger.Debug("Messenger read receipt carries only a watermark",
				zap.Int64("watermark", ev.Read.Watermark))
			return nil
		}
		return &StatusUpdate{
			Channel:     models.ChannelMessenger,
			MessageID:   ev.Read.MID,
			RecipientID: ev.Sender.ID,
			Status:      models.MessageStatusRead,
		}
	}

	m.logger.Debug("Ignoring unsupported Messenger event",
		zap.String("sender_id", ev.Sender.ID))
	return nil
}

func (m *MessengerInterpreter) millis(ms int64) time.Time {
	if ms <= 0 {
		return m.now()
	}
	return time.UnixMilli(ms)
}

func messengerContent(msg *messengerMessage) (models.MessageType, string) {
	if msg.Text != "" {
		return models.MessageTypeText, msg.Text
	}
	if len(msg.Attachments) > 0 {
		att := msg.Attachments[0]
		t := messengerAttachmentType(att.Type)
		return t, placeholder(t, att.Payload.URL)
	}
	return models.MessageTypeUnknown, placeholder(models.MessageTypeUnknown, "")
}

func messengerAttachmentType(t string) models.MessageType {
	switch strings.ToLower(t) {
	case "image":
		return models.MessageTypeImage
	case "audio":
		return models.MessageTypeAudio
	case "video":
		return models.MessageTypeVideo
	case "file":
		return models.MessageTypeDocument
	}
	return models.MessageTypeUnknown
}

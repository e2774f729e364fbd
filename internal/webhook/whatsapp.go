package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"meta-relay/internal/models"
)

const whatsAppObject = "whatsapp_business_account"

type whatsAppPayload struct {
	Object string          `json:"object"`
	Entry  []whatsAppEntry `json:"entry"`
}

type whatsAppEntry struct {
	ID      string           `json:"id"`
	Changes []whatsAppChange `json:"changes"`
}

type whatsAppChange struct {
	Field string        `json:"field"`
	Value whatsAppValue `json:"value"`
}

type whatsAppValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         whatsAppMetadata  `json:"metadata"`
	Messages         []whatsAppMessage `json:"messages"`
	Statuses         []whatsAppStatus  `json:"statuses"`
}

type whatsAppMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type whatsAppMessage struct {
	From      string         `json:"from"`
	To        string         `json:"to,omitempty"`
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Text      *whatsAppText  `json:"text,omitempty"`
	Image     *whatsAppMedia `json:"image,omitempty"`
	Audio     *whatsAppMedia `json:"audio,omitempty"`
	Document  *whatsAppMedia `json:"document,omitempty"`
	Video     *whatsAppMedia `json:"video,omitempty"`
	Template  *whatsAppMedia `json:"template,omitempty"`
}

type whatsAppText struct {
	Body string `json:"body"`
}

// whatsAppMedia covers media objects and template references; both carry an id.
type whatsAppMedia struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type whatsAppStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

type WhatsAppInterpreter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewWhatsAppInterpreter(logger *zap.Logger) *WhatsAppInterpreter {
	return &WhatsAppInterpreter{logger: logger, now: time.Now}
}

func (w *WhatsAppInterpreter) Channel() models.Channel {
	return models.ChannelWhatsApp
}

func (w *WhatsAppInterpreter) Interpret(body []byte) []Event {
	var payload whatsAppPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		w.logger.Warn("Ignoring malformed WhatsApp payload", zap.Error(err))
		return nil
	}

	if payload.Object != whatsAppObject {
		w.logger.Info("Ignoring payload for unexpected object",
			zap.String("object", payload.Object))
		return nil
	}

	var events []Event
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			for _, msg := range value.Messages {
				if msg.ID == "" {
					w.logger.Warn("Skipping WhatsApp message without id",
						zap.String("from", msg.From))
					continue
				}
				msgType, content := whatsAppContent(msg)
				recipient := msg.To
				if recipient == "" {
					recipient = value.Metadata.DisplayPhoneNumber
				}
				events = append(events, &IncomingMessage{
					Channel:     models.ChannelWhatsApp,
					SenderID:    msg.From,
					RecipientID: recipient,
					MessageID:   msg.ID,
					Type:        msgType,
					Content:     content,
					Timestamp:   unixTime(parseUnix(msg.Timestamp), w.now),
				})
			}

			for _, st := range value.Statuses {
				status, ok := models.ParseMessageStatus(st.Status)
				if !ok || st.ID == "" {
					w.logger.Warn("Skipping unrecognized WhatsApp status",
						zap.String("message_id", st.ID),
						zap.String("status", st.Status))
					continue
				}
				events = append(events, &StatusUpdate{
					Channel:     models.ChannelWhatsApp,
					MessageID:   st.ID,
					RecipientID: st.RecipientID,
					Status:      status,
				})
			}
		}
	}

	return events
}

// whatsAppContent dispatches on the message type. Non-text payloads become a
// bracketed placeholder carrying the provider's media or template id.
func whatsAppContent(msg whatsAppMessage) (models.MessageType, string) {
	switch models.MessageType(msg.Type) {
	case models.MessageTypeText:
		if msg.Text == nil {
			return models.MessageTypeText, ""
		}
		return models.MessageTypeText, msg.Text.Body
	case models.MessageTypeTemplate:
		return models.MessageTypeTemplate, placeholder(models.MessageTypeTemplate, templateRef(msg.Template))
	case models.MessageTypeImage:
		return models.MessageTypeImage, placeholder(models.MessageTypeImage, mediaID(msg.Image))
	case models.MessageTypeAudio:
		return models.MessageTypeAudio, placeholder(models.MessageTypeAudio, mediaID(msg.Audio))
	case models.MessageTypeDocument:
		return models.MessageTypeDocument, placeholder(models.MessageTypeDocument, mediaID(msg.Document))
	case models.MessageTypeVideo:
		return models.MessageTypeVideo, placeholder(models.MessageTypeVideo, mediaID(msg.Video))
	}
	return models.MessageTypeUnknown, placeholder(models.MessageTypeUnknown, "")
}

func placeholder(t models.MessageType, ref string) string {
	tag := fmt.Sprintf("[%s]", strings.ToUpper(string(t)))
	if ref == "" {
		return tag
	}
	return tag + " " + ref
}

func mediaID(m *whatsAppMedia) string {
	if m == nil {
		return ""
	}
	return m.ID
}

func templateRef(m *whatsAppMedia) string {
	if m == nil {
		return ""
	}
	if m.ID != "" {
		return m.ID
	}
	return m.Name
}

func parseUnix(s string) int64 {
	sec, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return sec
}

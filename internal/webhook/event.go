// Package webhook turns raw provider callbacks into normalized events.
//
// Each channel has its own Interpreter; all of them emit the same two event
// shapes so the reconciler never needs to know which provider it is handling.
// Interpreters never fail: a payload they cannot understand yields no events.
package webhook

import (
	"time"

	"meta-relay/internal/models"
)

// Event is either an *IncomingMessage or a *StatusUpdate.
type Event interface {
	EventChannel() models.Channel
	ProviderMessageID() string
}

// IncomingMessage is a message delivered to (or echoed back through) the webhook.
type IncomingMessage struct {
	Channel     models.Channel
	SenderID    string
	RecipientID string
	MessageID   string
	Type        models.MessageType
	Content     string
	Timestamp   time.Time
}

func (m *IncomingMessage) EventChannel() models.Channel { return m.Channel }
func (m *IncomingMessage) ProviderMessageID() string    { return m.MessageID }

// StatusUpdate reports a new lifecycle status for a previously sent message.
type StatusUpdate struct {
	Channel     models.Channel
	MessageID   string
	RecipientID string
	Status      models.MessageStatus
}

func (s *StatusUpdate) EventChannel() models.Channel { return s.Channel }
func (s *StatusUpdate) ProviderMessageID() string    { return s.MessageID }

// Interpreter parses one provider's payload format.
type Interpreter interface {
	Channel() models.Channel
	Interpret(body []byte) []Event
}

// unixTime converts provider timestamps, falling back to now for missing values.
func unixTime(sec int64, now func() time.Time) time.Time {
	if sec <= 0 {
		return now()
	}
	return time.Unix(sec, 0)
}

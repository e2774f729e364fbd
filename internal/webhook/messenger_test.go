package webhook

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"meta-relay/internal/models"
)

func TestMessengerInterpreter_Message(t *testing.T) {
	body := `{
	  "object": "page",
	  "entry": [{
	    "id": "PAGE",
	    "time": 1700000000000,
	    "messaging": [{
	      "sender": {"id": "USER1"},
	      "recipient": {"id": "PAGE"},
	      "timestamp": 1700000000123,
	      "message": {"mid": "m1", "text": "hey"}
	    }]
	  }]
	}`

	events := NewMessengerInterpreter(zap.NewNop()).Interpret([]byte(body))
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	msg, ok := events[0].(*IncomingMessage)
	if !ok {
		t.Fatalf("Expected *IncomingMessage, got %T", events[0])
	}
	if msg.Channel != models.ChannelMessenger || msg.MessageID != "m1" || msg.Content != "hey" {
		t.Fatalf("Unexpected message: %+v", msg)
	}
	if msg.SenderID != "USER1" || msg.RecipientID != "PAGE" {
		t.Fatalf("Unexpected parties: %s -> %s", msg.SenderID, msg.RecipientID)
	}
	if !msg.Timestamp.Equal(time.UnixMilli(1700000000123)) {
		t.Fatalf("Unexpected timestamp: %v", msg.Timestamp)
	}
}

func TestMessengerInterpreter_Attachment(t *testing.T) {
	body := `{"object": "page", "entry": [{"messaging": [
	  {"sender": {"id": "U"}, "recipient": {"id": "P"},
	   "message": {"mid": "m2", "attachments": [{"type": "image", "payload": {"url": "https://cdn/x.png"}}]}},
	  {"sender": {"id": "U"}, "recipient": {"id": "P"},
	   "message": {"mid": "m3", "attachments": [{"type": "file", "payload": {"url": "https://cdn/x.pdf"}}]}},
	  {"sender": {"id": "U"}, "recipient": {"id": "P"},
	   "message": {"mid": "m4"}}
	]}]}`

	events := NewMessengerInterpreter(zap.NewNop()).Interpret([]byte(body))
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if c := events[0].(*IncomingMessage).Content; c != "[IMAGE] https://cdn/x.png" {
		t.Fatalf("Unexpected image content: %q", c)
	}
	if m := events[1].(*IncomingMessage); m.Type != models.MessageTypeDocument || m.Content != "[DOCUMENT] https://cdn/x.pdf" {
		t.Fatalf("Unexpected file message: %+v", m)
	}
	if m := events[2].(*IncomingMessage); m.Type != models.MessageTypeUnknown || m.Content != "[UNKNOWN]" {
		t.Fatalf("Unexpected empty message: %+v", m)
	}
}

func TestMessengerInterpreter_DeliveryAndRead(t *testing.T) {
	body := `{"object": "page", "entry": [{"messaging": [
	  {"sender": {"id": "U"}, "recipient": {"id": "P"}, "delivery": {"mids": ["m1", "m0"], "watermark": 1}},
	  {"sender": {"id": "U"}, "recipient": {"id": "P"}, "delivery": {"mids": [], "watermark": 2}},
	  {"sender": {"id": "U"}, "recipient": {"id": "P"}, "read": {"mid": "m1", "watermark": 3}},
	  {"sender": {"id": "U"}, "recipient": {"id": "P"}, "read": {"watermark": 4}}
	]}]}`

	events := NewMessengerInterpreter(zap.NewNop()).Interpret([]byte(body))
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	delivered := events[0].(*StatusUpdate)
	if delivered.MessageID != "m1" || delivered.Status != models.MessageStatusDelivered {
		t.Fatalf("Unexpected delivery event: %+v", delivered)
	}
	read := events[1].(*StatusUpdate)
	if read.MessageID != "m1" || read.Status != models.MessageStatusRead {
		t.Fatalf("Unexpected read event: %+v", read)
	}
}

func TestMessengerInterpreter_IgnoresOtherObjects(t *testing.T) {
	interp := NewMessengerInterpreter(zap.NewNop())

	for _, body := range []string{
		`{"object": "whatsapp_business_account", "entry": []}`,
		`{"object": "page", "entry": "nope"}`,
		`not json`,
	} {
		if events := interp.Interpret([]byte(body)); len(events) != 0 {
			t.Fatalf("Expected no events for %q, got %d", body, len(events))
		}
	}
}

package message

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"meta-relay/internal/models"
	"meta-relay/internal/service"
	"meta-relay/internal/webhook"
)

const whatsAppInbound = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "WABA", "changes": [{"field": "messages", "value": {
    "metadata": {"display_phone_number": "15559999", "phone_number_id": "PNID"},
    "messages": [{"from": "15550001", "id": "wamid.A", "timestamp": "1700000000", "type": "text", "text": {"body": "hello"}}]
  }}]}]
}`

func TestReconciler_WhatsAppInboundCreatesConversationAndMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := webhook.NewWhatsAppInterpreter(zap.NewNop()).Interpret([]byte(whatsAppInbound))

	mustNotErr(t, f.reconciler.Process(ctx, events), "Process")

	conv, err := f.conversations.GetByContactAndChannel(ctx, "15550001", models.ChannelWhatsApp)
	mustNotErr(t, err, "GetByContactAndChannel")

	msgs, err := f.messages.ListByConversationID(ctx, conv.ID)
	mustNotErr(t, err, "ListByConversationID")
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	msg := msgs[0]
	if msg.MessageID != "wamid.A" || msg.Direction != models.MessageDirectionInbound || msg.Status != models.MessageStatusDelivered {
		t.Fatalf("Unexpected message: %+v", msg)
	}
	if msg.Content != "hello" || msg.Sender != "15550001" {
		t.Fatalf("Unexpected content or sender: %+v", msg)
	}
}

func TestReconciler_RedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := webhook.NewWhatsAppInterpreter(zap.NewNop())

	mustNotErr(t, f.reconciler.Process(ctx, interp.Interpret([]byte(whatsAppInbound))), "first Process")
	mustNotErr(t, f.reconciler.Process(ctx, interp.Interpret([]byte(whatsAppInbound))), "second Process")

	count, err := f.messages.CountByChannelAndDirection(ctx, models.ChannelWhatsApp, models.MessageDirectionInbound)
	mustNotErr(t, err, "CountByChannelAndDirection")
	if count != 1 {
		t.Fatalf("Expected exactly 1 message after redelivery, got %d", count)
	}
}

func TestReconciler_RecordIncomingReportsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := &webhook.IncomingMessage{
		Channel:   models.ChannelMessenger,
		SenderID:  "USER1",
		MessageID: "m1",
		Type:      models.MessageTypeText,
		Content:   "hi",
		Timestamp: time.Now(),
	}

	msg, created, err := f.reconciler.RecordIncoming(ctx, ev)
	mustNotErr(t, err, "RecordIncoming")
	if !created || msg == nil {
		t.Fatal("Expected first delivery to create a message")
	}
	if msg.Status != models.MessageStatusPending {
		t.Fatalf("Messenger inbound should start PENDING, got %s", msg.Status)
	}

	msg, created, err = f.reconciler.RecordIncoming(ctx, ev)
	mustNotErr(t, err, "RecordIncoming")
	if created || msg != nil {
		t.Fatal("Expected redelivery to be reported as duplicate")
	}
}

func TestReconciler_EchoIsOutboundAndFiledUnderContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, created, err := f.reconciler.RecordIncoming(ctx, &webhook.IncomingMessage{
		Channel:     models.ChannelMessenger,
		SenderID:    "PAGE",
		RecipientID: "USER1",
		MessageID:   "m_echo",
		Type:        models.MessageTypeText,
		Content:     "we replied",
	})
	mustNotErr(t, err, "RecordIncoming")
	if !created || msg.Direction != models.MessageDirectionOutbound {
		t.Fatalf("Expected an OUTBOUND echo, got %+v", msg)
	}

	conv, err := f.conversations.GetByContactAndChannel(ctx, "USER1", models.ChannelMessenger)
	mustNotErr(t, err, "GetByContactAndChannel")
	if conv.ID != msg.ConversationID {
		t.Fatal("Echo should be stored in the contact's conversation")
	}
}

func TestReconciler_WhatsAppEchoWithFormattedBusinessNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, created, err := f.reconciler.RecordIncoming(ctx, &webhook.IncomingMessage{
		Channel:     models.ChannelWhatsApp,
		SenderID:    "+1 555-9999",
		RecipientID: "15550001",
		MessageID:   "wamid.echo",
		Type:        models.MessageTypeText,
		Content:     "on our way",
	})
	mustNotErr(t, err, "RecordIncoming")
	if !created || msg.Direction != models.MessageDirectionOutbound {
		t.Fatalf("Expected an OUTBOUND echo, got %+v", msg)
	}

	conv, err := f.conversations.GetByContactAndChannel(ctx, "15550001", models.ChannelWhatsApp)
	mustNotErr(t, err, "GetByContactAndChannel")
	if conv.ID != msg.ConversationID {
		t.Fatal("Echo should be stored in the contact's conversation")
	}

	count, err := f.conversations.CountByChannel(ctx, models.ChannelWhatsApp)
	mustNotErr(t, err, "CountByChannel")
	if count != 1 {
		t.Fatalf("No conversation should be opened for the business number, got %d", count)
	}
}

func TestReconciler_MessengerDeliveryUpdatesKnownMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.reconciler.RecordIncoming(ctx, &webhook.IncomingMessage{
		Channel:   models.ChannelMessenger,
		SenderID:  "USER1",
		MessageID: "m1",
		Type:      models.MessageTypeText,
		Content:   "hi",
	})
	mustNotErr(t, err, "RecordIncoming")

	body := `{"object": "page", "entry": [{"messaging": [
	  {"sender": {"id": "USER1"}, "recipient": {"id": "PAGE"}, "delivery": {"mids": ["m1"], "watermark": 1}}
	]}]}`
	events := webhook.NewMessengerInterpreter(zap.NewNop()).Interpret([]byte(body))
	mustNotErr(t, f.reconciler.Process(ctx, events), "Process")

	msg, err := f.messages.GetByMessageID(ctx, "m1")
	mustNotErr(t, err, "GetByMessageID")
	if msg.Status != models.MessageStatusDelivered {
		t.Fatalf("Expected DELIVERED, got %s", msg.Status)
	}
}

func TestReconciler_StatusForUnknownMessageIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, err := f.reconciler.ApplyStatus(ctx, "m-missing", models.MessageStatusDelivered)
	if err != nil {
		t.Fatalf("Unknown message id should not be an error, got %v", err)
	}
	if updated != nil {
		t.Fatalf("Expected nil message for unknown id, got %+v", updated)
	}

	count, err := f.messages.CountByChannelAndStatus(ctx, models.ChannelMessenger, models.MessageStatusDelivered)
	mustNotErr(t, err, "CountByChannelAndStatus")
	if count != 0 {
		t.Fatalf("No message should be created, got %d", count)
	}
	f.reconciler.WaitAlerts()
	if alerts := f.alerts.sent(); len(alerts) != 0 {
		t.Fatalf("No alert expected for ignorable events, got %v", alerts)
	}
}

// A late DELIVERED overwrites READ. Status updates are last-write-wins with no
// ordering guard; this test pins that behavior.
func TestReconciler_StatusIsLastWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.reconciler.RecordIncoming(ctx, &webhook.IncomingMessage{
		Channel:   models.ChannelWhatsApp,
		SenderID:  "15550001",
		MessageID: "wamid.C",
		Type:      models.MessageTypeText,
		Content:   "x",
	})
	mustNotErr(t, err, "RecordIncoming")

	for _, status := range []models.MessageStatus{
		models.MessageStatusRead,
		models.MessageStatusDelivered,
	} {
		_, err := f.reconciler.ApplyStatus(ctx, "wamid.C", status)
		mustNotErr(t, err, "ApplyStatus")
	}

	msg, err := f.messages.GetByMessageID(ctx, "wamid.C")
	mustNotErr(t, err, "GetByMessageID")
	if msg.Status != models.MessageStatusDelivered {
		t.Fatalf("Expected last write (DELIVERED) to win, got %s", msg.Status)
	}
}

type alertCall struct {
	err         error
	hasDeadline bool
}

type blockingAlerter struct {
	release chan struct{}
	done    chan alertCall
}

func (a *blockingAlerter) NotifyCriticalError(ctx context.Context, errType service.ErrorType, err error, details string) {
	<-a.release
	_, hasDeadline := ctx.Deadline()
	a.done <- alertCall{err: ctx.Err(), hasDeadline: hasDeadline}
}

func TestReconciler_AlertDoesNotBlockCaller(t *testing.T) {
	f := newFixture(t)
	alerter := &blockingAlerter{release: make(chan struct{}), done: make(chan alertCall, 1)}
	r := NewReconciler(f.messages, f.resolver, testMeta, alerter, zap.NewNop())

	reqCtx, cancel := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		r.alert(reqCtx, service.ErrorTypeDatabase, errors.New("disk full"), "webhook reconciliation")
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("alert should return before the notification is sent")
	}

	cancel()
	close(alerter.release)
	r.WaitAlerts()

	call := <-alerter.done
	if call.err != nil {
		t.Fatalf("Alert context should outlive the request, got %v", call.err)
	}
	if !call.hasDeadline {
		t.Fatal("Alert context should carry a deadline")
	}
}

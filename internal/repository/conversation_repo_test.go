package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"meta-relay/internal/models"
	"meta-relay/internal/testutil"
)

func TestConversationRepository_UniqueContactChannel(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	first := &models.Conversation{ContactID: "15550001", Channel: models.ChannelWhatsApp}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}
	if first.ID == uuid.Nil {
		t.Fatal("Conversation ID should be assigned on create")
	}

	dup := &models.Conversation{ContactID: "15550001", Channel: models.ChannelWhatsApp}
	err := repo.Create(ctx, dup)
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("Second conversation for the same key should be rejected, got: %v", err)
	}

	// Same contact on another channel is a separate conversation.
	other := &models.Conversation{ContactID: "15550001", Channel: models.ChannelMessenger}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Conversation on another channel should be allowed: %v", err)
	}

	found, err := repo.GetByContactAndChannel(ctx, "15550001", models.ChannelWhatsApp)
	if err != nil {
		t.Fatalf("Failed to find conversation: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("Expected %s, got %s", first.ID, found.ID)
	}
}

func TestConversationRepository_ListSummariesByChannel(t *testing.T) {
	db := testutil.NewDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	ctx := context.Background()

	older := &models.Conversation{ContactID: "a", Channel: models.ChannelWhatsApp}
	newer := &models.Conversation{ContactID: "b", Channel: models.ChannelWhatsApp}
	empty := &models.Conversation{ContactID: "c", Channel: models.ChannelWhatsApp}
	elsewhere := &models.Conversation{ContactID: "d", Channel: models.ChannelMessenger}
	for _, c := range []*models.Conversation{older, newer, empty, elsewhere} {
		if err := convRepo.Create(ctx, c); err != nil {
			t.Fatalf("Failed to create conversation: %v", err)
		}
	}

	base := time.Now().Add(-time.Hour)
	msgs := []*models.Message{
		{ConversationID: older.ID, Content: "first", MessageID: "m1", Timestamp: base},
		{ConversationID: older.ID, Content: "second", MessageID: "m2", Timestamp: base.Add(time.Minute)},
		{ConversationID: newer.ID, Content: "latest", MessageID: "m3", Timestamp: base.Add(10 * time.Minute)},
	}
	for _, m := range msgs {
		m.Type = models.MessageTypeText
		m.Sender = "x"
		m.Direction = models.MessageDirectionInbound
		m.Status = models.MessageStatusDelivered
		if err := msgRepo.Create(ctx, m); err != nil {
			t.Fatalf("Failed to create message: %v", err)
		}
	}

	summaries, err := convRepo.ListSummariesByChannel(ctx, models.ChannelWhatsApp)
	if err != nil {
		t.Fatalf("Failed to list summaries: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("Expected 3 WhatsApp conversations, got %d", len(summaries))
	}

	// The empty conversation was created just now, after every message timestamp.
	if summaries[0].ID != empty.ID {
		t.Fatalf("Expected empty (newest) conversation first, got %s", summaries[0].ContactID)
	}
	if summaries[1].ID != newer.ID || summaries[1].LastMessage != "latest" {
		t.Fatalf("Expected conversation b with 'latest', got %s/%q", summaries[1].ContactID, summaries[1].LastMessage)
	}
	if summaries[2].ID != older.ID || summaries[2].LastMessage != "second" {
		t.Fatalf("Expected conversation a with 'second', got %s/%q", summaries[2].ContactID, summaries[2].LastMessage)
	}
	if summaries[0].LastActivity != nil {
		t.Fatal("Conversation without messages should have no last activity")
	}
}

func TestConversationRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	ctx := context.Background()

	conv := &models.Conversation{ContactID: "15550001", Channel: models.ChannelWhatsApp}
	if err := convRepo.Create(ctx, conv); err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}
	msg := &models.Message{
		ConversationID: conv.ID,
		Content:        "hi",
		Type:           models.MessageTypeText,
		Sender:         "15550001",
		MessageID:      "wamid.X",
		Direction:      models.MessageDirectionInbound,
		Status:         models.MessageStatusDelivered,
	}
	if err := msgRepo.Create(ctx, msg); err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}

	if err := convRepo.Delete(ctx, conv.ID); err != nil {
		t.Fatalf("Failed to delete conversation: %v", err)
	}

	exists, err := msgRepo.ExistsByMessageID(ctx, "wamid.X")
	if err != nil {
		t.Fatalf("Failed to check message: %v", err)
	}
	if exists {
		t.Fatal("Messages should be deleted with their conversation")
	}

	if err := convRepo.Delete(ctx, conv.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("Deleting a missing conversation should report not found, got: %v", err)
	}
}

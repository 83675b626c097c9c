package repo

import (
	"context"
	"testing"
	"time"

	"github.com/iwonder/iwonder-backend/internal/domain"
)

func TestListMessagesBefore_CursorPredicate(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.DirectMessage{})
	ctx := context.Background()

	conv, err := GetOrCreateConversation(ctx, db, 1, 2)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}

	// Three messages share one timestamp; two are older. The strict
	// (created_at, id) predicate must split the tied group on id.
	tied := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	older := tied.Add(-time.Minute)
	rows := []domain.DirectMessage{
		{ConversationID: conv.ID, SenderID: 1, ReceiverID: 2, Content: "a", CreatedAt: older},
		{ConversationID: conv.ID, SenderID: 2, ReceiverID: 1, Content: "b", CreatedAt: older},
		{ConversationID: conv.ID, SenderID: 1, ReceiverID: 2, Content: "c", CreatedAt: tied},
		{ConversationID: conv.ID, SenderID: 2, ReceiverID: 1, Content: "d", CreatedAt: tied},
		{ConversationID: conv.ID, SenderID: 1, ReceiverID: 2, Content: "e", CreatedAt: tied},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	// Cursor at the newest tied row: everything strictly before it.
	got, err := ListMessagesBefore(ctx, db, conv.ID, rows[4].CreatedAt, rows[4].ID, 10)
	if err != nil {
		t.Fatalf("ListMessagesBefore: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 rows before cursor, got %d", len(got))
	}
	// Newest first: d, c, then the two older rows by id desc.
	if got[0].Content != "d" || got[1].Content != "c" {
		t.Fatalf("wrong head order: %q, %q", got[0].Content, got[1].Content)
	}
	for _, m := range got {
		if m.ID == rows[4].ID {
			t.Fatal("cursor row leaked into page")
		}
	}

	// Paging again from the oldest returned row reaches the end without
	// repeating anything.
	last := got[len(got)-1]
	rest, err := ListMessagesBefore(ctx, db, conv.ID, last.CreatedAt, last.ID, 10)
	if err != nil {
		t.Fatalf("ListMessagesBefore (second page): %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected empty final page, got %d rows", len(rest))
	}
}

func TestListMessages_OffsetMode(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.DirectMessage{})
	ctx := context.Background()

	conv, _ := GetOrCreateConversation(ctx, db, 1, 2)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		m := domain.DirectMessage{
			ConversationID: conv.ID, SenderID: 1, ReceiverID: 2,
			Content: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := ListMessages(ctx, db, conv.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(got) != 2 || got[0].Content != "b" || got[1].Content != "c" {
		t.Fatalf("unexpected page: %+v", got)
	}
}

func TestMarkConversationRead_OnlyReceiverRows(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.DirectMessage{})
	ctx := context.Background()

	conv, _ := GetOrCreateConversation(ctx, db, 1, 2)
	if _, err := CreateMessage(ctx, db, conv.ID, 1, 2, "to-2", nil); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if _, err := CreateMessage(ctx, db, conv.ID, 2, 1, "to-1", nil); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	if err := MarkConversationRead(ctx, db, conv.ID, 2); err != nil {
		t.Fatalf("MarkConversationRead: %v", err)
	}

	var unread []domain.DirectMessage
	if err := db.Where("is_read = ?", false).Find(&unread).Error; err != nil {
		t.Fatalf("query unread: %v", err)
	}
	if len(unread) != 1 || unread[0].ReceiverID != 1 {
		t.Fatalf("expected only user 1's inbound message unread, got %+v", unread)
	}
}

func TestDeleteMessage_SenderOnly(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.DirectMessage{}, &domain.MessageReaction{})
	ctx := context.Background()

	conv, _ := GetOrCreateConversation(ctx, db, 1, 2)
	msg, _ := CreateMessage(ctx, db, conv.ID, 1, 2, "x", nil)
	_ = AddReaction(ctx, db, msg.ID, 2, "👍")

	ok, err := DeleteMessage(ctx, db, msg.ID, 2)
	if err != nil {
		t.Fatalf("DeleteMessage (wrong user): %v", err)
	}
	if ok {
		t.Fatal("receiver must not be able to delete the sender's message")
	}

	ok, err = DeleteMessage(ctx, db, msg.ID, 1)
	if err != nil || !ok {
		t.Fatalf("DeleteMessage (sender): ok=%v err=%v", ok, err)
	}
	var reactions int64
	db.Model(&domain.MessageReaction{}).Count(&reactions)
	if reactions != 0 {
		t.Fatalf("expected reactions removed with message, got %d", reactions)
	}
}

func TestReactions_IdempotentAddAndSummary(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.DirectMessage{}, &domain.MessageReaction{})
	ctx := context.Background()

	conv, _ := GetOrCreateConversation(ctx, db, 1, 2)
	msg, _ := CreateMessage(ctx, db, conv.ID, 1, 2, "x", nil)

	for i := 0; i < 3; i++ {
		if err := AddReaction(ctx, db, msg.ID, 2, "❤️"); err != nil {
			t.Fatalf("AddReaction #%d: %v", i, err)
		}
	}
	if err := AddReaction(ctx, db, msg.ID, 1, "❤️"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	if err := AddReaction(ctx, db, msg.ID, 1, "😂"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}

	sum, err := ReactionSummary(ctx, db, msg.ID)
	if err != nil {
		t.Fatalf("ReactionSummary: %v", err)
	}
	counts := map[string]int64{}
	for _, rc := range sum {
		counts[rc.Emoji] = rc.Count
	}
	if counts["❤️"] != 2 || counts["😂"] != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	if err := RemoveReaction(ctx, db, msg.ID, 1, "😂"); err != nil {
		t.Fatalf("RemoveReaction: %v", err)
	}
	// Removing again is a no-op.
	if err := RemoveReaction(ctx, db, msg.ID, 1, "😂"); err != nil {
		t.Fatalf("RemoveReaction (repeat): %v", err)
	}
	sum, _ = ReactionSummary(ctx, db, msg.ID)
	if len(sum) != 1 || sum[0].Emoji != "❤️" || sum[0].Count != 2 {
		t.Fatalf("unexpected summary after removal: %+v", sum)
	}
}

func TestLastMessage_EmptyConversation(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.DirectMessage{})
	ctx := context.Background()

	conv, _ := GetOrCreateConversation(ctx, db, 1, 2)
	m, err := LastMessage(ctx, db, conv.ID)
	if err != nil {
		t.Fatalf("LastMessage: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil for empty conversation, got %+v", m)
	}
}

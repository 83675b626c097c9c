package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iwonder/iwonder-backend/internal/cache"
	"github.com/iwonder/iwonder-backend/internal/domain"
	"github.com/iwonder/iwonder-backend/internal/push"
	"github.com/iwonder/iwonder-backend/internal/repo"
	"github.com/iwonder/iwonder-backend/internal/utils"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(
		&domain.User{}, &domain.Follow{}, &domain.UserBlock{},
		&domain.Conversation{}, &domain.DirectMessage{}, &domain.MessageReaction{},
		&domain.Notification{},
		&domain.Question{}, &domain.Answer{}, &domain.AnswerLike{}, &domain.Comment{},
		&domain.AnswerReport{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

// recordChannel collects pushed payloads for assertions.
type recordChannel struct {
	mu   sync.Mutex
	sent [][]byte
}

func (r *recordChannel) Send(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
	return nil
}

func (r *recordChannel) Close() error { return nil }

func (r *recordChannel) payloads() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.sent))
	copy(out, r.sent)
	return out
}

func newMessageService(t *testing.T) (*MessageService, *gorm.DB) {
	t.Helper()
	db := newSvcDB(t)
	return NewMessageService(db, cache.New(nil), push.NewRegistry()), db
}

// ---------- tests ----------

func TestStartConversation_Gates(t *testing.T) {
	s, db := newMessageService(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	if _, err := s.StartConversation(ctx, alice.ID, alice.ID); !errors.Is(err, ErrSelfConversation) {
		t.Fatalf("self conversation: %v", err)
	}
	if _, err := s.StartConversation(ctx, alice.ID, 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: %v", err)
	}

	if err := repo.Block(ctx, db, bob.ID, alice.ID); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := s.StartConversation(ctx, alice.ID, bob.ID); !errors.Is(err, ErrBlocked) {
		t.Fatalf("blocked pair must not converse: %v", err)
	}
	if err := repo.Unblock(ctx, db, bob.ID, alice.ID); err != nil {
		t.Fatalf("unblock: %v", err)
	}

	c1, err := s.StartConversation(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	c2, err := s.StartConversation(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("StartConversation (reversed): %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("expected one conversation, got %d and %d", c1.ID, c2.ID)
	}
}

func TestSendMessage_PushesToBothParticipants(t *testing.T) {
	s, db := newMessageService(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	aliceCh, bobCh := &recordChannel{}, &recordChannel{}
	s.Registry.Connect(alice.ID, aliceCh)
	s.Registry.Connect(bob.ID, bobCh)

	conv, err := s.StartConversation(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	msg, err := s.SendMessage(ctx, alice.ID, conv.ID, "  hello bob  ", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Content != "hello bob" {
		t.Fatalf("content not trimmed: %q", msg.Content)
	}
	if msg.ReceiverID != bob.ID {
		t.Fatalf("receiver = %d, want %d", msg.ReceiverID, bob.ID)
	}

	for name, ch := range map[string]*recordChannel{"alice": aliceCh, "bob": bobCh} {
		got := ch.payloads()
		if len(got) != 1 {
			t.Fatalf("%s: expected 1 push, got %d", name, len(got))
		}
		var env struct {
			Type           string `json:"type"`
			ConversationID int64  `json:"conversation_id"`
			Sender         struct {
				Username string `json:"username"`
			} `json:"sender"`
		}
		if err := json.Unmarshal(got[0], &env); err != nil {
			t.Fatalf("%s: unmarshal push: %v", name, err)
		}
		if env.Type != "dm" || env.ConversationID != conv.ID || env.Sender.Username != "alice" {
			t.Fatalf("%s: unexpected envelope %+v", name, env)
		}
	}
}

func TestSendMessage_Validation(t *testing.T) {
	s, db := newMessageService(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	eve := seedUser(t, db, "eve")

	conv, _ := s.StartConversation(ctx, alice.ID, bob.ID)

	if _, err := s.SendMessage(ctx, alice.ID, conv.ID, "   ", nil); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("empty content: %v", err)
	}

	s.MaxContentRunes = 5
	if _, err := s.SendMessage(ctx, alice.ID, conv.ID, "toolongmessage", nil); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("long content: %v", err)
	}
	s.MaxContentRunes = 5000

	// Non-participants cannot post to the conversation.
	if _, err := s.SendMessage(ctx, eve.ID, conv.ID, "hi", nil); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("outsider send: %v", err)
	}

	// A block created after the conversation opened still stops delivery.
	if err := repo.Block(ctx, db, bob.ID, alice.ID); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := s.SendMessage(ctx, alice.ID, conv.ID, "hi", nil); !errors.Is(err, ErrBlocked) {
		t.Fatalf("blocked send: %v", err)
	}

	// Replies must reference a message of the same conversation.
	if err := repo.Unblock(ctx, db, bob.ID, alice.ID); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	bogus := int64(12345)
	if _, err := s.SendMessage(ctx, alice.ID, conv.ID, "hi", &bogus); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("bogus reply target: %v", err)
	}
}

func TestGetMessages_CursorPagingAndMarkRead(t *testing.T) {
	s, db := newMessageService(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	conv, _ := s.StartConversation(ctx, alice.ID, bob.ID)
	for i := 0; i < 7; i++ {
		if _, err := s.SendMessage(ctx, alice.ID, conv.ID, fmt.Sprintf("m%d", i), nil); err != nil {
			t.Fatalf("SendMessage %d: %v", i, err)
		}
	}

	// First page via offset mode: the 7 messages chronologically.
	page, err := s.GetMessages(ctx, bob.ID, conv.ID, 0, 10, "", false)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(page.Messages) != 7 || page.Messages[0].Content != "m0" {
		t.Fatalf("unexpected first page: %d messages", len(page.Messages))
	}

	// Cursor paging walks backwards from the newest message without
	// repeating or skipping rows.
	newest := page.Messages[len(page.Messages)-1]
	cur := cursorFor(newest)
	seen := map[int64]bool{newest.ID: true}
	total := 1
	for cur != "" {
		p, err := s.GetMessages(ctx, bob.ID, conv.ID, 0, 3, cur, false)
		if err != nil {
			t.Fatalf("GetMessages(cursor): %v", err)
		}
		for _, m := range p.Messages {
			if seen[m.ID] {
				t.Fatalf("message %d repeated across pages", m.ID)
			}
			seen[m.ID] = true
			total++
		}
		cur = p.NextCursor
	}
	if total != 7 {
		t.Fatalf("cursor walk saw %d messages, want 7", total)
	}

	// Bad cursors are rejected, not silently ignored.
	if _, err := s.GetMessages(ctx, bob.ID, conv.ID, 0, 3, "garbage", false); err == nil {
		t.Fatal("expected error for malformed cursor")
	}

	// markRead clears bob's unread tally.
	if _, err := s.GetMessages(ctx, bob.ID, conv.ID, 0, 10, "", true); err != nil {
		t.Fatalf("GetMessages(markRead): %v", err)
	}
	unread, err := repo.UnreadMessageCount(ctx, db, conv.ID, bob.ID)
	if err != nil {
		t.Fatalf("UnreadMessageCount: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected 0 unread after markRead, got %d", unread)
	}

	// Outsiders are rejected, never handed an empty page.
	eve := seedUser(t, db, "eve")
	if _, err := s.GetMessages(ctx, eve.ID, conv.ID, 0, 10, "", false); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("outsider read: %v", err)
	}
}

func TestSendMessage_InvalidatesCachedPages(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := newSvcDB(t)
	s := NewMessageService(db, cache.New(rdb), push.NewRegistry())
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	conv, _ := s.StartConversation(ctx, alice.ID, bob.ID)
	if _, err := s.SendMessage(ctx, alice.ID, conv.ID, "first", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// Populate the cache, then prove the next read is served from it.
	page, err := s.GetMessages(ctx, bob.ID, conv.ID, 0, 10, "", false)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(page.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(page.Messages))
	}
	db.Exec("UPDATE direct_messages SET content = 'rewritten'")
	page, err = s.GetMessages(ctx, bob.ID, conv.ID, 0, 10, "", false)
	if err != nil {
		t.Fatalf("GetMessages (cached): %v", err)
	}
	if page.Messages[0].Content != "first" {
		t.Fatal("second read should have come from the cache")
	}

	// A write sweeps the conversation's page prefix, so the next read
	// reflects both the rewrite and the new message.
	if _, err := s.SendMessage(ctx, alice.ID, conv.ID, "second", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	page, err = s.GetMessages(ctx, bob.ID, conv.ID, 0, 10, "", false)
	if err != nil {
		t.Fatalf("GetMessages (fresh): %v", err)
	}
	if len(page.Messages) != 2 || page.Messages[0].Content != "rewritten" {
		t.Fatalf("read after write must be fresh: %+v", page.Messages)
	}

	// The conversation summaries were invalidated for both participants too.
	sums, err := s.ListConversations(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(sums) != 1 || sums[0].LastMessage == nil || sums[0].LastMessage.Content != "second" {
		t.Fatalf("summary is stale: %+v", sums)
	}
}

func TestListConversations_SummariesWithUnread(t *testing.T) {
	s, db := newMessageService(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	conv, _ := s.StartConversation(ctx, alice.ID, bob.ID)
	if _, err := s.SendMessage(ctx, alice.ID, conv.ID, "first", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, err := s.SendMessage(ctx, alice.ID, conv.ID, "second", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	sums, err := s.ListConversations(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(sums))
	}
	sum := sums[0]
	if sum.Other.Username != "alice" {
		t.Fatalf("other = %q", sum.Other.Username)
	}
	if sum.LastMessage == nil || sum.LastMessage.Content != "second" {
		t.Fatalf("last message = %+v", sum.LastMessage)
	}
	if sum.UnreadCount != 2 {
		t.Fatalf("unread = %d, want 2", sum.UnreadCount)
	}
}

func TestDeleteMessage_AuthzAndReactions(t *testing.T) {
	s, db := newMessageService(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	eve := seedUser(t, db, "eve")

	conv, _ := s.StartConversation(ctx, alice.ID, bob.ID)
	msg, _ := s.SendMessage(ctx, alice.ID, conv.ID, "hello", nil)

	if err := s.AddReaction(ctx, bob.ID, msg.ID, "🔥"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	// Outsiders cannot react.
	if err := s.AddReaction(ctx, eve.ID, msg.ID, "🔥"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("outsider reaction: %v", err)
	}

	page, err := s.GetMessages(ctx, alice.ID, conv.ID, 0, 10, "", false)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(page.Messages) != 1 || len(page.Messages[0].Reactions) != 1 || page.Messages[0].Reactions[0].Count != 1 {
		t.Fatalf("reaction summary missing: %+v", page.Messages)
	}

	if err := s.DeleteMessage(ctx, bob.ID, msg.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("receiver delete: %v", err)
	}
	if err := s.DeleteMessage(ctx, alice.ID, msg.ID); err != nil {
		t.Fatalf("sender delete: %v", err)
	}
	if err := s.DeleteMessage(ctx, alice.ID, msg.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("repeat delete: %v", err)
	}
}

func TestDeleteConversation_ParticipantOnly(t *testing.T) {
	s, db := newMessageService(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	eve := seedUser(t, db, "eve")

	conv, _ := s.StartConversation(ctx, alice.ID, bob.ID)
	if _, err := s.SendMessage(ctx, alice.ID, conv.ID, "x", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := s.DeleteConversation(ctx, eve.ID, conv.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("outsider delete: %v", err)
	}
	if err := s.DeleteConversation(ctx, bob.ID, conv.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if _, err := repo.GetConversation(ctx, db, conv.ID); err == nil {
		t.Fatal("conversation should be gone")
	}
}

func cursorFor(m MessageView) string {
	return utils.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}.Encode()
}

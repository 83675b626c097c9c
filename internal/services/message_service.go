// Package services – MessageService
//
// This file implements direct messaging: opening conversations, paginated
// history reads through the cache, sending with block enforcement and live
// push, read marking, reactions, and deletion. Cache invalidation is
// prefix-based so every cached page of a conversation is swept when its
// contents change.
//
// Observability: the main entry points are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/iwonder/iwonder-backend/internal/cache"
	"github.com/iwonder/iwonder-backend/internal/domain"
	"github.com/iwonder/iwonder-backend/internal/push"
	"github.com/iwonder/iwonder-backend/internal/repo"
	"github.com/iwonder/iwonder-backend/internal/utils"
)

// MessageView is a message enriched with its per-emoji reaction summary.
type MessageView struct {
	domain.DirectMessage
	Reactions []repo.ReactionCount `json:"reactions"`
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	Conversation domain.Conversation   `json:"conversation"`
	Other        push.Sender           `json:"other_user"`
	LastMessage  *domain.DirectMessage `json:"last_message"`
	UnreadCount  int64                 `json:"unread_count"`
}

// MessagesPage is a page of conversation history plus the cursor that
// resumes paging further into the past. NextCursor is empty when the page
// reached the beginning of the conversation.
type MessagesPage struct {
	Messages   []MessageView `json:"messages"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// MessageService coordinates conversations, messages, and reactions.
type MessageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cache is the read-through cache; it may be disabled.
	Cache *cache.Cache
	// Registry delivers live pushes; it may be nil in tests.
	Registry *push.Registry

	// ConversationsTTL bounds staleness of cached conversation lists.
	ConversationsTTL time.Duration
	// MessagesTTL bounds staleness of cached message pages.
	MessagesTTL time.Duration
	// MaxContentRunes caps message length by rune count.
	MaxContentRunes int
}

// NewMessageService constructs a MessageService with default limits.
func NewMessageService(db *gorm.DB, c *cache.Cache, reg *push.Registry) *MessageService {
	return &MessageService{
		DB:               db,
		Cache:            c,
		Registry:         reg,
		ConversationsTTL: 10 * time.Second,
		MessagesTTL:      10 * time.Second,
		MaxContentRunes:  5000,
	}
}

// participant fetches the conversation and verifies userID belongs to it.
// A missing row is a not-found; a caller outside the pair is an
// authorization failure.
func (s *MessageService) participant(ctx context.Context, conversationID, userID int64) (*domain.Conversation, error) {
	conv, err := repo.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	if _, ok := conv.Other(userID); !ok {
		return nil, ErrNotAuthorized
	}
	return conv, nil
}

// StartConversation returns the conversation between the two users, creating
// it if absent. The pair is canonical, so both call orders reuse one row.
func (s *MessageService) StartConversation(ctx context.Context, userID, otherID int64) (*domain.Conversation, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "StartConversation",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("other.id", otherID),
		),
	)
	defer span.End()

	if userID == otherID {
		return nil, ErrSelfConversation
	}
	if _, err := repo.GetUser(ctx, s.DB, otherID); err != nil {
		return nil, ErrUserNotFound
	}
	blocked, err := repo.IsBlockedBetween(ctx, s.DB, userID, otherID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	conv, err := repo.GetOrCreateConversation(ctx, s.DB, userID, otherID)
	if err != nil {
		return nil, err
	}
	s.Cache.Delete(ctx, cache.ConversationsKey(userID), cache.ConversationsKey(otherID))
	return conv, nil
}

// ListConversations returns the user's conversations newest first, each with
// the other participant, the latest message, and an unread count.
func (s *MessageService) ListConversations(ctx context.Context, userID int64) ([]ConversationSummary, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListConversations",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	key := cache.ConversationsKey(userID)
	var cached []ConversationSummary
	if s.Cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	convs, err := repo.ListConversationsForUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		otherID, _ := conv.Other(userID)
		other, err := repo.GetUser(ctx, s.DB, otherID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue // participant account deleted
			}
			return nil, err
		}
		last, err := repo.LastMessage(ctx, s.DB, conv.ID)
		if err != nil {
			return nil, err
		}
		unread, err := repo.UnreadMessageCount(ctx, s.DB, conv.ID, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, ConversationSummary{
			Conversation: conv,
			Other:        push.Sender{ID: other.ID, Username: other.Username, AvatarURL: other.AvatarURL},
			LastMessage:  last,
			UnreadCount:  unread,
		})
	}
	s.Cache.SetJSON(ctx, key, out, s.ConversationsTTL)
	return out, nil
}

// GetMessages returns one page of conversation history, oldest first within
// the page. With an empty cursor the page is offset-addressed; otherwise the
// cursor resumes strictly before the encoded position. markRead additionally
// marks the caller's inbound messages in the conversation as read.
func (s *MessageService) GetMessages(ctx context.Context, userID, conversationID int64, skip, limit int, cursorStr string, markRead bool) (*MessagesPage, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "GetMessages",
		trace.WithAttributes(
			attribute.Int64("conversation.id", conversationID),
			attribute.Int64("user.id", userID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if _, err := s.participant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}

	key := cache.MessagesKey(conversationID, skip, limit, cursorStr, markRead)
	var cached MessagesPage
	if s.Cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	var rows []domain.DirectMessage
	var err error
	if cursorStr == "" {
		rows, err = repo.ListMessages(ctx, s.DB, conversationID, skip, limit)
	} else {
		var cur utils.Cursor
		cur, err = utils.ParseCursor(cursorStr)
		if err != nil {
			return nil, err
		}
		rows, err = repo.ListMessagesBefore(ctx, s.DB, conversationID, cur.CreatedAt, cur.ID, limit)
		if err == nil {
			// The query walks backwards; present the page chronologically.
			for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
	}
	if err != nil {
		return nil, err
	}

	page := &MessagesPage{Messages: make([]MessageView, 0, len(rows))}
	for _, m := range rows {
		reactions, err := repo.ReactionSummary(ctx, s.DB, m.ID)
		if err != nil {
			return nil, err
		}
		page.Messages = append(page.Messages, MessageView{DirectMessage: m, Reactions: reactions})
	}
	if cursorStr != "" && len(rows) == limit {
		oldest := rows[0]
		page.NextCursor = utils.Cursor{CreatedAt: oldest.CreatedAt, ID: oldest.ID}.Encode()
	}

	if markRead {
		if err := repo.MarkConversationRead(ctx, s.DB, conversationID, userID); err != nil {
			return nil, err
		}
		s.Cache.Delete(ctx, cache.ConversationsKey(userID))
	}

	s.Cache.SetJSON(ctx, key, page, s.MessagesTTL)
	return page, nil
}

// SendMessage validates and persists a message, invalidates the affected
// cache entries, and pushes the event to both participants. Blocks are
// re-checked on every send; a block created after the conversation opened
// still stops delivery.
func (s *MessageService) SendMessage(ctx context.Context, senderID, conversationID int64, content string, replyToMessageID *int64) (*domain.DirectMessage, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "SendMessage",
		trace.WithAttributes(
			attribute.Int64("conversation.id", conversationID),
			attribute.Int64("sender.id", senderID),
		),
	)
	defer span.End()

	conv, err := s.participant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	receiverID, _ := conv.Other(senderID)

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}

	blocked, err := repo.IsBlockedBetween(ctx, s.DB, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	if replyToMessageID != nil {
		parent, err := repo.GetMessage(ctx, s.DB, *replyToMessageID)
		if err != nil || parent.ConversationID != conversationID {
			return nil, ErrMessageNotFound
		}
	}

	msg, err := repo.CreateMessage(ctx, s.DB, conversationID, senderID, receiverID, content, replyToMessageID)
	if err != nil {
		return nil, err
	}

	s.Cache.DeletePrefix(ctx, cache.MessagesPrefix(conversationID))
	s.Cache.Delete(ctx, cache.ConversationsKey(senderID), cache.ConversationsKey(receiverID))

	if s.Registry != nil {
		sender, err := repo.GetUser(ctx, s.DB, senderID)
		if err == nil {
			event := push.NewDirectMessageEvent(*msg, *sender)
			s.Registry.Push(receiverID, event)
			s.Registry.Push(senderID, event)
		}
	}
	return msg, nil
}

// MarkRead marks the caller's inbound messages in the conversation as read.
func (s *MessageService) MarkRead(ctx context.Context, userID, conversationID int64) error {
	if _, err := s.participant(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := repo.MarkConversationRead(ctx, s.DB, conversationID, userID); err != nil {
		return err
	}
	s.Cache.DeletePrefix(ctx, cache.MessagesPrefix(conversationID))
	s.Cache.Delete(ctx, cache.ConversationsKey(userID))
	return nil
}

// DeleteMessage removes one of the caller's own messages.
func (s *MessageService) DeleteMessage(ctx context.Context, userID, messageID int64) error {
	msg, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		return ErrMessageNotFound
	}
	ok, err := repo.DeleteMessage(ctx, s.DB, messageID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	otherID := msg.ReceiverID
	s.Cache.DeletePrefix(ctx, cache.MessagesPrefix(msg.ConversationID))
	s.Cache.Delete(ctx, cache.ConversationsKey(userID), cache.ConversationsKey(otherID))
	return nil
}

// DeleteConversation removes a conversation the caller participates in,
// together with its messages and reactions.
func (s *MessageService) DeleteConversation(ctx context.Context, userID, conversationID int64) error {
	conv, err := s.participant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if err := repo.DeleteConversation(ctx, s.DB, conversationID); err != nil {
		return err
	}
	otherID, _ := conv.Other(userID)
	s.Cache.DeletePrefix(ctx, cache.MessagesPrefix(conversationID))
	s.Cache.Delete(ctx, cache.ConversationsKey(userID), cache.ConversationsKey(otherID))
	return nil
}

// AddReaction records the caller's emoji on a message in a conversation they
// participate in. Repeating the same reaction is a no-op.
func (s *MessageService) AddReaction(ctx context.Context, userID, messageID int64, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return ErrEmptyContent
	}
	msg, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		return ErrMessageNotFound
	}
	if _, err := s.participant(ctx, msg.ConversationID, userID); err != nil {
		return err
	}
	if err := repo.AddReaction(ctx, s.DB, messageID, userID, emoji); err != nil {
		return err
	}
	s.Cache.DeletePrefix(ctx, cache.MessagesPrefix(msg.ConversationID))
	return nil
}

// RemoveReaction removes the caller's emoji from a message. Removing an
// absent reaction is a no-op.
func (s *MessageService) RemoveReaction(ctx context.Context, userID, messageID int64, emoji string) error {
	msg, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		return ErrMessageNotFound
	}
	if _, err := s.participant(ctx, msg.ConversationID, userID); err != nil {
		return err
	}
	if err := repo.RemoveReaction(ctx, s.DB, messageID, userID, emoji); err != nil {
		return err
	}
	s.Cache.DeletePrefix(ctx, cache.MessagesPrefix(msg.ConversationID))
	return nil
}

// Package repo – direct-message and reaction repository.
//
// Message retrieval supports two pagination modes: offset (skip/limit, used
// for first-page loads) and cursor-based backward paging on the composite
// (created_at, id) ordering key. The cursor predicate is strict, so rows
// sharing a timestamp are disambiguated by id and never skipped or repeated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/iwonder/iwonder-backend/internal/domain"
)

// ReactionCount is one row of a per-emoji reaction summary.
type ReactionCount struct {
	Emoji string `json:"emoji"`
	Count int64  `json:"count"`
}

// CreateMessage inserts a new message row.
func CreateMessage(ctx context.Context, db *gorm.DB, conversationID, senderID, receiverID int64, content string, replyToMessageID *int64) (*domain.DirectMessage, error) {
	m := &domain.DirectMessage{
		ConversationID:   conversationID,
		SenderID:         senderID,
		ReceiverID:       receiverID,
		ReplyToMessageID: replyToMessageID,
		Content:          content,
		CreatedAt:        time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id int64) (*domain.DirectMessage, error) {
	var m domain.DirectMessage
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns a conversation page ordered chronologically
// (created_at ASC, id ASC). Offset paging drifts under concurrent inserts;
// it is kept as the convenience path for first-page loads.
func ListMessages(ctx context.Context, db *gorm.DB, conversationID int64, skip, limit int) ([]domain.DirectMessage, error) {
	var out []domain.DirectMessage
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(skip).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListMessagesBefore returns up to limit messages strictly older than the
// (beforeCreatedAt, beforeID) cursor position, newest first. Callers reverse
// the slice to present it chronologically.
func ListMessagesBefore(ctx context.Context, db *gorm.DB, conversationID int64, beforeCreatedAt time.Time, beforeID int64, limit int) ([]domain.DirectMessage, error) {
	var out []domain.DirectMessage
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Where("created_at < ? OR (created_at = ? AND id < ?)", beforeCreatedAt, beforeCreatedAt, beforeID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// LastMessage returns the newest message of a conversation, or nil when the
// conversation is empty.
func LastMessage(ctx context.Context, db *gorm.DB, conversationID int64) (*domain.DirectMessage, error) {
	var m domain.DirectMessage
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// UnreadMessageCount counts unread messages addressed to userID within the
// conversation.
func UnreadMessageCount(ctx context.Context, db *gorm.DB, conversationID, userID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.DirectMessage{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Count(&n).Error
	return n, err
}

// MarkConversationRead flips the read flag on every unread message addressed
// to userID within the conversation.
func MarkConversationRead(ctx context.Context, db *gorm.DB, conversationID, userID int64) error {
	return db.WithContext(ctx).
		Model(&domain.DirectMessage{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Update("is_read", true).Error
}

// DeleteMessage removes a message and its reactions. Only the sender may
// delete; the affected row count reports whether anything matched.
func DeleteMessage(ctx context.Context, db *gorm.DB, messageID, senderID int64) (bool, error) {
	var deleted bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND sender_id = ?", messageID, senderID).Delete(&domain.DirectMessage{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("message_id = ?", messageID).Delete(&domain.MessageReaction{}).Error
	})
	return deleted, err
}

// AddReaction records the (message, user, emoji) triple. Adding a triple that
// already exists is a no-op, making the toggle idempotent.
func AddReaction(ctx context.Context, db *gorm.DB, messageID, userID int64, emoji string) error {
	var existing domain.MessageReaction
	err := db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	r := domain.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji, CreatedAt: time.Now().UTC()}
	if cerr := db.WithContext(ctx).Create(&r).Error; cerr != nil {
		// Concurrent add of the same triple: the unique index already holds it.
		var again domain.MessageReaction
		if rerr := db.WithContext(ctx).
			Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
			First(&again).Error; rerr == nil {
			return nil
		}
		return cerr
	}
	return nil
}

// RemoveReaction deletes the triple; removing a non-existent one is a no-op.
func RemoveReaction(ctx context.Context, db *gorm.DB, messageID, userID int64, emoji string) error {
	return db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&domain.MessageReaction{}).Error
}

// ReactionSummary returns per-emoji counts for a message. No per-user
// breakdown is exposed.
func ReactionSummary(ctx context.Context, db *gorm.DB, messageID int64) ([]ReactionCount, error) {
	out := []ReactionCount{}
	err := db.WithContext(ctx).
		Model(&domain.MessageReaction{}).
		Select("emoji, COUNT(id) AS count").
		Where("message_id = ?", messageID).
		Group("emoji").
		Order("emoji ASC").
		Scan(&out).Error
	return out, err
}

// Package repo – conversation repository.
//
// Conversations are identified by a canonicalized participant pair: the
// numerically smaller user id is always stored first, so lookup and
// get-or-create behave identically regardless of which party initiates.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/iwonder/iwonder-backend/internal/domain"
)

// CanonicalPair orders two user ids so the smaller one comes first.
func CanonicalPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// GetConversation fetches a conversation by ID.
func GetConversation(ctx context.Context, db *gorm.DB, id int64) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateConversation returns the unique conversation for the unordered
// pair (userA, userB), creating it when absent. Two participants starting the
// same conversation concurrently race on the unique pair index; the loser of
// that race re-reads the winner's row instead of failing the caller.
func GetOrCreateConversation(ctx context.Context, db *gorm.DB, userA, userB int64) (*domain.Conversation, error) {
	u1, u2 := CanonicalPair(userA, userB)

	var c domain.Conversation
	err := db.WithContext(ctx).Where("user1_id = ? AND user2_id = ?", u1, u2).First(&c).Error
	if err == nil {
		return &c, nil
	}

	c = domain.Conversation{User1ID: u1, User2ID: u2, CreatedAt: time.Now().UTC()}
	if cerr := db.WithContext(ctx).Create(&c).Error; cerr != nil {
		// Unique-constraint race: the other participant created the row first.
		var existing domain.Conversation
		if rerr := db.WithContext(ctx).Where("user1_id = ? AND user2_id = ?", u1, u2).First(&existing).Error; rerr == nil {
			return &existing, nil
		}
		return nil, cerr
	}
	return &c, nil
}

// ListConversationsForUser returns the user's conversations, newest first.
func ListConversationsForUser(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// DeleteConversation removes a conversation together with its messages and
// their reactions in one transaction.
func DeleteConversation(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM message_reactions WHERE message_id IN (SELECT id FROM direct_messages WHERE conversation_id = ?)", id,
		).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.DirectMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Conversation{}).Error
	})
}

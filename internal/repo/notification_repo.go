package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/iwonder/iwonder-backend/internal/domain"
)

// CreateNotification inserts a notification row for userID.
func CreateNotification(ctx context.Context, db *gorm.DB, userID int64, typ, content string, relatedUserID, relatedItemID *int64) (*domain.Notification, error) {
	n := &domain.Notification{
		UserID:        userID,
		Type:          typ,
		Content:       content,
		RelatedUserID: relatedUserID,
		RelatedItemID: relatedItemID,
		CreatedAt:     time.Now().UTC(),
	}
	return n, db.WithContext(ctx).Create(n).Error
}

// ListNotifications returns userID's notifications newest first.
func ListNotifications(ctx context.Context, db *gorm.DB, userID int64, skip, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(skip).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UnreadNotificationCount counts userID's unread notifications.
func UnreadNotificationCount(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// MarkNotificationRead marks a single notification as read. The row must
// belong to userID; the bool reports whether a row matched.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, notificationID, userID int64) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	return res.RowsAffected > 0, res.Error
}

// MarkAllNotificationsRead marks every unread notification of userID as read
// and returns how many rows changed.
func MarkAllNotificationsRead(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// MarkNotificationsRead marks the given notification IDs as read, scoped to
// userID so callers cannot touch other users' rows.
func MarkNotificationsRead(ctx context.Context, db *gorm.DB, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

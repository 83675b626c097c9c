package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/iwonder/iwonder-backend/internal/domain"
)

// GetUser fetches a user by ID.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a user by exact username.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user row. Username and email uniqueness is
// enforced by the schema; callers translate the constraint error.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(u).Error
}

// UpdateUser persists profile fields of an existing user.
func UpdateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).Save(u).Error
}

// SearchUsers returns users whose username contains q, case-insensitive,
// ordered by username.
func SearchUsers(ctx context.Context, db *gorm.DB, q string, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Where("username LIKE ?", "%"+q+"%").
		Order("username ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Follow records followerID following followeeID. Re-following is a no-op.
func Follow(ctx context.Context, db *gorm.DB, followerID, followeeID int64) error {
	var existing domain.Follow
	err := db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	f := domain.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now().UTC()}
	return db.WithContext(ctx).Create(&f).Error
}

// Unfollow removes the follow edge; absent edges are a no-op.
func Unfollow(ctx context.Context, db *gorm.DB, followerID, followeeID int64) error {
	return db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&domain.Follow{}).Error
}

// IsFollowing reports whether followerID follows followeeID.
func IsFollowing(ctx context.Context, db *gorm.DB, followerID, followeeID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&n).Error
	return n > 0, err
}

// FollowedIDs returns the IDs of everyone userID follows.
func FollowedIDs(ctx context.Context, db *gorm.DB, userID int64) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("followee_id", &ids).Error
	return ids, err
}

// Block records blockerID blocking blockedID. Re-blocking is a no-op.
func Block(ctx context.Context, db *gorm.DB, blockerID, blockedID int64) error {
	var existing domain.UserBlock
	err := db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	b := domain.UserBlock{BlockerID: blockerID, BlockedID: blockedID, CreatedAt: time.Now().UTC()}
	return db.WithContext(ctx).Create(&b).Error
}

// Unblock removes the block edge; absent edges are a no-op.
func Unblock(ctx context.Context, db *gorm.DB, blockerID, blockedID int64) error {
	return db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&domain.UserBlock{}).Error
}

// IsBlocking reports whether blockerID blocks blockedID.
func IsBlocking(ctx context.Context, db *gorm.DB, blockerID, blockedID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.UserBlock{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&n).Error
	return n > 0, err
}

// IsBlockedBetween reports whether a block exists in either direction
// between the two users. Messaging is refused symmetrically.
func IsBlockedBetween(ctx context.Context, db *gorm.DB, a, b int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&n).Error
	return n > 0, err
}

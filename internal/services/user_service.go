// Package services – UserService
//
// Accounts, authentication, profiles, and the follow/block graph. Passwords
// are stored as bcrypt hashes; logins yield signed bearer tokens.
package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/iwonder/iwonder-backend/internal/auth"
	"github.com/iwonder/iwonder-backend/internal/cache"
	"github.com/iwonder/iwonder-backend/internal/domain"
	"github.com/iwonder/iwonder-backend/internal/repo"
)

// ProfileUpdate carries the mutable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Bio                 *string
	AvatarURL           *string
	OnlyFollowersCanAsk *bool
}

// UserService manages accounts and user relationships.
type UserService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cache is the read-through cache; it may be disabled.
	Cache *cache.Cache
	// Notifications creates follow notifications; it may be nil in tests.
	Notifications *NotificationService

	// JWTSecret signs issued tokens.
	JWTSecret string
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// BcryptCost tunes password hashing; 0 selects the library default.
	BcryptCost int
	// MaxBioRunes caps profile bios by rune length.
	MaxBioRunes int
}

// NewUserService constructs a UserService with default limits.
func NewUserService(db *gorm.DB, c *cache.Cache, notifs *NotificationService, jwtSecret string) *UserService {
	return &UserService{
		DB:            db,
		Cache:         c,
		Notifications: notifs,
		JWTSecret:     jwtSecret,
		TokenTTL:      auth.DefaultTTL,
		BcryptCost:    bcrypt.DefaultCost,
		MaxBioRunes:   500,
	}
}

// Register creates an account and returns the new user.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrEmptyContent
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	// The schema enforces username and email uniqueness; an insert failure
	// surfaces as a taken identity rather than a raw constraint error.
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, ErrUsernameTaken
	}
	return u, nil
}

// Authenticate verifies credentials and returns a signed bearer token.
// Unknown users and wrong passwords share one error so the response does not
// reveal which part failed.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (string, *domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Authenticate")
	defer span.End()

	u, err := repo.GetUserByUsername(ctx, s.DB, strings.TrimSpace(username))
	if err != nil {
		return "", nil, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrBadCredentials
	}
	token, err := auth.GenerateToken(s.JWTSecret, u.ID, s.TokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Update applies a profile update to the caller's own account.
func (s *UserService) Update(ctx context.Context, userID int64, upd ProfileUpdate) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if s.MaxBioRunes > 0 && utf8.RuneCountInString(bio) > s.MaxBioRunes {
			return nil, ErrContentTooLong
		}
		u.Bio = bio
	}
	if upd.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*upd.AvatarURL)
	}
	if upd.OnlyFollowersCanAsk != nil {
		u.OnlyFollowersCanAsk = *upd.OnlyFollowersCanAsk
	}
	if err := repo.UpdateUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Search returns users whose username contains q.
func (s *UserService) Search(ctx context.Context, q string, limit int) ([]domain.User, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []domain.User{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return repo.SearchUsers(ctx, s.DB, q, limit)
}

// Follow makes the caller follow targetID and notifies the target. Blocks
// in either direction forbid following.
func (s *UserService) Follow(ctx context.Context, userID, targetID int64) error {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Follow",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("target.id", targetID),
		),
	)
	defer span.End()

	if userID == targetID {
		return ErrSelfFollow
	}
	target, err := repo.GetUser(ctx, s.DB, targetID)
	if err != nil {
		return ErrUserNotFound
	}
	blocked, err := repo.IsBlockedBetween(ctx, s.DB, userID, targetID)
	if err != nil {
		return err
	}
	if blocked {
		return ErrBlocked
	}

	already, err := repo.IsFollowing(ctx, s.DB, userID, targetID)
	if err != nil {
		return err
	}
	if err := repo.Follow(ctx, s.DB, userID, targetID); err != nil {
		return err
	}
	s.Cache.DeletePrefix(ctx, cache.FeedPrefix(userID))
	if !already && s.Notifications != nil {
		_, _ = s.Notifications.Create(ctx, target.ID, domain.NotificationTypeFollow,
			"You have a new follower", &userID, nil)
	}
	return nil
}

// Unfollow removes the caller's follow edge; absent edges are a no-op.
func (s *UserService) Unfollow(ctx context.Context, userID, targetID int64) error {
	if err := repo.Unfollow(ctx, s.DB, userID, targetID); err != nil {
		return err
	}
	s.Cache.DeletePrefix(ctx, cache.FeedPrefix(userID))
	return nil
}

// Block makes the caller block targetID and severs any follow edges between
// the two users in both directions.
func (s *UserService) Block(ctx context.Context, userID, targetID int64) error {
	if _, err := repo.GetUser(ctx, s.DB, targetID); err != nil {
		return ErrUserNotFound
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.Block(ctx, tx, userID, targetID); err != nil {
			return err
		}
		if err := repo.Unfollow(ctx, tx, userID, targetID); err != nil {
			return err
		}
		return repo.Unfollow(ctx, tx, targetID, userID)
	})
	if err != nil {
		return err
	}
	s.Cache.DeletePrefix(ctx, cache.FeedPrefix(userID))
	s.Cache.DeletePrefix(ctx, cache.FeedPrefix(targetID))
	return nil
}

// Unblock removes the caller's block; absent blocks are a no-op. Severed
// follow edges are not restored.
func (s *UserService) Unblock(ctx context.Context, userID, targetID int64) error {
	return repo.Unblock(ctx, s.DB, userID, targetID)
}

// IsFollowing reports whether userID follows targetID.
func (s *UserService) IsFollowing(ctx context.Context, userID, targetID int64) (bool, error) {
	return repo.IsFollowing(ctx, s.DB, userID, targetID)
}

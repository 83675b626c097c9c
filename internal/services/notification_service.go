// Package services – NotificationService
//
// Notifications are created by other services as a side effect of social
// actions, listed newest first through the cache, and optionally collapsed
// into per-(type, content) groups for compact display. Creation also
// pushes a live event to the recipient when they are connected.
package services

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/iwonder/iwonder-backend/internal/cache"
	"github.com/iwonder/iwonder-backend/internal/domain"
	"github.com/iwonder/iwonder-backend/internal/push"
	"github.com/iwonder/iwonder-backend/internal/repo"
)

// NotificationGroup collapses notifications sharing a type and content.
// Latest carries the newest member in full; the rest contribute only to
// Count and the unread tally. IsRead is true when no member is unread.
type NotificationGroup struct {
	Type        string              `json:"type"`
	Content     string              `json:"content"`
	Count       int                 `json:"count"`
	UnreadCount int                 `json:"unread_count"`
	IsRead      bool                `json:"is_read"`
	Latest      domain.Notification `json:"latest"`
	IDs         []int64             `json:"ids"`
}

// NotificationService creates, lists, groups, and marks notifications.
type NotificationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cache is the read-through cache; it may be disabled.
	Cache *cache.Cache
	// Registry delivers live pushes; it may be nil in tests.
	Registry *push.Registry

	// ListTTL bounds staleness of cached notification pages.
	ListTTL time.Duration
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, c *cache.Cache, reg *push.Registry) *NotificationService {
	return &NotificationService{DB: db, Cache: c, Registry: reg, ListTTL: 10 * time.Second}
}

// Create persists a notification for userID, invalidates their cached pages,
// and pushes the event to their live channels.
func (s *NotificationService) Create(ctx context.Context, userID int64, typ, content string, relatedUserID, relatedItemID *int64) (*domain.Notification, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("notification.type", typ),
		),
	)
	defer span.End()

	n, err := repo.CreateNotification(ctx, s.DB, userID, typ, content, relatedUserID, relatedItemID)
	if err != nil {
		return nil, err
	}
	s.Cache.DeletePrefix(ctx, cache.NotificationsPrefix(userID))
	if s.Registry != nil {
		s.Registry.Push(userID, push.NewNotificationEvent(*n))
	}
	return n, nil
}

// List returns one page of the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID int64, skip, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	key := cache.NotificationsKey(userID, skip, limit)
	var cached []domain.Notification
	if s.Cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	out, err := repo.ListNotifications(ctx, s.DB, userID, skip, limit)
	if err != nil {
		return nil, err
	}
	s.Cache.SetJSON(ctx, key, out, s.ListTTL)
	return out, nil
}

// Grouped returns the user's notifications collapsed into groups, newest
// group first.
func (s *NotificationService) Grouped(ctx context.Context, userID int64, skip, limit int) ([]NotificationGroup, error) {
	rows, err := s.List(ctx, userID, skip, limit)
	if err != nil {
		return nil, err
	}
	return GroupNotifications(rows), nil
}

// UnreadCount reports the user's unread notification total.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return repo.UnreadNotificationCount(ctx, s.DB, userID)
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	ok, err := repo.MarkNotificationRead(ctx, s.DB, notificationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	s.Cache.DeletePrefix(ctx, cache.NotificationsPrefix(userID))
	return nil
}

// MarkAllRead marks every unread notification of the user as read and
// returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := repo.MarkAllNotificationsRead(ctx, s.DB, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Cache.DeletePrefix(ctx, cache.NotificationsPrefix(userID))
	}
	return n, nil
}

// MarkManyRead marks the given notification IDs as read, scoped to the user.
func (s *NotificationService) MarkManyRead(ctx context.Context, userID int64, ids []int64) (int64, error) {
	n, err := repo.MarkNotificationsRead(ctx, s.DB, userID, ids)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Cache.DeletePrefix(ctx, cache.NotificationsPrefix(userID))
	}
	return n, nil
}

// groupKey identifies one collapse bucket.
func groupKey(n domain.Notification) string {
	return n.Type + "\x00" + n.Content
}

// GroupNotifications collapses notifications sharing (type, content) into
// single groups. Groups are ordered by the creation time of their newest
// member, descending; members keep their IDs so callers can mark the whole
// group read. The input order is not assumed.
func GroupNotifications(rows []domain.Notification) []NotificationGroup {
	byKey := map[string]*NotificationGroup{}
	var order []string
	for _, n := range rows {
		k := groupKey(n)
		g, ok := byKey[k]
		if !ok {
			g = &NotificationGroup{
				Type:    n.Type,
				Content: n.Content,
				Latest:  n,
			}
			byKey[k] = g
			order = append(order, k)
		}
		g.Count++
		if !n.IsRead {
			g.UnreadCount++
		}
		g.IDs = append(g.IDs, n.ID)
		if n.CreatedAt.After(g.Latest.CreatedAt) ||
			(n.CreatedAt.Equal(g.Latest.CreatedAt) && n.ID > g.Latest.ID) {
			g.Latest = n
		}
	}

	out := make([]NotificationGroup, 0, len(order))
	for _, k := range order {
		g := *byKey[k]
		g.IsRead = g.UnreadCount == 0
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Latest.CreatedAt.Equal(out[j].Latest.CreatedAt) {
			return out[i].Latest.CreatedAt.After(out[j].Latest.CreatedAt)
		}
		return out[i].Latest.ID > out[j].Latest.ID
	})
	return out
}

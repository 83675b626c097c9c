// Notification HTTP handlers.
//
//   - GET  /notifications               (flat list, paginated)
//   - GET  /notifications/grouped       (collapsed by type and related item)
//   - GET  /notifications/unread-count
//   - POST /notifications/{id}/read
//   - POST /notifications/read-all
//   - POST /notifications/read-many
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MarkManyReadRequest lists notification IDs to mark as read.
type MarkManyReadRequest struct {
	IDs []int64 `json:"ids" binding:"required"`
}

// ListNotifications returns the caller's notifications, newest first.
func (h *Handlers) ListNotifications(c *gin.Context) {
	skip, limit := pageParams(c, 50)
	items, err := h.notifications.List(c.Request.Context(), currentUserID(c), skip, limit)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"notifications": items})
}

// GroupedNotifications returns the caller's notifications collapsed by type
// and related item, newest group first.
func (h *Handlers) GroupedNotifications(c *gin.Context) {
	skip, limit := pageParams(c, 50)
	groups, err := h.notifications.Grouped(c.Request.Context(), currentUserID(c), skip, limit)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"groups": groups})
}

// UnreadNotificationCount returns how many notifications are unread.
func (h *Handlers) UnreadNotificationCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"unread": n})
}

// MarkNotificationRead marks a single owned notification as read.
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// MarkAllNotificationsRead marks every unread notification as read and
// reports how many were updated.
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), currentUserID(c))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"updated": n})
}

// MarkNotificationsRead marks the listed notifications as read. IDs the
// caller does not own are skipped, not errors.
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	var req MarkManyReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	n, err := h.notifications.MarkManyRead(c.Request.Context(), currentUserID(c), req.IDs)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"updated": n})
}

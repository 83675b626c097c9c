// Direct message HTTP handlers.
//
// This file exposes REST endpoints for conversations and messages:
//   - POST   /conversations                    (open or reuse a conversation)
//   - GET    /conversations                    (list with summaries)
//   - GET    /conversations/{id}/messages      (page, offset or cursor mode)
//   - POST   /conversations/{id}/messages      (send, rate limited)
//   - POST   /conversations/{id}/read          (mark read)
//   - DELETE /conversations/{id}               (delete with history)
//   - DELETE /messages/{id}                    (delete own message)
//   - POST   /messages/{id}/reactions          (add emoji reaction)
//   - DELETE /messages/{id}/reactions          (remove emoji reaction)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//
// DTOs
//

// StartConversationRequest opens a conversation with another user.
type StartConversationRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// SendMessageRequest is the JSON payload for sending a direct message.
type SendMessageRequest struct {
	Content          string `json:"content" binding:"required"`
	ReplyToMessageID *int64 `json:"reply_to_message_id"`
}

// ReactionRequest carries the emoji for reaction add/remove.
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=16"`
}

//
// Handlers
//

// StartConversation opens (or returns the existing) conversation between the
// authenticated user and the target user.
func (h *Handlers) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	conv, err := h.messages.StartConversation(c.Request.Context(), currentUserID(c), req.UserID)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, conv)
}

// ListConversations returns the user's conversations, newest activity first.
func (h *Handlers) ListConversations(c *gin.Context) {
	summaries, err := h.messages.ListConversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"conversations": summaries})
}

// GetMessages returns a page of messages. With a cursor query parameter the
// page is keyset-based and the response carries next_cursor; otherwise
// skip/limit offset paging applies. mark_read=true also clears the unread
// counter as a side effect.
func (h *Handlers) GetMessages(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	skip, limit := pageParams(c, 50)
	markRead := c.Query("mark_read") == "true"
	page, err := h.messages.GetMessages(c.Request.Context(), currentUserID(c), id, skip, limit, c.Query("cursor"), markRead)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// SendMessage persists a message and pushes it to connected participants.
func (h *Handlers) SendMessage(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if !h.checkWriteBudget(c, "msg", h.messageLimit, h.messageWindow) {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	msg, err := h.messages.SendMessage(c.Request.Context(), currentUserID(c), id, req.Content, req.ReplyToMessageID)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, msg)
}

// MarkConversationRead clears the unread counter for the caller.
func (h *Handlers) MarkConversationRead(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.messages.MarkRead(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// DeleteConversation removes a conversation and its message history.
func (h *Handlers) DeleteConversation(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.messages.DeleteConversation(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// DeleteMessage removes one of the caller's own messages.
func (h *Handlers) DeleteMessage(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.messages.DeleteMessage(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// AddReaction attaches an emoji reaction to a message. Repeating the same
// reaction is a no-op.
func (h *Handlers) AddReaction(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	emoji := strings.TrimSpace(req.Emoji)
	if emoji == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "emoji is required")
		return
	}
	if err := h.messages.AddReaction(c.Request.Context(), currentUserID(c), id, emoji); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// RemoveReaction detaches the caller's emoji reaction from a message.
func (h *Handlers) RemoveReaction(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.messages.RemoveReaction(c.Request.Context(), currentUserID(c), id, strings.TrimSpace(req.Emoji)); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

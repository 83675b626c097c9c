// Question, answer, like and comment HTTP handlers.
//
//   - POST   /questions                 (ask, rate limited)
//   - GET    /questions/received        (unanswered inbox)
//   - GET    /questions/{id}
//   - DELETE /questions/{id}            (receiver only)
//   - POST   /questions/{id}/answer     (receiver only)
//   - GET    /feed                      (answers from followed users + self)
//   - GET    /users/{id}/answers
//   - POST   /answers/{id}/like
//   - DELETE /answers/{id}/like
//   - POST   /answers/{id}/comments
//   - GET    /answers/{id}/comments
//   - POST   /answers/{id}/report
//   - DELETE /comments/{id}             (author only)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

//
// DTOs
//

// CreateQuestionRequest is the JSON payload for asking a question.
type CreateQuestionRequest struct {
	ReceiverID int64  `json:"receiver_id" binding:"required,gt=0"`
	Content    string `json:"content" binding:"required"`
	Anonymous  bool   `json:"anonymous"`
}

// AnswerRequest is the JSON payload for answering a question.
type AnswerRequest struct {
	Content string `json:"content" binding:"required"`
}

// CommentRequest is the JSON payload for commenting on an answer.
type CommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// ReportRequest is the JSON payload for reporting an answer.
type ReportRequest struct {
	Reason string `json:"reason" binding:"required"`
}

//
// Handlers
//

// CreateQuestion asks a question, optionally anonymously.
func (h *Handlers) CreateQuestion(c *gin.Context) {
	if !h.checkWriteBudget(c, "question", h.questionLimit, h.questionWindow) {
		return
	}
	var req CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	q, err := h.questions.CreateQuestion(c.Request.Context(), currentUserID(c), req.ReceiverID, req.Content, req.Anonymous)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, q)
}

// QuestionsReceived returns the caller's unanswered inbox, newest first.
func (h *Handlers) QuestionsReceived(c *gin.Context) {
	skip, limit := pageParams(c, 20)
	items, err := h.questions.QuestionsReceived(c.Request.Context(), currentUserID(c), skip, limit)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"questions": items})
}

// GetQuestion returns a question visible to its asker or receiver.
func (h *Handlers) GetQuestion(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	q, err := h.questions.GetQuestion(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, q)
}

// DeleteQuestion lets the receiver discard a question.
func (h *Handlers) DeleteQuestion(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.questions.DeleteQuestion(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// AnswerQuestion publishes the receiver's answer to a question.
func (h *Handlers) AnswerQuestion(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.questions.CreateAnswer(c.Request.Context(), currentUserID(c), id, req.Content)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// Feed returns recent answers from followed users plus the caller.
func (h *Handlers) Feed(c *gin.Context) {
	skip, limit := pageParams(c, 20)
	items, err := h.questions.Feed(c.Request.Context(), currentUserID(c), skip, limit)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"answers": items})
}

// UserAnswers returns a user's published answers.
func (h *Handlers) UserAnswers(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	skip, limit := pageParams(c, 20)
	items, err := h.questions.UserAnswers(c.Request.Context(), currentUserID(c), id, skip, limit)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"answers": items})
}

// LikeAnswer records a like. Liking twice is a no-op.
func (h *Handlers) LikeAnswer(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.questions.LikeAnswer(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// UnlikeAnswer removes a like. Removing an absent like succeeds.
func (h *Handlers) UnlikeAnswer(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.questions.UnlikeAnswer(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// CreateComment attaches a comment to an answer.
func (h *Handlers) CreateComment(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	cm, err := h.questions.CreateComment(c.Request.Context(), currentUserID(c), id, req.Content)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, cm)
}

// ListComments returns an answer's comments, oldest first.
func (h *Handlers) ListComments(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	skip, limit := pageParams(c, 50)
	items, err := h.questions.ListComments(c.Request.Context(), id, skip, limit)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"comments": items})
}

// ReportAnswer files a moderation report against an answer.
func (h *Handlers) ReportAnswer(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	r, err := h.questions.ReportAnswer(c.Request.Context(), currentUserID(c), id, req.Reason)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

// DeleteComment removes one of the caller's own comments.
func (h *Handlers) DeleteComment(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.questions.DeleteComment(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

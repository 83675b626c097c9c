// Handler wiring shared by all endpoint files.
//
// Handlers are transport-thin: they parse and validate input, call the
// service layer, and translate outcomes (including sentinel errors) into
// HTTP responses. Business rules live in internal/services.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iwonder/iwonder-backend/internal/cache"
	"github.com/iwonder/iwonder-backend/internal/http/middleware"
	"github.com/iwonder/iwonder-backend/internal/push"
	"github.com/iwonder/iwonder-backend/internal/services"
	"github.com/iwonder/iwonder-backend/internal/utils"
)

// Handlers groups the HTTP endpoints and their dependencies.
type Handlers struct {
	users         *services.UserService
	messages      *services.MessageService
	notifications *services.NotificationService
	questions     *services.QuestionService

	limiter  *cache.Limiter
	registry *push.Registry

	jwtSecret string

	// Per-action write budgets, enforced via the Redis fixed-window limiter.
	messageLimit   int64
	messageWindow  time.Duration
	questionLimit  int64
	questionWindow time.Duration
}

// Options bundles the dependencies for New.
type Options struct {
	Users         *services.UserService
	Messages      *services.MessageService
	Notifications *services.NotificationService
	Questions     *services.QuestionService
	Limiter       *cache.Limiter
	Registry      *push.Registry
	JWTSecret     string

	MessageLimit   int64
	MessageWindow  time.Duration
	QuestionLimit  int64
	QuestionWindow time.Duration
}

// New constructs a Handlers instance. Zero rate-limit values fall back to
// the default budgets (30 messages / 10s, 10 questions / 60s).
func New(opts Options) *Handlers {
	h := &Handlers{
		users:          opts.Users,
		messages:       opts.Messages,
		notifications:  opts.Notifications,
		questions:      opts.Questions,
		limiter:        opts.Limiter,
		registry:       opts.Registry,
		jwtSecret:      opts.JWTSecret,
		messageLimit:   opts.MessageLimit,
		messageWindow:  opts.MessageWindow,
		questionLimit:  opts.QuestionLimit,
		questionWindow: opts.QuestionWindow,
	}
	if h.messageLimit <= 0 {
		h.messageLimit = 30
	}
	if h.messageWindow <= 0 {
		h.messageWindow = 10 * time.Second
	}
	if h.questionLimit <= 0 {
		h.questionLimit = 10
	}
	if h.questionWindow <= 0 {
		h.questionWindow = 60 * time.Second
	}
	return h
}

// currentUserID returns the authenticated user's ID from the Gin context.
func currentUserID(c *gin.Context) int64 {
	return middleware.CurrentUserID(c)
}

// pathID parses the named path parameter as a positive int64. On failure it
// writes a 400 envelope and reports false.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// pageParams reads skip/limit query parameters with defaults.
func pageParams(c *gin.Context, defLimit int) (skip, limit int) {
	skip = utils.AtoiDefault(c.Query("skip"), 0)
	limit = utils.AtoiDefault(c.Query("limit"), defLimit)
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = defLimit
	}
	return skip, limit
}

// mapServiceError translates service sentinel errors into the HTTP envelope.
// Unknown errors become an opaque 500.
func mapServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrAnswerNotFound),
		errors.Is(err, services.ErrCommentNotFound),
		errors.Is(err, services.ErrNotificationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrBlocked):
		fail(c, http.StatusForbidden, ErrCodeBlocked, err.Error())
	case errors.Is(err, services.ErrOnlyFollowers):
		fail(c, http.StatusForbidden, ErrCodeOnlyFollowers, err.Error())
	case errors.Is(err, services.ErrNotAuthorized):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrSelfConversation),
		errors.Is(err, services.ErrSelfFollow),
		errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrContentTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, utils.ErrBadCursor):
		fail(c, http.StatusBadRequest, ErrCodeBadCursor, err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrBadCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}

// checkWriteBudget enforces one of the per-action Redis budgets. It reports
// false after writing the 429 envelope when the budget is exhausted.
func (h *Handlers) checkWriteBudget(c *gin.Context, action string, limit int64, window time.Duration) bool {
	uid := currentUserID(c)
	if h.limiter.IsRateLimited(c.Request.Context(), cache.RateLimitKey(action, uid), limit, window) {
		c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded, slow down")
		return false
	}
	return true
}

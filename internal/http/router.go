// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/iwonder/iwonder-backend/internal/cache"
	"github.com/iwonder/iwonder-backend/internal/config"
	"github.com/iwonder/iwonder-backend/internal/http/handlers"
	"github.com/iwonder/iwonder-backend/internal/http/middleware"
	"github.com/iwonder/iwonder-backend/internal/push"
	"github.com/iwonder/iwonder-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting, CORS
// and security headers, health and metrics endpoints, and then mounts the
// versioned public API under /api/v* plus the /ws push endpoint.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Process-local rate limiter (per user/IP)
//  8. CORS and security headers
//
// rdb may be nil; caching and per-action write budgets then fail open.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, rdb *redis.Client, registry *push.Registry, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Response compression. The websocket upgrade needs the raw writer.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	// 7) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.Limits.RateRPS, cfg.Limits.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← db/cache/push
	store := cache.New(rdb)
	limiter := cache.NewLimiter(rdb)

	notifSvc := services.NewNotificationService(db, store, registry)
	userSvc := services.NewUserService(db, store, notifSvc, cfg.Auth.JWTSecret)
	userSvc.TokenTTL = cfg.Auth.TokenTTL
	msgSvc := services.NewMessageService(db, store, registry)
	msgSvc.ConversationsTTL = cfg.CacheTTL
	msgSvc.MessagesTTL = cfg.CacheTTL
	qSvc := services.NewQuestionService(db, store, notifSvc)
	qSvc.ListTTL = cfg.CacheTTL
	notifSvc.ListTTL = cfg.CacheTTL

	h := handlers.New(handlers.Options{
		Users:          userSvc,
		Messages:       msgSvc,
		Notifications:  notifSvc,
		Questions:      qSvc,
		Limiter:        limiter,
		Registry:       registry,
		JWTSecret:      cfg.Auth.JWTSecret,
		MessageLimit:   cfg.Limits.MessageLimit,
		MessageWindow:  cfg.Limits.MessageWindow,
		QuestionLimit:  cfg.Limits.QuestionLimit,
		QuestionWindow: cfg.Limits.QuestionWindow,
	})

	// Real-time push (token accepted via query for browser clients)
	r.GET("/ws", h.Connect)

	authRequired := middleware.RequireAuth(cfg.Auth.JWTSecret, cfg.Auth.AllowHeaderFallback)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Auth
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)

		priv := api.Group("", authRequired)

		// Users and social graph
		priv.GET("/users/me", h.Me)
		priv.PATCH("/users/me", h.UpdateMe)
		priv.GET("/users/search", h.SearchUsers)
		priv.GET("/users/:id", h.GetUser)
		priv.POST("/users/:id/follow", h.Follow)
		priv.DELETE("/users/:id/follow", h.Unfollow)
		priv.POST("/users/:id/block", h.Block)
		priv.DELETE("/users/:id/block", h.Unblock)
		priv.GET("/users/:id/answers", h.UserAnswers)

		// Conversations and messages
		priv.POST("/conversations", h.StartConversation)
		priv.GET("/conversations", h.ListConversations)
		priv.GET("/conversations/:id/messages", h.GetMessages)
		priv.POST("/conversations/:id/messages", h.SendMessage)
		priv.POST("/conversations/:id/read", h.MarkConversationRead)
		priv.DELETE("/conversations/:id", h.DeleteConversation)
		priv.DELETE("/messages/:id", h.DeleteMessage)
		priv.POST("/messages/:id/reactions", h.AddReaction)
		priv.DELETE("/messages/:id/reactions", h.RemoveReaction)

		// Notifications
		priv.GET("/notifications", h.ListNotifications)
		priv.GET("/notifications/grouped", h.GroupedNotifications)
		priv.GET("/notifications/unread-count", h.UnreadNotificationCount)
		priv.POST("/notifications/:id/read", h.MarkNotificationRead)
		priv.POST("/notifications/read-all", h.MarkAllNotificationsRead)
		priv.POST("/notifications/read-many", h.MarkNotificationsRead)

		// Questions, answers, likes, comments
		priv.POST("/questions", h.CreateQuestion)
		priv.GET("/questions/received", h.QuestionsReceived)
		priv.GET("/questions/:id", h.GetQuestion)
		priv.DELETE("/questions/:id", h.DeleteQuestion)
		priv.POST("/questions/:id/answer", h.AnswerQuestion)
		priv.GET("/feed", h.Feed)
		priv.POST("/answers/:id/like", h.LikeAnswer)
		priv.DELETE("/answers/:id/like", h.UnlikeAnswer)
		priv.POST("/answers/:id/comments", h.CreateComment)
		priv.GET("/answers/:id/comments", h.ListComments)
		priv.POST("/answers/:id/report", h.ReportAnswer)
		priv.DELETE("/comments/:id", h.DeleteComment)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

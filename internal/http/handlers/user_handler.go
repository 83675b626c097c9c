// User and auth HTTP handlers.
//
// This file exposes REST endpoints for accounts and the social graph:
//   - POST   /auth/register          (create account, returns token)
//   - POST   /auth/login             (credentials -> token)
//   - GET    /users/me               (own profile)
//   - PATCH  /users/me               (update profile)
//   - GET    /users/{id}             (public profile)
//   - GET    /users/search           (username search)
//   - POST   /users/{id}/follow      (follow)
//   - DELETE /users/{id}/follow      (unfollow)
//   - POST   /users/{id}/block       (block)
//   - DELETE /users/{id}/block       (unblock)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iwonder/iwonder-backend/internal/domain"
	"github.com/iwonder/iwonder-backend/internal/services"
	"github.com/iwonder/iwonder-backend/internal/utils"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=1,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the JSON payload for exchanging credentials for a token.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries a bearer token plus the authenticated user.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// UpdateProfileRequest is the JSON payload for profile updates. All fields
// are optional; absent fields are left unchanged.
type UpdateProfileRequest struct {
	Bio                 *string `json:"bio"`
	AvatarURL           *string `json:"avatar_url"`
	OnlyFollowersCanAsk *bool   `json:"only_followers_can_ask"`
}

//
// Handlers
//

// Register creates a new account and logs it in.
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	token, _, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, AuthResponse{Token: token, User: u})
}

// Login exchanges credentials for a bearer token.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	token, u, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, AuthResponse{Token: token, User: u})
}

// Me returns the authenticated user's own profile.
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateMe applies a partial profile update to the authenticated user.
func (h *Handlers) UpdateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.users.Update(c.Request.Context(), currentUserID(c), services.ProfileUpdate{
		Bio:                 req.Bio,
		AvatarURL:           req.AvatarURL,
		OnlyFollowersCanAsk: req.OnlyFollowersCanAsk,
	})
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// GetUser returns a user's public profile.
func (h *Handlers) GetUser(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// SearchUsers finds users by username substring.
func (h *Handlers) SearchUsers(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 0)
	users, err := h.users.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"users": users})
}

// Follow makes the authenticated user follow the target user.
func (h *Handlers) Follow(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.users.Follow(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// Unfollow removes a follow edge. Removing a non-existent edge succeeds.
func (h *Handlers) Unfollow(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.users.Unfollow(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// Block blocks the target user and severs follow edges in both directions.
func (h *Handlers) Block(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.users.Block(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// Unblock removes a block. Previously severed follow edges stay severed.
func (h *Handlers) Unblock(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.users.Unblock(c.Request.Context(), currentUserID(c), id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

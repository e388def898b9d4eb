package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/Suja2004/WebRTC/internal/core/domain"
	"github.com/Suja2004/WebRTC/internal/core/services"
	"github.com/Suja2004/WebRTC/pkg/errors"
	"github.com/Suja2004/WebRTC/pkg/validation"

	"github.com/gin-gonic/gin"
)

// TokenHandler issues guest tokens. There is no user storage; a token
// is just a signed display name the websocket endpoint can demand when
// auth is enabled.
type TokenHandler struct {
	authService services.AuthService
	tokenTTL    time.Duration
}

func NewTokenHandler(authService services.AuthService, tokenTTL time.Duration) *TokenHandler {
	return &TokenHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

// SetupRoutes registers token issuance and, behind the given auth
// middleware, refresh.
func (h *TokenHandler) SetupRoutes(router *gin.Engine, requireAuth gin.HandlerFunc) {
	router.POST("/token", h.IssueToken)
	router.POST("/token/refresh", requireAuth, h.RefreshToken)
}

type TokenRequest struct {
	Name  string        `json:"name" binding:"required,max=100"`
	Email string        `json:"email" binding:"omitempty,email,max=254"`
	Room  domain.RoomID `json:"room" binding:"omitempty,max=100"`
}

func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if err := validation.ValidateDisplayName(req.Name); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if req.Email != "" {
		if err := validation.ValidateEmail(req.Email); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}
	if req.Room != "" {
		if err := validation.ValidateRoomID(string(req.Room)); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	token, err := h.authService.GenerateGuestToken(req.Name, req.Email, req.Room)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.tokenTTL / time.Second),
	})
}

// RefreshToken reissues a token carrying the same claims as the one
// that authenticated the request, with a fresh expiry.
func (h *TokenHandler) RefreshToken(c *gin.Context) {
	token, err := h.authService.GenerateGuestToken(
		c.GetString("guest_name"),
		c.GetString("guest_email"),
		domain.RoomID(c.GetString("guest_room")),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.tokenTTL / time.Second),
	})
}

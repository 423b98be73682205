package http

import (
	"net/http"
	"strings"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct {
	auth     ports.AuthService
	tokenTTL time.Duration
}

func NewAuthHandler(auth ports.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		tokenTTL: tokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/auth/token", h.IssueToken)
}

type TokenRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName" binding:"required,min=1,max=64"`
	IsAdmin     bool   `json:"isAdmin"`
}

// IssueToken mints a session token for a display name. There is no user
// store behind this; identity is whatever the conference organizer hands
// out.
// TODO: validate the admin flag against an operator allowlist once one
// exists.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	if req.UserID == "" {
		req.UserID = uuid.New().String()
	}
	if err := validation.ValidateUserID(req.UserID); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	token, err := h.auth.GenerateToken(domain.UserID(req.UserID), req.DisplayName, req.IsAdmin)
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      req.UserID,
		"display_name": req.DisplayName,
		"access_token": token,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}

package handler

import (
	"errors"
	"net/http"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/middleware"
	"anoa.com/schoolportal/internal/modules/auth/dto"
	authService "anoa.com/schoolportal/internal/modules/auth/service"
	userService "anoa.com/schoolportal/internal/modules/user/service"
	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/response"
	"github.com/gin-gonic/gin"
)

// HomePath is where approved accounts land when they open the pending notice.
const HomePath = "/api/announcements/feed"

type AuthHandler struct {
	authService authService.AuthService
	sessions    *middleware.Sessions
}

func NewAuthHandler(authService authService.AuthService, sessions *middleware.Sessions) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input dto.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	user, err := h.authService.Register(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input dto.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	user, err := h.authService.Login(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusOK, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.End(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userService.ToResponse(*user)})
}

func (h *AuthHandler) PendingApproval(c *gin.Context) {
	notice, err := h.authService.PendingNotice(c.Request.Context(), middleware.ActorFrom(c))
	if errors.Is(err, apperror.ErrForbidden) {
		c.Redirect(http.StatusSeeOther, HomePath)
		return
	}
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, notice)
}

func (h *AuthHandler) respondWithSession(c *gin.Context, status int, user *entity.User) {
	token, err := h.sessions.Start(c, user.ID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	res := dto.AuthResponse{
		AccessToken:     token,
		TokenType:       "Bearer",
		ExpiresIn:       int64(h.sessions.TTL().Seconds()),
		User:            userService.ToResponse(*user),
		PendingApproval: user.IsPendingParent(),
	}
	if res.PendingApproval {
		res.Redirect = response.PendingApprovalPath
	}
	c.JSON(status, res)
}

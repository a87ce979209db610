package handlers

import (
	"context"
	"net/http"

	"github.com/franzego/registry-backoffice/internal/api"
	"github.com/franzego/registry-backoffice/internal/models"
	"github.com/gin-gonic/gin"
)

type Session interface {
	Login(ctx context.Context, email, password string) (models.SessionUser, error)
	Logout()
	User() (models.SessionUser, error)
	LoggedIn() bool
}

type SessionHandler struct {
	session Session
}

func NewSessionHandler(session Session) *SessionHandler {
	return &SessionHandler{session: session}
}

func (h *SessionHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}
	user, err := h.session.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status := http.StatusBadGateway
		if code := api.StatusCode(err); code >= 400 && code < 500 {
			status = http.StatusUnauthorized
		}
		c.JSON(status, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Login failed",
		})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Logged in",
		Data:    user,
	})
}

func (h *SessionHandler) Logout(c *gin.Context) {
	h.session.Logout()
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Logged out",
	})
}

// Me returns the identity of the current session.
func (h *SessionHandler) Me(c *gin.Context) {
	user, err := h.session.User()
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Unauthorized",
		})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Session active",
		Data:    user,
	})
}

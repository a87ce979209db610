package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/franzego/registry-backoffice/internal/models"
	"github.com/franzego/registry-backoffice/internal/notifications"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationStore is the part of the notification store the gateway serves.
type NotificationStore interface {
	Snapshot() models.NotificationsView
	Refresh(ctx context.Context, showErrors bool) error
	MarkAsRead(ctx context.Context, id string)
	MarkAllAsRead(ctx context.Context)
	PushNotification(in models.NotificationInput) models.Notification
	Find(id string) (models.Notification, bool)
}

// Broadcaster fans a local notification out to every gateway instance.
type Broadcaster interface {
	Publish(ctx context.Context, in models.NotificationInput) error
}

type NotificationHandler struct {
	store       NotificationStore
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewNotificationHandler builds the handler. broadcaster may be nil, in
// which case local notifications only reach this instance.
func NewNotificationHandler(store NotificationStore, broadcaster Broadcaster, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{store: store, broadcaster: broadcaster, logger: logger}
}

// List returns the notifications visible to the current user.
func (n *NotificationHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Notifications retrieved",
		Data:    n.store.Snapshot(),
	})
}

// Refresh reloads from the backend and reports failures, unlike the
// silent refresh that follows a login.
func (n *NotificationHandler) Refresh(c *gin.Context) {
	if err := n.store.Refresh(c.Request.Context(), true); err != nil {
		n.logger.Warn("notification refresh failed",
			zap.String("correlation_id", c.GetString("correlation_id")),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Could not refresh notifications",
			Data:    n.store.Snapshot(),
		})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Notifications refreshed",
		Data:    n.store.Snapshot(),
	})
}

func (n *NotificationHandler) MarkAsRead(c *gin.Context) {
	id := c.Param("id")
	if _, ok := n.store.Find(id); !ok {
		c.JSON(http.StatusNotFound, models.APIResponse{
			Success: false,
			Error:   "notification not found",
			Message: "Not Found",
		})
		return
	}
	n.store.MarkAsRead(c.Request.Context(), id)
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Notification marked as read",
		Data:    n.store.Snapshot(),
	})
}

func (n *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	n.store.MarkAllAsRead(c.Request.Context())
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "All notifications marked as read",
		Data:    n.store.Snapshot(),
	})
}

// PushLocal adds an in-process notification. With a broadcaster it is
// published and reaches this instance through the consumer like any other.
func (n *NotificationHandler) PushLocal(c *gin.Context) {
	var req models.NotificationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}

	if n.broadcaster != nil {
		if strings.TrimSpace(req.ID) == "" {
			req.ID = uuid.New().String()
		}
		err := n.broadcaster.Publish(c.Request.Context(), req)
		if err == nil {
			c.JSON(http.StatusAccepted, models.APIResponse{
				Success: true,
				Message: "Notification broadcast",
				Data:    req,
			})
			return
		}
		n.logger.Warn("broadcast failed, keeping notification local", zap.String("id", req.ID), zap.Error(err))
	}

	created := n.store.PushNotification(req)
	c.JSON(http.StatusCreated, models.APIResponse{
		Success: true,
		Message: "Notification created",
		Data:    created,
	})
}

// Destination tells the dashboard where activating a notification goes.
func (n *NotificationHandler) Destination(c *gin.Context) {
	notification, ok := n.store.Find(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, models.APIResponse{
			Success: false,
			Error:   "notification not found",
			Message: "Not Found",
		})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Destination resolved",
		Data:    notifications.ResolveDestination(notification),
	})
}

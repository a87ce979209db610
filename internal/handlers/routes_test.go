package handlers

import (
	"net/http"
	"testing"

	"github.com/franzego/registry-backoffice/internal/middleware"
	"github.com/franzego/registry-backoffice/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes_GuardsNotifications(t *testing.T) {
	gin.SetMode(gin.TestMode)
	session := new(MockSession)
	session.On("LoggedIn").Return(false).Once()
	session.On("LoggedIn").Return(true)
	store := new(MockNotificationStore)
	store.On("Snapshot").Return(models.NotificationsView{})

	router := gin.New()
	RegisterRoutes(router,
		NewSessionHandler(session),
		NewNotificationHandler(store, nil, nil),
		NewHealthHandler(fakeBreaker(gobreaker.StateClosed)),
		middleware.SessionRequired(session),
	)

	w, response := perform(router, http.MethodGet, "/api/v1/notifications", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", response.Message)

	w, _ = perform(router, http.MethodGet, "/api/v1/notifications", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = perform(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	// tests are in the same package; do not import the package under test
	"github.com/franzego/registry-backoffice/internal/models"
	"github.com/franzego/registry-backoffice/internal/notifications"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock notification store
type MockNotificationStore struct {
	mock.Mock
}

func (m *MockNotificationStore) Snapshot() models.NotificationsView {
	args := m.Called()
	return args.Get(0).(models.NotificationsView)
}

func (m *MockNotificationStore) Refresh(ctx context.Context, showErrors bool) error {
	args := m.Called(ctx, showErrors)
	return args.Error(0)
}

func (m *MockNotificationStore) MarkAsRead(ctx context.Context, id string) {
	m.Called(ctx, id)
}

func (m *MockNotificationStore) MarkAllAsRead(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockNotificationStore) PushNotification(in models.NotificationInput) models.Notification {
	args := m.Called(in)
	return args.Get(0).(models.Notification)
}

func (m *MockNotificationStore) Find(id string) (models.Notification, bool) {
	args := m.Called(id)
	return args.Get(0).(models.Notification), args.Bool(1)
}

// Mock RabbitMQ publisher
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Publish(ctx context.Context, in models.NotificationInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func sampleView() models.NotificationsView {
	return models.NotificationsView{
		Notifications: []models.Notification{{
			ID:          "n-1",
			Title:       "Solicitud asignada",
			Message:     "Se le asignó la solicitud SOL-9",
			CreatedAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Priority:    models.PriorityMedium,
			Type:        "request-assignment",
			TargetRoles: []models.Role{models.RoleAnalyst},
			Source:      models.SourceRemote,
		}},
		UnreadCount: 1,
	}
}

func newNotificationRouter(handler *NotificationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/notifications", handler.List)
	router.POST("/notifications/refresh", handler.Refresh)
	router.POST("/notifications/read-all", handler.MarkAllAsRead)
	router.POST("/notifications/local", handler.PushLocal)
	router.POST("/notifications/:id/read", handler.MarkAsRead)
	router.GET("/notifications/:id/destination", handler.Destination)
	return router
}

func perform(router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, models.APIResponse) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response models.APIResponse
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

func TestList(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("Snapshot").Return(sampleView())

	w, response := perform(newNotificationRouter(NewNotificationHandler(store, nil, nil)), http.MethodGet, "/notifications", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, response.Success)
	data := response.Data.(map[string]any)
	assert.Equal(t, float64(1), data["unreadCount"])
	assert.Len(t, data["notifications"], 1)
}

func TestRefresh_Success(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("Refresh", mock.Anything, true).Return(nil)
	store.On("Snapshot").Return(sampleView())

	w, response := perform(newNotificationRouter(NewNotificationHandler(store, nil, nil)), http.MethodPost, "/notifications/refresh", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, response.Success)
	store.AssertExpectations(t)
}

func TestRefresh_FailureIsBadGateway(t *testing.T) {
	store := new(MockNotificationStore)
	view := sampleView()
	view.Error = "Request failed with status 500"
	store.On("Refresh", mock.Anything, true).Return(errors.New("Request failed with status 500"))
	store.On("Snapshot").Return(view)

	w, response := perform(newNotificationRouter(NewNotificationHandler(store, nil, nil)), http.MethodPost, "/notifications/refresh", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.False(t, response.Success)
	assert.Equal(t, "Request failed with status 500", response.Error)
	// previous list is still served
	assert.Len(t, response.Data.(map[string]any)["notifications"], 1)
}

func TestMarkAsRead(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("Find", "n-1").Return(sampleView().Notifications[0], true)
	store.On("MarkAsRead", mock.Anything, "n-1").Return()
	store.On("Snapshot").Return(models.NotificationsView{})

	w, response := perform(newNotificationRouter(NewNotificationHandler(store, nil, nil)), http.MethodPost, "/notifications/n-1/read", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, response.Success)
	store.AssertExpectations(t)
}

func TestMarkAsRead_Unknown(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("Find", "missing").Return(models.Notification{}, false)

	w, response := perform(newNotificationRouter(NewNotificationHandler(store, nil, nil)), http.MethodPost, "/notifications/missing/read", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, response.Success)
	store.AssertNotCalled(t, "MarkAsRead", mock.Anything, mock.Anything)
}

func TestMarkAllAsRead(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("MarkAllAsRead", mock.Anything).Return()
	store.On("Snapshot").Return(models.NotificationsView{})

	w, _ := perform(newNotificationRouter(NewNotificationHandler(store, nil, nil)), http.MethodPost, "/notifications/read-all", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}

func TestPushLocal_WithoutBroadcaster(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("PushNotification", mock.MatchedBy(func(in models.NotificationInput) bool {
		return in.Title == "Exportación lista"
	})).Return(models.Notification{ID: "local-1", Title: "Exportación lista", Source: models.SourceLocal})

	w, response := perform(newNotificationRouter(NewNotificationHandler(store, nil, nil)), http.MethodPost, "/notifications/local",
		models.NotificationInput{Title: "Exportación lista", Priority: models.PriorityLow})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "local-1", response.Data.(map[string]any)["id"])
	store.AssertExpectations(t)
}

func TestPushLocal_Broadcast(t *testing.T) {
	store := new(MockNotificationStore)
	broadcaster := new(MockBroadcaster)
	broadcaster.On("Publish", mock.Anything, mock.MatchedBy(func(in models.NotificationInput) bool {
		return in.ID != "" && in.Title == "Mantenimiento"
	})).Return(nil)

	w, _ := perform(newNotificationRouter(NewNotificationHandler(store, broadcaster, nil)), http.MethodPost, "/notifications/local",
		models.NotificationInput{Title: "Mantenimiento"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	broadcaster.AssertExpectations(t)
	store.AssertNotCalled(t, "PushNotification", mock.Anything)
}

func TestPushLocal_BroadcastFailureFallsBack(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("PushNotification", mock.Anything).Return(models.Notification{ID: "b-1", Title: "Mantenimiento"})
	broadcaster := new(MockBroadcaster)
	broadcaster.On("Publish", mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	w, _ := perform(newNotificationRouter(NewNotificationHandler(store, broadcaster, nil)), http.MethodPost, "/notifications/local",
		models.NotificationInput{ID: "b-1", Title: "Mantenimiento"})

	assert.Equal(t, http.StatusCreated, w.Code)
	store.AssertExpectations(t)
}

func TestPushLocal_InvalidBody(t *testing.T) {
	store := new(MockNotificationStore)

	w, response := perform(newNotificationRouter(NewNotificationHandler(store, nil, nil)), http.MethodPost, "/notifications/local",
		map[string]string{"message": "no title"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid Request Body", response.Message)
}

func TestDestination(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("Find", "n-1").Return(models.Notification{
		ID:               "n-1",
		Type:             "request-assignment",
		RelatedRequestID: "SOL-9",
	}, true)

	w, response := perform(newNotificationRouter(NewNotificationHandler(store, nil, nil)), http.MethodGet, "/notifications/n-1/destination", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := response.Data.(map[string]any)
	assert.Equal(t, string(notifications.PageRequests), data["page"])
	assert.Equal(t, "SOL-9", data["requestId"])
}

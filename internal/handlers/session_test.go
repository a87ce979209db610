package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/franzego/registry-backoffice/internal/api"
	"github.com/franzego/registry-backoffice/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSession struct {
	mock.Mock
}

func (m *MockSession) Login(ctx context.Context, email, password string) (models.SessionUser, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(models.SessionUser), args.Error(1)
}

func (m *MockSession) Logout() {
	m.Called()
}

func (m *MockSession) User() (models.SessionUser, error) {
	args := m.Called()
	return args.Get(0).(models.SessionUser), args.Error(1)
}

func (m *MockSession) LoggedIn() bool {
	return m.Called().Bool(0)
}

func newSessionRouter(session Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSessionHandler(session)
	router := gin.New()
	router.POST("/session/login", h.Login)
	router.POST("/session/logout", h.Logout)
	router.GET("/session/me", h.Me)
	return router
}

func TestLogin_Success(t *testing.T) {
	session := new(MockSession)
	session.On("Login", mock.Anything, "ana@example.org", "secret").
		Return(models.SessionUser{Email: "ana@example.org", Role: "Supervisor"}, nil)

	w, response := perform(newSessionRouter(session), http.MethodPost, "/session/login",
		models.LoginRequest{Email: "ana@example.org", Password: "secret"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, response.Success)
	assert.Equal(t, "Supervisor", response.Data.(map[string]any)["role"])
	session.AssertExpectations(t)
}

func TestLogin_Validation(t *testing.T) {
	session := new(MockSession)

	w, response := perform(newSessionRouter(session), http.MethodPost, "/session/login",
		map[string]string{"email": "not-an-email", "password": "x"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, response.Success)
	session.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"rejected credentials", &api.Error{Message: "Credenciales inválidas", Status: http.StatusUnauthorized}, http.StatusUnauthorized},
		{"backend down", &api.Error{Message: "Network error"}, http.StatusBadGateway},
		{"no token", api.ErrMissingToken, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := new(MockSession)
			session.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(models.SessionUser{}, tt.err)

			w, response := perform(newSessionRouter(session), http.MethodPost, "/session/login",
				models.LoginRequest{Email: "ana@example.org", Password: "secret"})

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "Login failed", response.Message)
		})
	}
}

func TestLogoutAndMe(t *testing.T) {
	session := new(MockSession)
	session.On("Logout").Return()
	session.On("User").Return(models.SessionUser{}, errors.New("no active session"))

	router := newSessionRouter(session)
	w, _ := perform(router, http.MethodPost, "/session/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, response := perform(router, http.MethodGet, "/session/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "no active session", response.Error)
	session.AssertExpectations(t)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/franzego/registry-backoffice/internal/models"
	"github.com/franzego/registry-backoffice/internal/notifications"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"
)

// ErrNotLoggedIn is returned by operations that need a session.
var ErrNotLoggedIn = errors.New("no active session")

const (
	roleClaimURI  = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	emailClaimURI = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	nameClaimURI  = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	idClaimURI    = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
)

type AuthAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// NotificationStore is the part of the notification store a session drives.
type NotificationStore interface {
	SetToken(ctx context.Context, token string)
	SetUser(role, roleLevel string)
	UsePendingReads(p notifications.PendingReads)
	Reset()
}

// SessionService owns the login state of the dashboard and keeps the
// notification store bound to the current token.
type SessionService struct {
	auth       AuthAPI
	store      NotificationStore
	logger     *zap.Logger
	pendingFor func(models.SessionUser) notifications.PendingReads

	mu    sync.RWMutex
	token string
	user  models.SessionUser
}

type SessionOption func(*SessionService)

// WithPendingReadsFactory scopes the store's pending reads to each user
// that logs in.
func WithPendingReadsFactory(f func(models.SessionUser) notifications.PendingReads) SessionOption {
	return func(s *SessionService) { s.pendingFor = f }
}

func NewSessionService(auth AuthAPI, store NotificationStore, logger *zap.Logger, opts ...SessionOption) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SessionService{auth: auth, store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates against the backend and starts a session.
func (s *SessionService) Login(ctx context.Context, email, password string) (models.SessionUser, error) {
	token, err := s.auth.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed", zap.String("email", email), zap.Error(err))
		return models.SessionUser{}, err
	}
	return s.start(ctx, token, email)
}

// UseToken starts or renews a session from a token obtained elsewhere.
func (s *SessionService) UseToken(ctx context.Context, token string) (models.SessionUser, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.SessionUser{}, ErrNotLoggedIn
	}
	return s.start(ctx, token, "")
}

func (s *SessionService) start(ctx context.Context, token, email string) (models.SessionUser, error) {
	user, err := UserFromToken(token)
	if err != nil {
		// Opaque tokens are valid for the backend; the role filter just
		// falls back to showing everything.
		s.logger.Debug("session token is not a readable JWT", zap.Error(err))
	}
	if user.Email == "" {
		user.Email = email
	}

	s.mu.Lock()
	prevToken, prevUser := s.token, s.user
	s.token = token
	s.user = user
	s.mu.Unlock()

	// Local notifications belong to the previous user.
	if prevToken != "" && !sameUser(prevUser, user) {
		s.store.Reset()
	}

	if s.pendingFor != nil {
		s.store.UsePendingReads(s.pendingFor(user))
	}
	s.store.SetUser(user.Role, user.RoleLevel)
	s.store.SetToken(ctx, token)

	s.logger.Info("session started",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role),
	)
	return user, nil
}

// Logout ends the session and clears every notification it produced.
func (s *SessionService) Logout() {
	s.mu.Lock()
	s.token = ""
	s.user = models.SessionUser{}
	s.mu.Unlock()
	s.store.Reset()
	s.logger.Info("session ended")
}

func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *SessionService) User() (models.SessionUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return models.SessionUser{}, ErrNotLoggedIn
	}
	return s.user, nil
}

func (s *SessionService) LoggedIn() bool {
	return s.Token() != ""
}

// sameUser treats sessions without a known identity as different users.
func sameUser(a, b models.SessionUser) bool {
	ka, kb := identity(a), identity(b)
	return ka != "" && ka == kb
}

func identity(u models.SessionUser) string {
	if u.ID != "" {
		return u.ID
	}
	return strings.ToLower(u.Email)
}

// UserFromToken reads the identity claims of a session JWT. The signature
// is not checked here; the backend verifies every request.
func UserFromToken(token string) (models.SessionUser, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return models.SessionUser{}, fmt.Errorf("parsing session token: %w", err)
	}
	return models.SessionUser{
		ID:        claimString(claims, "sub", "nameid", "userId", idClaimURI),
		Email:     claimString(claims, "email", emailClaimURI),
		Name:      claimString(claims, "name", "unique_name", "fullName", nameClaimURI),
		Role:      claimString(claims, "role", "roles", roleClaimURI),
		RoleLevel: claimString(claims, "roleLevel", "role_level"),
	}, nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		case float64:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

package notifications

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/franzego/registry-backoffice/internal/api"
	"github.com/franzego/registry-backoffice/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NotificationAPI is the part of the backend client the store needs.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, token string, q api.NotificationQuery) ([]any, error)
	MarkNotificationRead(ctx context.Context, token, id string) error
}

// Store owns the notifications of one dashboard session. Remote entries
// come from the backend, local ones are pushed by the running process.
// Consumers only get copies.
type Store struct {
	client      NotificationAPI
	logger      *zap.Logger
	take        int
	includeRead bool
	concurrency int
	policy      ReconcilePolicy
	pending     PendingReads
	now         func() time.Time
	newID       func() string

	mu        sync.RWMutex
	token     string
	role      models.Role
	remote    []models.Notification
	local     []models.Notification
	inFlight  int
	lastError string
	issued    uint64
	applied   uint64
}

type Option func(*Store)

// WithTake sets how many notifications one refresh requests.
func WithTake(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.take = n
		}
	}
}

func WithIncludeRead(include bool) Option {
	return func(s *Store) { s.includeRead = include }
}

// WithConcurrency caps the mark-read calls MarkAllAsRead keeps in flight.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithReconcilePolicy(p ReconcilePolicy) Option {
	return func(s *Store) { s.policy = p }
}

func WithPendingReads(p PendingReads) Option {
	return func(s *Store) { s.pending = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

func NewStore(client NotificationAPI, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		client:      client,
		logger:      logger,
		take:        100,
		includeRead: true,
		concurrency: 8,
		policy:      ReconcileIgnore,
		now:         time.Now,
		newID:       newLocalID,
		role:        models.RoleAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy == ReconcileRetry && s.pending == nil {
		s.pending = NewMemoryPendingReads()
	}
	return s
}

// newLocalID prefers a random UUID and falls back to time plus randomness
// when the system entropy source fails.
func newLocalID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	return fmt.Sprintf("local-%d-%d", time.Now().UnixNano(), rand.Int63())
}

// SetToken binds the store to a session token. An empty token clears the
// remote notifications without touching the network; a new token triggers
// a silent refresh.
func (s *Store) SetToken(ctx context.Context, token string) {
	s.mu.Lock()
	if token == s.token {
		s.mu.Unlock()
		return
	}
	s.token = token
	if token == "" {
		s.remote = nil
		s.lastError = ""
	}
	s.mu.Unlock()

	if token != "" {
		_ = s.Refresh(ctx, false)
	}
}

// UsePendingReads swaps where undelivered reads are remembered, usually
// once per logged-in user.
func (s *Store) UsePendingReads(p PendingReads) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = p
}

func (s *Store) pendingReads() PendingReads {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// SetUser sets the role used to filter visible notifications.
func (s *Store) SetUser(role, roleLevel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = CurrentUserRole(role, roleLevel)
}

// Reset drops every piece of session state. Used at logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.role = models.RoleAll
	s.remote = nil
	s.local = nil
	s.lastError = ""
	s.applied = s.issued
}

// Refresh replaces the remote notifications with the backend's current
// list. Failures keep the previous list; the error banner is only set when
// showErrors is true. A response older than one already applied is dropped.
func (s *Store) Refresh(ctx context.Context, showErrors bool) error {
	s.mu.Lock()
	token := s.token
	if token == "" {
		s.remote = nil
		s.lastError = ""
		s.mu.Unlock()
		return nil
	}
	s.issued++
	seq := s.issued
	s.inFlight++
	if showErrors {
		s.lastError = ""
	}
	s.mu.Unlock()

	pending := s.flushPending(ctx, token)

	records, err := s.client.ListNotifications(ctx, token, api.NotificationQuery{
		IncludeRead: s.includeRead,
		Take:        s.take,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--

	if token != s.token {
		return nil
	}
	if seq < s.applied {
		s.logger.Debug("discarding stale notifications response", zap.Uint64("seq", seq), zap.Bool("failed", err != nil))
		return nil
	}
	if err != nil {
		s.logger.Warn("failed to refresh notifications", zap.Error(err), zap.Bool("show_errors", showErrors))
		if showErrors {
			s.lastError = errorMessage(err)
		}
		return err
	}
	s.applied = seq

	now := s.now()
	seen := make(map[string]bool, len(records))
	mapped := make([]models.Notification, 0, len(records))
	for i, record := range records {
		n := MapRecord(record, i, now)
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		if pending[n.ID] {
			n.Read = true
		}
		mapped = append(mapped, n)
	}
	sortNotifications(mapped)
	s.remote = mapped
	s.lastError = ""
	return nil
}

// flushPending re-sends reads that failed earlier and returns the ids
// still undelivered.
func (s *Store) flushPending(ctx context.Context, token string) map[string]bool {
	pending := s.pendingReads()
	if s.policy != ReconcileRetry || pending == nil {
		return nil
	}
	ids, err := pending.List(ctx)
	if err != nil {
		s.logger.Warn("failed to list pending reads", zap.Error(err))
		return nil
	}
	if len(ids) == 0 {
		return nil
	}
	failed := s.sendReads(ctx, token, ids)
	still := make(map[string]bool, len(failed))
	var delivered []string
	for _, id := range ids {
		if _, ok := failed[id]; ok {
			still[id] = true
			continue
		}
		delivered = append(delivered, id)
	}
	if err := pending.Remove(ctx, delivered...); err != nil {
		s.logger.Warn("failed to clear pending reads", zap.Error(err))
	}
	return still
}

// PushNotification adds a local notification, replacing any local entry
// with the same id, and returns it.
func (s *Store) PushNotification(in models.NotificationInput) models.Notification {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = s.newID()
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultTitle
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		message = title
	}
	priority := in.Priority
	switch priority {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
	default:
		priority = ParsePriority(string(priority))
	}
	createdAt := s.now()
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		createdAt = *in.CreatedAt
	}

	n := models.Notification{
		ID:               id,
		Title:            title,
		Message:          message,
		CreatedAt:        createdAt.UTC(),
		Read:             in.Read,
		Priority:         priority,
		Type:             resolveType(in.Type, priority),
		TargetRoles:      normalizeRoles(in.TargetRoles),
		Source:           models.SourceLocal,
		RelatedRequestID: strings.TrimSpace(in.RelatedRequestID),
		Metadata:         maps.Clone(in.Metadata),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	local := make([]models.Notification, 0, len(s.local)+1)
	local = append(local, n)
	for _, existing := range s.local {
		if existing.ID != id {
			local = append(local, existing)
		}
	}
	sortNotifications(local)
	s.local = local
	return cloneNotification(n)
}

// MarkAsRead flags id as read everywhere and tells the backend. The local
// flag is kept even if the backend call fails, unless the policy is rollback.
func (s *Store) MarkAsRead(ctx context.Context, id string) {
	s.mu.Lock()
	wasUnread := s.setRead(map[string]bool{id: true})
	token := s.token
	s.mu.Unlock()

	if token == "" {
		return
	}
	if err := s.client.MarkNotificationRead(ctx, token, id); err != nil {
		s.reconcileFailure(ctx, map[string]error{id: err}, wasUnread)
	}
}

// MarkAllAsRead flags everything read and sends one mark-read call per
// unread remote notification, at most concurrency at a time.
func (s *Store) MarkAllAsRead(ctx context.Context) {
	s.mu.Lock()
	ids := make(map[string]bool)
	var unread []string
	for _, n := range s.remote {
		if !n.Read {
			unread = append(unread, n.ID)
			ids[n.ID] = true
		}
	}
	wasUnread := s.setRead(nil)
	token := s.token
	s.mu.Unlock()

	if token == "" || len(unread) == 0 {
		return
	}
	if failed := s.sendReads(ctx, token, unread); len(failed) > 0 {
		remoteOnly := make(map[string]bool, len(failed))
		for id := range failed {
			if ids[id] {
				remoteOnly[id] = true
			}
		}
		s.reconcileFailure(ctx, failed, filterKeys(wasUnread, remoteOnly))
	}
}

// sendReads fans the mark-read calls out and returns the failures by id.
func (s *Store) sendReads(ctx context.Context, token string, ids []string) map[string]error {
	var (
		mu     sync.Mutex
		failed = make(map[string]error)
		g      errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := s.client.MarkNotificationRead(ctx, token, id); err != nil {
				mu.Lock()
				failed[id] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// setRead marks the given ids (all when ids is nil) read in both lists and
// returns the ids that were unread before. Caller holds s.mu.
func (s *Store) setRead(ids map[string]bool) map[string]bool {
	wasUnread := make(map[string]bool)
	mark := func(list []models.Notification) []models.Notification {
		out := make([]models.Notification, len(list))
		for i, n := range list {
			if (ids == nil || ids[n.ID]) && !n.Read {
				wasUnread[n.ID] = true
				n.Read = true
			}
			out[i] = n
		}
		return out
	}
	s.remote = mark(s.remote)
	s.local = mark(s.local)
	return wasUnread
}

func (s *Store) reconcileFailure(ctx context.Context, failed map[string]error, wasUnread map[string]bool) {
	ids := make([]string, 0, len(failed))
	for id, err := range failed {
		ids = append(ids, id)
		s.logger.Warn("failed to mark notification as read",
			zap.String("notification_id", id),
			zap.String("policy", string(s.policy)),
			zap.Error(err),
		)
	}
	sort.Strings(ids)

	switch s.policy {
	case ReconcileRetry:
		var retry []string
		for _, id := range ids {
			var apiErr *api.Error
			if errors.As(failed[id], &apiErr) && apiErr.IsClientError() {
				continue
			}
			retry = append(retry, id)
		}
		if err := s.pendingReads().Add(ctx, retry...); err != nil {
			s.logger.Warn("failed to record pending reads", zap.Error(err))
		}
	case ReconcileRollback:
		s.mu.Lock()
		defer s.mu.Unlock()
		restore := func(list []models.Notification) []models.Notification {
			out := make([]models.Notification, len(list))
			for i, n := range list {
				if _, ok := failed[n.ID]; ok && wasUnread[n.ID] {
					n.Read = false
				}
				out[i] = n
			}
			return out
		}
		s.remote = restore(s.remote)
		s.local = restore(s.local)
	}
}

// Visible returns the merged notifications the current user may see,
// newest first. Local entries win over remote ones with the same id.
func (s *Store) Visible() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleLocked()
}

func (s *Store) visibleLocked() []models.Notification {
	seen := make(map[string]bool, len(s.local)+len(s.remote))
	out := make([]models.Notification, 0, len(s.local)+len(s.remote))
	for _, list := range [][]models.Notification{s.local, s.remote} {
		for _, n := range list {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			if s.role != models.RoleAll && !n.Targets(s.role) {
				continue
			}
			out = append(out, cloneNotification(n))
		}
	}
	sortNotifications(out)
	return out
}

// UnreadCount counts unread notifications among the visible ones.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countUnread(s.visibleLocked())
}

// Find returns the visible notification with the given id.
func (s *Store) Find(id string) (models.Notification, bool) {
	for _, n := range s.Visible() {
		if n.ID == id {
			return n, true
		}
	}
	return models.Notification{}, false
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *Store) HasSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Snapshot returns everything the notification panel renders in one read.
func (s *Store) Snapshot() models.NotificationsView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	visible := s.visibleLocked()
	return models.NotificationsView{
		Notifications: visible,
		UnreadCount:   countUnread(visible),
		Loading:       s.inFlight > 0,
		Error:         s.lastError,
	}
}

func countUnread(list []models.Notification) int {
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count
}

// sortNotifications orders newest first, high priority first on ties.
func sortNotifications(list []models.Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Priority.Rank() < b.Priority.Rank()
	})
}

func cloneNotification(n models.Notification) models.Notification {
	n.TargetRoles = append([]models.Role(nil), n.TargetRoles...)
	n.Metadata = maps.Clone(n.Metadata)
	return n
}

func filterKeys(m, keep map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k, v := range m {
		if keep[k] {
			out[k] = v
		}
	}
	return out
}

func errorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

package notifications

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReconcilePolicy decides what happens to an optimistic read flag when the
// backend rejects the mark-read call.
type ReconcilePolicy string

const (
	// ReconcileIgnore logs the failure and keeps the local state.
	ReconcileIgnore ReconcilePolicy = "ignore"
	// ReconcileRetry keeps the local state and re-sends the call on the
	// next refresh.
	ReconcileRetry ReconcilePolicy = "retry"
	// ReconcileRollback restores the unread flag.
	ReconcileRollback ReconcilePolicy = "rollback"
)

func ParseReconcilePolicy(s string) (ReconcilePolicy, error) {
	switch p := ReconcilePolicy(s); p {
	case ReconcileIgnore, ReconcileRetry, ReconcileRollback:
		return p, nil
	case "":
		return ReconcileIgnore, nil
	default:
		return "", fmt.Errorf("unknown reconcile policy %q", s)
	}
}

// PendingReads remembers notification ids whose mark-read call still has
// to reach the backend.
type PendingReads interface {
	Add(ctx context.Context, ids ...string) error
	Remove(ctx context.Context, ids ...string) error
	List(ctx context.Context) ([]string, error)
}

type MemoryPendingReads struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemoryPendingReads() *MemoryPendingReads {
	return &MemoryPendingReads{ids: make(map[string]struct{})}
}

func (m *MemoryPendingReads) Add(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.ids[id] = struct{}{}
	}
	return nil
}

func (m *MemoryPendingReads) Remove(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.ids, id)
	}
	return nil
}

func (m *MemoryPendingReads) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// pendingTTL bounds how long an undelivered read is retried.
const pendingTTL = 24 * time.Hour

// RedisPendingReads keeps pending ids in a Redis set so they survive a
// restart of the dashboard gateway.
type RedisPendingReads struct {
	redis *redis.Client
	key   string
}

// NewRedisPendingReads scopes the set by namespace, usually the session user.
func NewRedisPendingReads(client *redis.Client, namespace string) *RedisPendingReads {
	return &RedisPendingReads{
		redis: client,
		key:   fmt.Sprintf("notification:pending-read:%s", namespace),
	}
}

func (r *RedisPendingReads) Add(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe := r.redis.TxPipeline()
	pipe.SAdd(ctx, r.key, members...)
	pipe.Expire(ctx, r.key, pendingTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisPendingReads) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return r.redis.SRem(ctx, r.key, members...).Err()
}

func (r *RedisPendingReads) List(ctx context.Context) ([]string, error) {
	ids, err := r.redis.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

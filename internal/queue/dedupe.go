package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers which broadcast ids were already delivered.
type Deduper interface {
	// Seen records id and reports whether it had been recorded before.
	Seen(ctx context.Context, id string) (bool, error)
}

const dedupeTTL = 24 * time.Hour

// RedisDeduper keeps the seen set of one gateway instance in Redis, so a
// publisher retry is shown once even across a consumer reconnect.
type RedisDeduper struct {
	client    *redis.Client
	namespace string
}

func NewRedisDeduper(client *redis.Client, namespace string) *RedisDeduper {
	return &RedisDeduper{client: client, namespace: namespace}
}

func (d *RedisDeduper) Seen(ctx context.Context, id string) (bool, error) {
	key := fmt.Sprintf("notification:idempotency:%s:%s", d.namespace, id)
	fresh, err := d.client.SetNX(ctx, key, "delivered", dedupeTTL).Result()
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

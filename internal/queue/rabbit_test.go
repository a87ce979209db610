package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/franzego/registry-backoffice/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAcknowledger struct {
	acked   []uint64
	nacked  []uint64
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func TestDecodeBroadcast(t *testing.T) {
	in, err := decodeBroadcast([]byte(`{
		"title": "  Mantenimiento programado ",
		"message": "El sistema estará fuera de línea a las 22:00",
		"priority": "high",
		"type": "system",
		"targetRoles": ["Admin", "Supervisor"],
		"metadata": {"window": "2h"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Mantenimiento programado", in.Title)
	assert.Equal(t, models.PriorityHigh, in.Priority)
	assert.Equal(t, []models.Role{models.RoleAdmin, models.RoleSupervisor}, in.TargetRoles)
	assert.Equal(t, "2h", in.Metadata["window"])
}

func TestDecodeBroadcast_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `title=hello`},
		{"missing title", `{"message":"no title"}`},
		{"blank title", `{"title":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeBroadcast([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestHandleDelivery(t *testing.T) {
	r := &RabbitMqClient{logger: zap.NewNop()}

	t.Run("valid delivery is handled and acked", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		var got []models.NotificationInput
		r.handleDelivery(context.Background(), amqp.Delivery{
			Acknowledger: ack,
			DeliveryTag:  1,
			MessageId:    "msg-1",
			Body:         []byte(`{"title":"Aviso"}`),
		}, func(in models.NotificationInput) { got = append(got, in) })

		require.Len(t, got, 1)
		assert.Equal(t, "msg-1", got[0].ID)
		assert.Equal(t, []uint64{1}, ack.acked)
		assert.Empty(t, ack.nacked)
	})

	t.Run("malformed delivery is nacked without requeue", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		called := false
		r.handleDelivery(context.Background(), amqp.Delivery{
			Acknowledger: ack,
			DeliveryTag:  2,
			Body:         []byte(`{`),
		}, func(models.NotificationInput) { called = true })

		assert.False(t, called)
		assert.Equal(t, []uint64{2}, ack.nacked)
		assert.False(t, ack.requeue)
	})
}

func TestHandleDelivery_DropsDuplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r := &RabbitMqClient{logger: zap.NewNop(), deduper: NewRedisDeduper(client, "gw-1")}
	ack := &fakeAcknowledger{}
	calls := 0
	handler := func(models.NotificationInput) { calls++ }

	for tag := uint64(1); tag <= 2; tag++ {
		r.handleDelivery(context.Background(), amqp.Delivery{
			Acknowledger: ack,
			DeliveryTag:  tag,
			Body:         []byte(`{"id":"b-7","title":"Aviso"}`),
		}, handler)
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, []uint64{1, 2}, ack.acked)
}

func TestRedisDeduper_IsScopedByNamespace(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	first := NewRedisDeduper(client, "gw-1")
	second := NewRedisDeduper(client, "gw-2")

	seen, err := first.Seen(ctx, "b-1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = first.Seen(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = second.Seen(ctx, "b-1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.True(t, mr.Exists("notification:idempotency:gw-1:b-1"))
}

func TestIsConnected_NilClient(t *testing.T) {
	var r *RabbitMqClient
	assert.False(t, r.IsConnected())
}

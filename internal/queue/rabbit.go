package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/franzego/registry-backoffice/internal/config"
	"github.com/franzego/registry-backoffice/internal/models"
	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrClosed is returned by Consume when the broker closes the delivery channel.
var ErrClosed = errors.New("rabbitmq delivery channel closed")

// NotificationHandler receives each decoded broadcast.
type NotificationHandler func(models.NotificationInput)

type RabbitMqClient struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Config  config.RabbitMQConfig

	logger    *zap.Logger
	deduper   Deduper
	mu        sync.RWMutex
	connected bool
}

type Option func(*RabbitMqClient)

// WithDeduper drops deliveries whose id was already handled.
func WithDeduper(d Deduper) Option {
	return func(r *RabbitMqClient) { r.deduper = d }
}

func NewRabbitMqService(cfg config.RabbitMQConfig, logger *zap.Logger, opts ...Option) (*RabbitMqClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening rabbitmq channel: %w", err)
	}
	r := &RabbitMqClient{
		Conn:      conn,
		Channel:   channel,
		Config:    cfg,
		logger:    logger,
		connected: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err := <-closed; err != nil {
			logger.Warn("rabbitmq connection closed", zap.Error(err))
		}
		r.setConnected(false)
	}()
	return r, nil
}

func (r *RabbitMqClient) IsConnected() bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

func (r *RabbitMqClient) setConnected(v bool) {
	r.mu.Lock()
	r.connected = v
	r.mu.Unlock()
}

func (r *RabbitMqClient) CloseConnection() {
	r.Channel.Close()
	r.Conn.Close()
	r.setConnected(false)
}

// SetUpExchangeAndQueue declares the broadcast fanout exchange and binds a
// server-named exclusive queue to it. Every gateway instance gets its own
// copy of each broadcast.
func (r *RabbitMqClient) SetUpExchangeAndQueue() (string, error) {
	if err := r.Channel.ExchangeDeclare(
		r.Config.Exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return "", fmt.Errorf("declaring exchange %s: %w", r.Config.Exchange, err)
	}
	q, err := r.Channel.QueueDeclare(
		"",
		false, // durable
		true,  // auto-deleted
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("declaring broadcast queue: %w", err)
	}
	if err := r.Channel.QueueBind(q.Name, "", r.Config.Exchange, false, nil); err != nil {
		return "", fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
	}
	return q.Name, nil
}

// Publish broadcasts a notification to every consumer of the exchange.
func (r *RabbitMqClient) Publish(ctx context.Context, in models.NotificationInput) error {
	by, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	err = r.Channel.PublishWithContext(
		ctx,
		r.Config.Exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   in.ID,
			Body:        by,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Consume delivers broadcasts to handler until ctx is done or the broker
// closes the channel.
func (r *RabbitMqClient) Consume(ctx context.Context, handler NotificationHandler) error {
	queueName, err := r.SetUpExchangeAndQueue()
	if err != nil {
		return err
	}
	deliveries, err := r.Channel.Consume(
		queueName,
		"",    // consumer tag
		false, // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consuming %s: %w", queueName, err)
	}
	r.logger.Info("consuming broadcasts", zap.String("exchange", r.Config.Exchange), zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrClosed
			}
			r.handleDelivery(ctx, d, handler)
		}
	}
}

func (r *RabbitMqClient) handleDelivery(ctx context.Context, d amqp.Delivery, handler NotificationHandler) {
	in, err := decodeBroadcast(d.Body)
	if err != nil {
		r.logger.Warn("dropping malformed broadcast", zap.String("message_id", d.MessageId), zap.Error(err))
		if err := d.Nack(false, false); err != nil {
			r.logger.Error("nack failed", zap.Error(err))
		}
		return
	}
	if in.ID == "" {
		in.ID = d.MessageId
	}

	if r.deduper != nil && in.ID != "" {
		seen, err := r.deduper.Seen(ctx, in.ID)
		if err != nil {
			r.logger.Warn("broadcast dedupe check failed", zap.String("id", in.ID), zap.Error(err))
		}
		if seen {
			r.logger.Debug("skipping duplicate broadcast", zap.String("id", in.ID))
			if err := d.Ack(false); err != nil {
				r.logger.Error("ack failed", zap.Error(err))
			}
			return
		}
	}

	handler(in)
	if err := d.Ack(false); err != nil {
		r.logger.Error("ack failed", zap.Error(err))
	}
}

var broadcastValidator = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

// decodeBroadcast parses a delivery body. A title is required.
func decodeBroadcast(body []byte) (models.NotificationInput, error) {
	var in models.NotificationInput
	if err := json.Unmarshal(body, &in); err != nil {
		return models.NotificationInput{}, fmt.Errorf("decoding broadcast: %w", err)
	}
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	if err := broadcastValidator.Struct(in); err != nil {
		return models.NotificationInput{}, fmt.Errorf("invalid broadcast: %w", err)
	}
	return in, nil
}

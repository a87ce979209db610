package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
	statusDisabled  = "disabled"
)

// BreakerReporter exposes the backend circuit breaker.
type BreakerReporter interface {
	BreakerState() gobreaker.State
}

type QueueStatus interface {
	IsConnected() bool
}

type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

type HealthHandler struct {
	backend BreakerReporter
	queue   QueueStatus
	redis   Pinger
}

type HealthOption func(*HealthHandler)

// WithRedis adds a Redis ping to the check. A nil client is ignored.
func WithRedis(client *redis.Client) HealthOption {
	return func(h *HealthHandler) {
		if client != nil {
			h.redis = client
		}
	}
}

// WithQueue adds the broadcast consumer to the check. A nil queue is ignored.
func WithQueue(q QueueStatus) HealthOption {
	return func(h *HealthHandler) { h.queue = q }
}

func NewHealthHandler(backend BreakerReporter, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{backend: backend}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)

	// Check RabbitMQ
	switch {
	case h.queue == nil:
		checks["rabbitmq"] = statusDisabled
	case h.queue.IsConnected():
		checks["rabbitmq"] = statusHealthy
	default:
		checks["rabbitmq"] = statusUnhealthy
	}

	// Check Redis
	switch {
	case h.redis == nil:
		checks["redis"] = statusDisabled
	case h.redis.Ping(ctx).Err() == nil:
		checks["redis"] = statusHealthy
	default:
		checks["redis"] = statusUnhealthy
	}

	// An open breaker means the backend is failing, not this gateway.
	if h.backend.BreakerState() == gobreaker.StateClosed {
		checks["backend_api"] = statusHealthy
	} else {
		checks["backend_api"] = statusDegraded
	}

	overallStatus := statusHealthy
	for _, status := range checks {
		if status == statusUnhealthy {
			overallStatus = statusUnhealthy
			break
		} else if status == statusDegraded {
			overallStatus = statusDegraded
		}
	}

	statusCode := http.StatusOK
	if overallStatus == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    overallStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
		"breaker":   h.backend.BreakerState().String(),
		"version":   "1.0.0",
	})
}

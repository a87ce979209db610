package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franzego/registry-backoffice/internal/api"
	"github.com/franzego/registry-backoffice/internal/config"
	"github.com/franzego/registry-backoffice/internal/handlers"
	"github.com/franzego/registry-backoffice/internal/middleware"
	"github.com/franzego/registry-backoffice/internal/models"
	"github.com/franzego/registry-backoffice/internal/notifications"
	"github.com/franzego/registry-backoffice/internal/queue"
	"github.com/franzego/registry-backoffice/internal/services"
	"github.com/franzego/registry-backoffice/pkg/logger"
	redisclient "github.com/franzego/registry-backoffice/pkg/redis"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	zlog, err := logger.New(cfg.Server.Mode)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := api.NewClient(cfg.API, zlog)

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redisclient.InitRedis(cfg.Redis, zlog)
		if err != nil {
			zlog.Fatal("redis unavailable", zap.Error(err))
		}
		defer rdb.Close()
	}

	policy, err := notifications.ParseReconcilePolicy(cfg.Notifications.ReconcilePolicy)
	if err != nil {
		zlog.Fatal("invalid reconcile policy", zap.Error(err))
	}
	store := notifications.NewStore(backend, zlog,
		notifications.WithTake(cfg.Notifications.Take),
		notifications.WithIncludeRead(cfg.Notifications.IncludeRead),
		notifications.WithConcurrency(cfg.Notifications.MarkReadConcurrency),
		notifications.WithReconcilePolicy(policy),
	)

	var sessionOpts []services.SessionOption
	if rdb != nil {
		sessionOpts = append(sessionOpts, services.WithPendingReadsFactory(func(u models.SessionUser) notifications.PendingReads {
			namespace := u.ID
			if namespace == "" {
				namespace = u.Email
			}
			return notifications.NewRedisPendingReads(rdb, namespace)
		}))
	}
	session := services.NewSessionService(backend, store, zlog, sessionOpts...)

	healthOpts := []handlers.HealthOption{handlers.WithRedis(rdb)}
	var broadcaster handlers.Broadcaster
	if cfg.RabbitMQ.Enabled {
		var queueOpts []queue.Option
		if rdb != nil {
			instance, _ := os.Hostname()
			queueOpts = append(queueOpts, queue.WithDeduper(queue.NewRedisDeduper(rdb, instance)))
		}
		rabbit, err := queue.NewRabbitMqService(cfg.RabbitMQ, zlog, queueOpts...)
		if err != nil {
			zlog.Fatal("rabbitmq unavailable", zap.Error(err))
		}
		defer rabbit.CloseConnection()
		broadcaster = rabbit
		healthOpts = append(healthOpts, handlers.WithQueue(rabbit))

		go func() {
			err := rabbit.Consume(ctx, func(in models.NotificationInput) {
				n := store.PushNotification(in)
				zlog.Info("broadcast received", zap.String("id", n.ID), zap.String("priority", string(n.Priority)))
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("broadcast consumer stopped", zap.Error(err))
			}
		}()
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.CorrelationHeader},
		ExposeHeaders:    []string{middleware.CorrelationHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.RequestLogger(zlog))

	handlers.RegisterRoutes(r,
		handlers.NewSessionHandler(session),
		handlers.NewNotificationHandler(store, broadcaster, zlog),
		handlers.NewHealthHandler(backend, healthOpts...),
		middleware.SessionRequired(session),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}
	go func() {
		zlog.Info("gateway listening", zap.String("addr", srv.Addr), zap.String("backend", cfg.API.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultAPIBaseURL is the production backend used when no override is set.
const DefaultAPIBaseURL = "https://api.padron-beneficiarios.gob.do"

type Config struct {
	Server        ServerConfig
	API           APIConfig
	Redis         RedisConfig
	RabbitMQ      RabbitMQConfig
	Notifications NotificationsConfig
}

type ServerConfig struct {
	Port           string        `validate:"required"`
	Mode           string        `validate:"oneof=debug release test"`
	Timeout        time.Duration `validate:"gt=0"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
	Breaker BreakerConfig
}

type BreakerConfig struct {
	MaxRequests  uint32 `mapstructure:"max_requests"`
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32  `mapstructure:"min_requests"`
	FailureRatio float64 `mapstructure:"failure_ratio" validate:"gte=0,lte=1"`
}

type RedisConfig struct {
	Enabled  bool
	Addr     string `validate:"required_if=Enabled true"`
	Password string
	DB       int
}

type RabbitMQConfig struct {
	Enabled  bool
	URL      string `validate:"required_if=Enabled true"`
	Exchange string `validate:"required_if=Enabled true"`
}

type NotificationsConfig struct {
	Take                int    `validate:"gt=0"`
	IncludeRead         bool   `mapstructure:"include_read"`
	MarkReadConcurrency int    `mapstructure:"mark_read_concurrency" validate:"gt=0"`
	ReconcilePolicy     string `mapstructure:"reconcile_policy" validate:"oneof=ignore retry rollback"`
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Set defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("api.base_url", DefaultAPIBaseURL)
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.breaker.max_requests", 3)
	v.SetDefault("api.breaker.interval", "1m")
	v.SetDefault("api.breaker.timeout", "60s")
	v.SetDefault("api.breaker.min_requests", 3)
	v.SetDefault("api.breaker.failure_ratio", 0.6)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.exchange", "backoffice.broadcast")
	v.SetDefault("notifications.take", 100)
	v.SetDefault("notifications.include_read", true)
	v.SetDefault("notifications.mark_read_concurrency", 8)
	v.SetDefault("notifications.reconcile_policy", "ignore")

	// Read from environment
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.base_url", "API_BASE_URL", "VITE_API_BASE_URL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.API.BaseURL = strings.TrimRight(config.API.BaseURL, "/")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the struct tags of the whole tree.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

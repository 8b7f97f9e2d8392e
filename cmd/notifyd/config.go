package main

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/channel"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
	"github.com/dmitrymomot/notifykit/pkg/redis"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"notifyd"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Postgres pg.Config
	Redis    redis.Config

	// Channels are enabled individually; disabled ones fall back to the
	// dev channel so local runs work without provider credentials.
	EmailEnabled bool `env:"EMAIL_ENABLED" envDefault:"false"`
	SMSEnabled   bool `env:"SMS_ENABLED" envDefault:"false"`
	PushEnabled  bool `env:"PUSH_ENABLED" envDefault:"false"`

	Email channel.EmailConfig
	SMS   channel.SMSConfig
	Push  channel.PushConfig

	// TemplatesFile switches template loading from the database to a YAML
	// catalog. Intended for development.
	TemplatesFile     string        `env:"TEMPLATES_FILE"`
	TemplateCacheSize int           `env:"TEMPLATE_CACHE_SIZE" envDefault:"128"`
	TemplateCacheTTL  time.Duration `env:"TEMPLATE_CACHE_TTL" envDefault:"5m"`

	Worker workerConfig

	RateLimitEnabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	RateLimitCapacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`
	RateLimitRefillRate     int           `env:"RATE_LIMIT_REFILL_RATE" envDefault:"60"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1m"`
}

func (c appConfig) rateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Capacity:       c.RateLimitCapacity,
		RefillRate:     c.RateLimitRefillRate,
		RefillInterval: c.RateLimitRefillInterval,
	}
}

type workerConfig struct {
	PullInterval      time.Duration `env:"WORKER_PULL_INTERVAL" envDefault:"1s"`
	LockTimeout       time.Duration `env:"WORKER_LOCK_TIMEOUT" envDefault:"1m"`
	MaxConcurrentJobs int           `env:"WORKER_MAX_CONCURRENT_JOBS" envDefault:"4"`
	SendTimeout       time.Duration `env:"WORKER_SEND_TIMEOUT" envDefault:"30s"`
	BackoffBase       time.Duration `env:"WORKER_BACKOFF_BASE" envDefault:"30s"`
	BackoffMultiplier float64       `env:"WORKER_BACKOFF_MULTIPLIER" envDefault:"2"`
}

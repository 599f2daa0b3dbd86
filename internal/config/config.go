// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	SMS      SMSConfig
	Email    EmailConfig
	Dispatch DispatchConfig
	Quota    QuotaConfig
	Log      LogConfig
}

type ServerConfig struct {
	Address         string        `envconfig:"SERVER_ADDRESS" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Name     string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

// RedisConfig is optional. An empty address keeps jobs and quota in memory.
type RedisConfig struct {
	Address  string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Enabled() bool { return c.Address != "" }

// AMQPConfig is optional. An empty URL routes timeline events through the in-memory queue.
type AMQPConfig struct {
	URL           string `envconfig:"AMQP_URL"`
	TimelineQueue string `envconfig:"AMQP_TIMELINE_QUEUE" default:"case_timeline"`
	MaxRetries    int    `envconfig:"AMQP_MAX_RETRIES" default:"3"`
}

func (c AMQPConfig) Enabled() bool { return c.URL != "" }

type SMSConfig struct {
	GatewayURL string        `envconfig:"SMS_GATEWAY_URL"`
	AccountSID string        `envconfig:"SMS_ACCOUNT_SID"`
	AuthToken  string        `envconfig:"SMS_AUTH_TOKEN"`
	From       string        `envconfig:"SMS_FROM"`
	RatePerSec float64       `envconfig:"SMS_RATE_PER_SEC" default:"1"`
	Timeout    time.Duration `envconfig:"SMS_TIMEOUT" default:"10s"`
}

func (c SMSConfig) Configured() bool {
	return c.GatewayURL != "" && c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

type EmailConfig struct {
	Host       string        `envconfig:"SMTP_HOST"`
	Port       int           `envconfig:"SMTP_PORT" default:"587"`
	Username   string        `envconfig:"SMTP_USERNAME"`
	Password   string        `envconfig:"SMTP_PASSWORD"`
	From       string        `envconfig:"SMTP_FROM"`
	RatePerSec float64       `envconfig:"EMAIL_RATE_PER_SEC" default:"2"`
	Timeout    time.Duration `envconfig:"SMTP_TIMEOUT" default:"15s"`
}

func (c EmailConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

// DispatchConfig holds the pacing constants of the dispatch engine.
type DispatchConfig struct {
	SendDelay          time.Duration `envconfig:"DISPATCH_SEND_DELAY" default:"1200ms"`
	BatchSize          int           `envconfig:"DISPATCH_BATCH_SIZE" default:"20"`
	BatchPause         time.Duration `envconfig:"DISPATCH_BATCH_PAUSE" default:"5s"`
	MaxRetries         int           `envconfig:"DISPATCH_MAX_RETRIES" default:"2"`
	RetryBaseDelay     time.Duration `envconfig:"DISPATCH_RETRY_BASE_DELAY" default:"3s"`
	RateLimitCooldown  time.Duration `envconfig:"DISPATCH_RATE_LIMIT_COOLDOWN" default:"12s"`
	ErrorWindow        int           `envconfig:"DISPATCH_ERROR_WINDOW" default:"10"`
	JobTTL             time.Duration `envconfig:"DISPATCH_JOB_TTL" default:"1h"`
	SweepInterval      time.Duration `envconfig:"DISPATCH_SWEEP_INTERVAL" default:"5m"`
	DefaultCountryCode string        `envconfig:"DEFAULT_COUNTRY_CODE" default:"1"`
	// ConsoleProviders logs messages instead of sending them when a channel is not configured.
	ConsoleProviders bool `envconfig:"PROVIDER_CONSOLE" default:"false"`
}

type QuotaConfig struct {
	SMSDaily   int `envconfig:"QUOTA_SMS_DAILY" default:"400"`
	EmailDaily int `envconfig:"QUOTA_EMAIL_DAILY" default:"400"`
}

type LogConfig struct {
	Level   string `envconfig:"LOG_LEVEL" default:"info"`
	Console bool   `envconfig:"LOG_CONSOLE" default:"false"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	d := c.Dispatch
	switch {
	case d.BatchSize <= 0:
		return errors.New("DISPATCH_BATCH_SIZE must be > 0")
	case d.MaxRetries < 0:
		return errors.New("DISPATCH_MAX_RETRIES must be >= 0")
	case d.ErrorWindow <= 0:
		return errors.New("DISPATCH_ERROR_WINDOW must be > 0")
	case d.JobTTL <= 0:
		return errors.New("DISPATCH_JOB_TTL must be > 0")
	case d.SweepInterval <= 0:
		return errors.New("DISPATCH_SWEEP_INTERVAL must be > 0")
	case d.SendDelay < 0 || d.BatchPause < 0 || d.RetryBaseDelay < 0 || d.RateLimitCooldown < 0:
		return errors.New("dispatch delays must not be negative")
	case c.Quota.SMSDaily <= 0:
		return errors.New("QUOTA_SMS_DAILY must be > 0")
	case c.Quota.EmailDaily <= 0:
		return errors.New("QUOTA_EMAIL_DAILY must be > 0")
	}
	return nil
}

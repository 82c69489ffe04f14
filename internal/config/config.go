package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Notification NotificationConfig
	Scheduler    SchedulerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// NotificationConfig selects the delivery targets. A target whose
// credentials are empty is not wired.
type NotificationConfig struct {
	QueueEnabled  bool
	QueueKey      string
	MaxRetries    int
	WebhookURL    string
	SlackToken    string
	SlackChannel  string
	SendGridKey   string
	EmailFrom     string
	EmailTo       string
	TimeoutSecond int
}

// SchedulerConfig drives the SLA monitor and automation loops.
type SchedulerConfig struct {
	Enabled                  bool
	SLAMonitorSchedule       string
	SLAMonitorBackoffSeconds int
	SLAItemRetries           int
	AutomationSchedule       string
	AutomationBackoffSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-sla"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Notification: NotificationConfig{
			QueueEnabled:  getEnvAsBool("NOTIFY_QUEUE_ENABLED", false),
			QueueKey:      getEnv("NOTIFY_QUEUE_KEY", "helpdesk:notifications"),
			MaxRetries:    getEnvAsInt("NOTIFY_MAX_RETRIES", 3),
			WebhookURL:    os.Getenv("NOTIFY_WEBHOOK_URL"),
			SlackToken:    os.Getenv("SLACK_BOT_TOKEN"),
			SlackChannel:  os.Getenv("SLACK_CHANNEL_ID"),
			SendGridKey:   os.Getenv("SENDGRID_API_KEY"),
			EmailFrom:     getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			EmailTo:       os.Getenv("NOTIFY_EMAIL_TO"),
			TimeoutSecond: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10),
		},
		Scheduler: SchedulerConfig{
			Enabled:                  getEnvAsBool("SCHEDULER_ENABLED", true),
			SLAMonitorSchedule:       getEnv("SLA_MONITOR_SCHEDULE", "@every 15m"),
			SLAMonitorBackoffSeconds: getEnvAsInt("SLA_MONITOR_BACKOFF_SECONDS", 60),
			SLAItemRetries:           getEnvAsInt("SLA_ITEM_RETRIES", 2),
			AutomationSchedule:       getEnv("AUTOMATION_SCHEDULE", "@every 30m"),
			AutomationBackoffSeconds: getEnvAsInt("AUTOMATION_BACKOFF_SECONDS", 120),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	if _, err := c.Scheduler.SLAMonitor(); err != nil {
		return fmt.Errorf("invalid SLA_MONITOR_SCHEDULE: %w", err)
	}
	if _, err := c.Scheduler.Automation(); err != nil {
		return fmt.Errorf("invalid AUTOMATION_SCHEDULE: %w", err)
	}
	if c.Scheduler.SLAItemRetries < 0 {
		return fmt.Errorf("invalid SLA_ITEM_RETRIES: %d", c.Scheduler.SLAItemRetries)
	}
	if c.Notification.MaxRetries < 0 {
		return fmt.Errorf("invalid NOTIFY_MAX_RETRIES: %d", c.Notification.MaxRetries)
	}
	if c.Notification.QueueEnabled && !c.Redis.Enabled {
		return fmt.Errorf("NOTIFY_QUEUE_ENABLED requires REDIS_ENABLED")
	}
	if c.Notification.QueueEnabled && c.Notification.QueueKey == "" {
		return fmt.Errorf("NOTIFY_QUEUE_KEY is required when NOTIFY_QUEUE_ENABLED is set")
	}
	return nil
}

// SLAMonitor parses the SLA monitor cadence.
func (s SchedulerConfig) SLAMonitor() (cron.Schedule, error) {
	return cron.ParseStandard(s.SLAMonitorSchedule)
}

// Automation parses the automation engine cadence.
func (s SchedulerConfig) Automation() (cron.Schedule, error) {
	return cron.ParseStandard(s.AutomationSchedule)
}

// SLAMonitorBackoff is the wait after a failed monitor tick.
func (s SchedulerConfig) SLAMonitorBackoff() time.Duration {
	return seconds(s.SLAMonitorBackoffSeconds)
}

// AutomationBackoff is the wait after a failed automation tick.
func (s SchedulerConfig) AutomationBackoff() time.Duration {
	return seconds(s.AutomationBackoffSeconds)
}

// Timeout bounds a single outbound delivery.
func (n NotificationConfig) Timeout() time.Duration {
	return seconds(n.TimeoutSecond)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete configuration for the alert console service
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Debug         bool                `mapstructure:"debug"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Alerting      AlertingConfig      `mapstructure:"alerting"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Console       ConsoleConfig       `mapstructure:"console"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	HTTPPort     int           `mapstructure:"http_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// DSN builds the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig contains Redis configuration for session storage
type RedisConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Addr returns host:port for the Redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Brokers        []string      `mapstructure:"brokers"`
	GroupID        string        `mapstructure:"group_id"`
	EventTopic     string        `mapstructure:"event_topic"`
	AlertTopic     string        `mapstructure:"alert_topic"`
	WorkerCount    int           `mapstructure:"worker_count"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
}

// AlertingConfig contains alert lifecycle configuration
type AlertingConfig struct {
	EscalationAfter     time.Duration `mapstructure:"escalation_after"`
	EscalationBatchSize int           `mapstructure:"escalation_batch_size"`
}

// NotificationsConfig contains notification configuration
type NotificationsConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig contains webhook notification configuration
type WebhookConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	URL             string            `mapstructure:"url"`
	Headers         map[string]string `mapstructure:"headers"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	RateLimitPerMin int               `mapstructure:"rate_limit_per_min"`
}

// SchedulerConfig contains periodic task configuration
type SchedulerConfig struct {
	Enabled                 bool          `mapstructure:"enabled"`
	EscalationCheckInterval time.Duration `mapstructure:"escalation_check_interval"`
	CleanupInterval         time.Duration `mapstructure:"cleanup_interval"`
	RetentionDays           int           `mapstructure:"retention_days"`
}

// ConsoleConfig contains presentation-layer configuration
type ConsoleConfig struct {
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
	ListLimit        int           `mapstructure:"list_limit"`
	StatsCacheTTL    time.Duration `mapstructure:"stats_cache_ttl"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/intel-console")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("INTEL_CONSOLE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// General
	viper.SetDefault("environment", "development")
	viper.SetDefault("debug", false)

	// Server
	viper.SetDefault("server.http_port", 8086)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "intel_console")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "file://migrations")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.session_ttl", "12h")

	// Kafka
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "intel-console")
	viper.SetDefault("kafka.event_topic", "monitoring-events")
	viper.SetDefault("kafka.alert_topic", "alert-lifecycle")
	viper.SetDefault("kafka.worker_count", 2)
	viper.SetDefault("kafka.min_bytes", 1)
	viper.SetDefault("kafka.max_bytes", 10e6)
	viper.SetDefault("kafka.commit_interval", "1s")

	// Alerting
	viper.SetDefault("alerting.escalation_after", "30m")
	viper.SetDefault("alerting.escalation_batch_size", 100)

	// Notifications
	viper.SetDefault("notifications.webhook.enabled", false)
	viper.SetDefault("notifications.webhook.timeout", "30s")
	viper.SetDefault("notifications.webhook.rate_limit_per_min", 120)

	// Scheduler
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.escalation_check_interval", "5m")
	viper.SetDefault("scheduler.cleanup_interval", "1h")
	viper.SetDefault("scheduler.retention_days", 30)

	// Console
	viper.SetDefault("console.debounce_interval", "300ms")
	viper.SetDefault("console.list_limit", 100)
	viper.SetDefault("console.stats_cache_ttl", "15s")
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Sinks     SinksConfig     `mapstructure:"sinks"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds the pgx connection string.
func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type IngestionConfig struct {
	MaxEventSize      int64         `mapstructure:"max_event_size"`
	ArchiveOnReject   bool          `mapstructure:"archive_on_reject"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

type DispatchConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffCap     time.Duration `mapstructure:"backoff_cap"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

type SinksConfig struct {
	Lookup    LookupSinkConfig    `mapstructure:"lookup"`
	Archive   ArchiveSinkConfig   `mapstructure:"archive"`
	Stream    StreamSinkConfig    `mapstructure:"stream"`
	Warehouse WarehouseSinkConfig `mapstructure:"warehouse"`
}

type LookupSinkConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type ArchiveSinkConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type StreamSinkConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	NatsURL  string `mapstructure:"nats_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type WarehouseSinkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	Index         string `mapstructure:"index"`
}

// RedisConfig is shared by the lookup sink and the rate limiter.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "waypost")
	v.SetDefault("database.user", "waypost")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("ingestion.max_event_size", 1048576)
	v.SetDefault("ingestion.archive_on_reject", false)
	v.SetDefault("ingestion.rate_limit_enabled", false)
	v.SetDefault("ingestion.rate_limit_requests", 10000)
	v.SetDefault("ingestion.rate_limit_window", "1m")
	v.SetDefault("dispatch.max_attempts", 5)
	v.SetDefault("dispatch.backoff_base", "200ms")
	v.SetDefault("dispatch.backoff_cap", "10s")
	v.SetDefault("dispatch.attempt_timeout", "10s")
	v.SetDefault("sinks.lookup.enabled", true)
	v.SetDefault("sinks.lookup.ttl", "168h")
	v.SetDefault("sinks.archive.enabled", true)
	v.SetDefault("sinks.archive.bucket", "waypost-raw-events")
	v.SetDefault("sinks.archive.region", "us-east-1")
	v.SetDefault("sinks.stream.enabled", true)
	v.SetDefault("sinks.stream.nats_url", "nats://localhost:4222")
	v.SetDefault("sinks.warehouse.enabled", false)
	v.SetDefault("sinks.warehouse.url", "https://localhost:9200")
	v.SetDefault("sinks.warehouse.username", "admin")
	v.SetDefault("sinks.warehouse.tls_skip_verify", true)
	v.SetDefault("sinks.warehouse.index", "waypost-staging")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/waypost")
	}

	// Environment variables override (WAYPOST_SERVER_PORT, etc.)
	v.SetEnvPrefix("WAYPOST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Package config holds the docshelf configuration tree and its loaders.
package config

import (
	"time"
)

// Config represents the root configuration.
type Config struct {
	// Database configures the row store the documents live in.
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Cache configures the optional document cache for _id lookups.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// ChangeFeed configures the optional change event relay.
	ChangeFeed ChangeFeedConfig `yaml:"changefeed" json:"changefeed"`

	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Tables contains per-table settings. Tables not listed here are schemaless.
	Tables map[string]TableConfig `yaml:"tables,omitempty" json:"tables,omitempty"`
}

// DatabaseConfig contains configuration for the row store.
type DatabaseConfig struct {
	// Type is "mysql", "postgres" or "sqlite".
	Type string `yaml:"type" json:"type"`

	Host     string `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// SSLMode is passed through to PostgreSQL.
	SSLMode string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`

	// Path is the SQLite database file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// DSN, when set, is used verbatim instead of the fields above.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`

	// MaxOpenConns bounds the pool; callers block when it is exhausted.
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`

	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// CacheConfig contains configuration for the document cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Type is "redis" or "dynamodb".
	Type string `yaml:"type" json:"type"`

	// TTL bounds how long a cached document may be served.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// Redis
	Endpoints    []string      `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int           `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize     int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int           `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`

	// DynamoDB
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	TableName       string `yaml:"table_name,omitempty" json:"table_name,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// ChangeFeedConfig contains configuration for the change event relay.
type ChangeFeedConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Sink is "kafka" or "log".
	Sink string `yaml:"sink" json:"sink"`

	// Queue is "memory" or "redis". The redis queue survives process restarts.
	Queue         string `yaml:"queue" json:"queue"`
	RedisEndpoint string `yaml:"redis_endpoint,omitempty" json:"redis_endpoint,omitempty"`
	RedisKey      string `yaml:"redis_key,omitempty" json:"redis_key,omitempty"`

	// QueueBufferSize is the number of events buffered before enqueues are dropped.
	QueueBufferSize int `yaml:"queue_buffer_size" json:"queue_buffer_size"`

	// DrainRate is the maximum number of events published per second.
	DrainRate int `yaml:"drain_rate" json:"drain_rate"`

	BatchSize    int           `yaml:"batch_size" json:"batch_size"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`

	Kafka KafkaConfig `yaml:"kafka" json:"kafka"`
}

// KafkaConfig contains Kafka producer settings for the change feed.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	BatchSize    int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// RequiredAcks is 0, 1, or -1 (all).
	RequiredAcks int `yaml:"required_acks" json:"required_acks"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// ServerConfig contains settings for the HTTP surface.
type ServerConfig struct {
	Address string `yaml:"address" json:"address"`

	// Mode is the gin mode: "debug", "release" or "test".
	Mode string `yaml:"mode" json:"mode"`

	// AllowCreate lets requests open tables that are neither configured nor
	// already open, creating them on first use. Off by default.
	AllowCreate bool `yaml:"allow_create" json:"allow_create"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	// Verbose logs every statement sent to the row store.
	Verbose bool `yaml:"verbose" json:"verbose"`
}

// TableConfig contains per-table settings.
type TableConfig struct {
	// Schema maps declared field names to type tags. A non-empty schema
	// creates the table in hybrid mode.
	Schema map[string]string `yaml:"schema,omitempty" json:"schema,omitempty"`

	// DisableCache skips the document cache for this table.
	DisableCache bool `yaml:"disable_cache,omitempty" json:"disable_cache,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type:              "mysql",
			Host:              "localhost",
			Port:              3306,
			SSLMode:           "disable",
			MaxOpenConns:      10,
			MaxIdleConns:      5,
			ConnMaxLifetime:   5 * time.Minute,
			ConnMaxIdleTime:   10 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:      false,
			Type:         "redis",
			TTL:          10 * time.Minute,
			Endpoints:    []string{"localhost:6379"},
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		ChangeFeed: ChangeFeedConfig{
			Enabled:         false,
			Sink:            "kafka",
			Queue:           "memory",
			RedisEndpoint:   "localhost:6379",
			RedisKey:        "docshelf:changes",
			QueueBufferSize: 10000,
			DrainRate:       100,
			BatchSize:       50,
			PollInterval:    100 * time.Millisecond,
			MaxRetries:      3,
			RetryBackoff:    500 * time.Millisecond,
			Kafka: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "docshelf-changes",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1,
			},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "docshelf",
		},
		Server: ServerConfig{
			Address: ":8080",
			Mode:    "release",
		},
		Tables: make(map[string]TableConfig),
	}
}

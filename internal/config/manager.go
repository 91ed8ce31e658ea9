package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/docshelf/internal/dialect"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "DOCSHELF_"

var supportedCaches = map[string]bool{"redis": true, "dynamodb": true}

var supportedSinks = map[string]bool{"kafka": true, "log": true}

var supportedQueues = map[string]bool{"memory": true, "redis": true}

var supportedServerModes = map[string]bool{"": true, "debug": true, "release": true, "test": true}

// Manager handles loading configuration from files and the environment.
type Manager struct {
	config *Config
}

// NewManager creates a manager holding the default configuration.
func NewManager() *Manager {
	return &Manager{config: DefaultConfig()}
}

// Config returns the current configuration.
func (m *Manager) Config() *Config {
	return m.config
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (m *Manager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		err = m.LoadFromYAML(data)
	case ".json":
		err = m.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
	if err != nil {
		return err
	}
	log.Printf("[CONFIG] Loaded configuration from %s", filePath)
	return nil
}

// LoadFromYAML loads configuration from YAML data on top of the defaults.
func (m *Manager) LoadFromYAML(data []byte) error {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return m.apply(config)
}

// LoadFromJSON loads configuration from JSON data on top of the defaults.
func (m *Manager) LoadFromJSON(data []byte) error {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return m.apply(config)
}

// LoadFromEnv overlays environment variables on the current configuration.
// Variables follow the pattern DOCSHELF_<SECTION>_<KEY>, for example:
//   - DOCSHELF_DATABASE_TYPE=postgres
//   - DOCSHELF_DATABASE_MAX_OPEN_CONNS=20
//   - DOCSHELF_CACHE_ENDPOINTS=localhost:6379,localhost:6380
//   - DOCSHELF_CHANGEFEED_KAFKA_BROKERS=localhost:9092
func (m *Manager) LoadFromEnv() error {
	config := *m.config

	db := &config.Database
	envString("DATABASE_TYPE", &db.Type)
	envString("DATABASE_HOST", &db.Host)
	envInt("DATABASE_PORT", &db.Port)
	envString("DATABASE_DATABASE", &db.Database)
	envString("DATABASE_USERNAME", &db.Username)
	envString("DATABASE_PASSWORD", &db.Password)
	envString("DATABASE_SSL_MODE", &db.SSLMode)
	envString("DATABASE_PATH", &db.Path)
	envString("DATABASE_DSN", &db.DSN)
	envInt("DATABASE_MAX_OPEN_CONNS", &db.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &db.MaxIdleConns)
	envDuration("DATABASE_CONNECTION_TIMEOUT", &db.ConnectionTimeout)

	cache := &config.Cache
	envBool("CACHE_ENABLED", &cache.Enabled)
	envString("CACHE_TYPE", &cache.Type)
	envDuration("CACHE_TTL", &cache.TTL)
	envList("CACHE_ENDPOINTS", &cache.Endpoints)
	envString("CACHE_PASSWORD", &cache.Password)
	envInt("CACHE_DB", &cache.DB)
	envString("CACHE_REGION", &cache.Region)
	envString("CACHE_TABLE_NAME", &cache.TableName)
	envString("CACHE_ENDPOINT", &cache.Endpoint)

	feed := &config.ChangeFeed
	envBool("CHANGEFEED_ENABLED", &feed.Enabled)
	envString("CHANGEFEED_SINK", &feed.Sink)
	envString("CHANGEFEED_QUEUE", &feed.Queue)
	envString("CHANGEFEED_REDIS_ENDPOINT", &feed.RedisEndpoint)
	envInt("CHANGEFEED_DRAIN_RATE", &feed.DrainRate)
	envInt("CHANGEFEED_BATCH_SIZE", &feed.BatchSize)
	envList("CHANGEFEED_KAFKA_BROKERS", &feed.Kafka.Brokers)
	envString("CHANGEFEED_KAFKA_TOPIC", &feed.Kafka.Topic)

	envBool("METRICS_ENABLED", &config.Metrics.Enabled)
	envString("SERVER_ADDRESS", &config.Server.Address)
	envString("SERVER_MODE", &config.Server.Mode)
	envBool("SERVER_ALLOW_CREATE", &config.Server.AllowCreate)
	envBool("LOGGING_VERBOSE", &config.Logging.Verbose)

	return m.apply(&config)
}

func (m *Manager) apply(config *Config) error {
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if config.Tables == nil {
		config.Tables = make(map[string]TableConfig)
	}
	m.config = config
	return nil
}

func validateConfig(config *Config) error {
	if _, err := dialect.Get(config.Database.Type); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if config.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database: max_open_conns must be positive")
	}
	if config.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database: max_idle_conns cannot be negative")
	}

	if config.Cache.Enabled {
		if !supportedCaches[config.Cache.Type] {
			return fmt.Errorf("cache: unsupported type %q", config.Cache.Type)
		}
		if config.Cache.Type == "redis" && len(config.Cache.Endpoints) == 0 {
			return fmt.Errorf("cache: at least one redis endpoint is required")
		}
		if config.Cache.Type == "dynamodb" && (config.Cache.Region == "" || config.Cache.TableName == "") {
			return fmt.Errorf("cache: dynamodb requires region and table_name")
		}
	}

	if config.ChangeFeed.Enabled {
		if !supportedSinks[config.ChangeFeed.Sink] {
			return fmt.Errorf("changefeed: unsupported sink %q", config.ChangeFeed.Sink)
		}
		if !supportedQueues[config.ChangeFeed.Queue] {
			return fmt.Errorf("changefeed: unsupported queue %q", config.ChangeFeed.Queue)
		}
		if config.ChangeFeed.Queue == "redis" && config.ChangeFeed.RedisEndpoint == "" {
			return fmt.Errorf("changefeed: redis queue requires redis_endpoint")
		}
		if config.ChangeFeed.DrainRate <= 0 {
			return fmt.Errorf("changefeed: drain_rate must be positive")
		}
		if config.ChangeFeed.Sink == "kafka" {
			if len(config.ChangeFeed.Kafka.Brokers) == 0 {
				return fmt.Errorf("changefeed: at least one kafka broker is required")
			}
			if config.ChangeFeed.Kafka.Topic == "" {
				return fmt.Errorf("changefeed: kafka topic is required")
			}
		}
	}

	if !supportedServerModes[config.Server.Mode] {
		return fmt.Errorf("server: unsupported mode %q", config.Server.Mode)
	}

	for name := range config.Tables {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("tables: table name cannot be empty")
		}
	}
	return nil
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envList(key string, dst *[]string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		} else {
			log.Printf("[CONFIG] Ignoring %s%s=%q: %v", EnvPrefix, key, val, err)
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val == "true" || val == "1"
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		} else {
			log.Printf("[CONFIG] Ignoring %s%s=%q: %v", EnvPrefix, key, val, err)
		}
	}
}

// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, Search, Cache, Redis, Kafka, Postgres, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists browser origins allowed to call the API; "*" allows
	// any. Empty disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// IndexConfig controls tokenization and the index builder. ExtraWordChars
// lists non-alphanumeric runes treated as part of a word; SnapshotPath, when
// set, is loaded on start and written on shutdown.
type IndexConfig struct {
	ExtraWordChars   string        `yaml:"extraWordChars"`
	BatchConcurrency int           `yaml:"batchConcurrency"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	FetchAttempts    int           `yaml:"fetchAttempts"`
	SnapshotPath     string        `yaml:"snapshotPath"`
}

// SearchConfig controls query matching, excerpt selection and result limits.
type SearchConfig struct {
	MatchPolicy   string `yaml:"matchPolicy"`
	CountRule     string `yaml:"countRule"`
	MaxExcerpts   int    `yaml:"maxExcerpts"`
	ExcerptWidth  int    `yaml:"excerptWidth"`
	Highlight     bool   `yaml:"highlight"`
	HighlightPre  string `yaml:"highlightPre"`
	HighlightPost string `yaml:"highlightPost"`
	Ellipsis      string `yaml:"ellipsis"`
	DefaultLimit  int    `yaml:"defaultLimit"`
	MaxResults    int    `yaml:"maxResults"`
}

// CacheConfig selects the optional query-result cache backend.
type CacheConfig struct {
	Backend string        `yaml:"backend"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds Kafka broker and topic settings. Ingestion from Kafka is
// disabled when Brokers is empty. Every instance keeps a whole index in
// memory, so each one consumes the full topic under its own group.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	InstanceID    string      `yaml:"instanceId"`
	Topics        KafkaTopics `yaml:"topics"`
}

// GroupID is the consumer group this instance joins: the configured group
// suffixed with the instance id, so replicas never split partitions.
func (k KafkaConfig) GroupID() string {
	if k.InstanceID == "" {
		return k.ConsumerGroup
	}
	return k.ConsumerGroup + "-" + k.InstanceID
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	IndexComplete  string `yaml:"indexComplete"`
}

// PostgresConfig holds PostgreSQL connection parameters for the external
// text source. The source is disabled when Host is empty.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			ExtraWordChars:   "-_",
			BatchConcurrency: 8,
			FetchTimeout:     10 * time.Second,
			FetchAttempts:    3,
		},
		Search: SearchConfig{
			MatchPolicy:   "all",
			CountRule:     "first",
			MaxExcerpts:   3,
			ExcerptWidth:  40,
			HighlightPre:  "**",
			HighlightPost: "**",
			Ellipsis:      "...",
			DefaultLimit:  20,
			MaxResults:    100,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Size:    1024,
			TTL:     60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "docsearch-indexer",
			InstanceID:    hostname(),
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				IndexComplete:  "index-complete",
			},
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate normalises enum spellings and rejects values the engine cannot
// interpret.
func (c *Config) Validate() error {
	c.Search.MatchPolicy = strings.ToLower(strings.TrimSpace(c.Search.MatchPolicy))
	c.Search.CountRule = strings.ToLower(strings.TrimSpace(c.Search.CountRule))
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Search.MatchPolicy {
	case "all", "any":
	default:
		return fmt.Errorf("search.matchPolicy must be \"all\" or \"any\", got %q", c.Search.MatchPolicy)
	}
	switch c.Search.CountRule {
	case "first", "sum":
	default:
		return fmt.Errorf("search.countRule must be \"first\" or \"sum\", got %q", c.Search.CountRule)
	}
	switch c.Cache.Backend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be none, memory or redis, got %q", c.Cache.Backend)
	}
	if c.Search.MaxExcerpts < 0 || c.Search.ExcerptWidth < 0 {
		return fmt.Errorf("search.maxExcerpts and search.excerptWidth must not be negative")
	}
	if c.Search.DefaultLimit < 1 || c.Search.MaxResults < 1 {
		return fmt.Errorf("search.defaultLimit and search.maxResults must be at least 1, got %d and %d",
			c.Search.DefaultLimit, c.Search.MaxResults)
	}
	if c.Index.BatchConcurrency < 1 {
		return fmt.Errorf("index.batchConcurrency must be at least 1, got %d", c.Index.BatchConcurrency)
	}
	return nil
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields. Unparseable numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	envInt("SP_SERVER_PORT", &cfg.Server.Port)
	envList("SP_SERVER_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	envString("SP_INDEX_SNAPSHOT_PATH", &cfg.Index.SnapshotPath)
	envString("SP_INDEX_EXTRA_WORD_CHARS", &cfg.Index.ExtraWordChars)
	envInt("SP_INDEX_BATCH_CONCURRENCY", &cfg.Index.BatchConcurrency)

	envString("SP_SEARCH_MATCH_POLICY", &cfg.Search.MatchPolicy)
	envString("SP_SEARCH_COUNT_RULE", &cfg.Search.CountRule)
	envString("SP_CACHE_BACKEND", &cfg.Cache.Backend)

	envString("SP_REDIS_ADDR", &cfg.Redis.Addr)
	envString("SP_REDIS_PASSWORD", &cfg.Redis.Password)
	envList("SP_KAFKA_BROKERS", &cfg.Kafka.Brokers)
	envString("SP_KAFKA_INSTANCE_ID", &cfg.Kafka.InstanceID)

	envString("SP_POSTGRES_HOST", &cfg.Postgres.Host)
	envInt("SP_POSTGRES_PORT", &cfg.Postgres.Port)
	envString("SP_POSTGRES_DATABASE", &cfg.Postgres.Database)
	envString("SP_POSTGRES_USER", &cfg.Postgres.User)
	envString("SP_POSTGRES_PASSWORD", &cfg.Postgres.Password)

	envString("SP_LOGGING_LEVEL", &cfg.Logging.Level)
	envString("SP_LOGGING_FORMAT", &cfg.Logging.Format)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envList(key string, dst *[]string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

// Package config loads and validates the assistant configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Corpus, Search, Assistant, Session, Redis, Kafka,
// Postgres, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Search    SearchConfig    `yaml:"search"`
	Assistant AssistantConfig `yaml:"assistant"`
	Session   SessionConfig   `yaml:"session"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	CORS      CORSConfig      `yaml:"cors"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Corpus source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// CorpusConfig tells the engine where the segments and the lexicon live.
type CorpusConfig struct {
	Source      string `yaml:"source"`
	CorpusPath  string `yaml:"corpusPath"`
	LexiconPath string `yaml:"lexiconPath"`
	Table       string `yaml:"table"`
}

// SearchConfig controls ranking and conversation limits.
type SearchConfig struct {
	TopK            int `yaml:"topK"`
	SnippetMaxChars int `yaml:"snippetMaxChars"`
	HistoryLimit    int `yaml:"historyLimit"`
	HistoryWindow   int `yaml:"historyWindow"`
	TurnMaxChars    int `yaml:"turnMaxChars"`
}

// AssistantConfig holds the remote generative backend settings.
type AssistantConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"maxRetries"`
	BackoffBase      time.Duration `yaml:"backoffBase"`
	InstructionsPath string        `yaml:"instructionsPath"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// SessionConfig bounds the in-memory session store.
type SessionConfig struct {
	IdleTTL     time.Duration `yaml:"idleTTL"`
	MaxSessions int           `yaml:"maxSessions"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AskEvents string `yaml:"askEvents"`
}

// RedisConfig holds Redis connection and answer-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// RateLimitConfig sets the per-client token bucket.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
	MaxAge       int      `yaml:"maxAge"`
}

// AnalyticsConfig controls ask-event batching and the optional Postgres
// snapshots of the aggregated stats.
type AnalyticsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	Snapshots        bool          `yaml:"snapshots"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	SnapshotRetain   int           `yaml:"snapshotRetain"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
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

// Default returns the built-in configuration, without file or env overrides.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Corpus.Source {
	case SourceFile:
		if c.Corpus.CorpusPath == "" {
			errs = append(errs, errors.New("corpus.corpusPath is required for the file source"))
		}
	case SourcePostgres:
		if c.Corpus.Table == "" {
			errs = append(errs, errors.New("corpus.table is required for the postgres source"))
		}
	default:
		errs = append(errs, fmt.Errorf("corpus.source must be %q or %q, got %q", SourceFile, SourcePostgres, c.Corpus.Source))
	}
	if c.Search.TopK <= 0 {
		errs = append(errs, errors.New("search.topK must be positive"))
	}
	if c.Search.HistoryLimit <= 0 {
		errs = append(errs, errors.New("search.historyLimit must be positive"))
	}
	if c.Assistant.MaxRetries < 0 {
		errs = append(errs, errors.New("assistant.maxRetries must not be negative"))
	}
	if c.Assistant.Timeout <= 0 {
		errs = append(errs, errors.New("assistant.timeout must be positive"))
	}
	return errors.Join(errs...)
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8711,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    160 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Corpus: CorpusConfig{
			Source:      SourceFile,
			CorpusPath:  "data/corpus_segments.json",
			LexiconPath: "data/lexique_enfance.json",
			Table:       "corpus_segments",
		},
		Search: SearchConfig{
			TopK:            3,
			SnippetMaxChars: 400,
			HistoryLimit:    12,
			HistoryWindow:   4,
			TurnMaxChars:    500,
		},
		Assistant: AssistantConfig{
			Endpoint:         "http://localhost:8000/rag-assistant",
			Timeout:          45 * time.Second,
			MaxRetries:       2,
			BackoffBase:      2 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Session: SessionConfig{
			IdleTTL:     30 * time.Minute,
			MaxSessions: 10000,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "iam",
			User:            "iam",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "iam-analytics",
			Topics: KafkaTopics{
				AskEvents: "assistant-ask-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 30,
			Window:   time.Minute,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"https://www.amiens.fr"},
			MaxAge:       86400,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: 5 * time.Minute,
			SnapshotRetain:   288,
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

// applyEnvOverrides reads IAM_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IAM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("IAM_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("IAM_CORPUS_PATH"); v != "" {
		cfg.Corpus.CorpusPath = v
	}
	if v := os.Getenv("IAM_LEXICON_PATH"); v != "" {
		cfg.Corpus.LexiconPath = v
	}
	if v := os.Getenv("IAM_ASSISTANT_ENDPOINT"); v != "" {
		cfg.Assistant.Endpoint = v
	}
	if v := os.Getenv("IAM_ASSISTANT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Assistant.Timeout = d
		}
	}
	if v := os.Getenv("IAM_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("IAM_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("IAM_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("IAM_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("IAM_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("IAM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("IAM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("IAM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("IAM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IAM_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("IAM_CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowOrigins = strings.Split(v, ",")
	}
}

package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloo-solutions/docextract/internal/domain"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "DOCEXTRACT"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogFile   string `envconfig:"LOG_FILE"`

	ModelBaseURL  string        `envconfig:"MODEL_BASE_URL" default:"http://localhost:8000/v1"`
	ModelName     string        `envconfig:"MODEL_NAME" default:"llama-3.1-8b-instruct"`
	ModelAPIKey   string        `envconfig:"MODEL_API_KEY" default:"vllm"`
	ModelTimeout  time.Duration `envconfig:"MODEL_TIMEOUT" default:"60s"`
	ModelJSONMode bool          `envconfig:"MODEL_JSON_MODE" default:"false"`

	Concurrency    int    `envconfig:"CONCURRENCY" default:"18"`
	MaxChunkWords  int    `envconfig:"MAX_CHUNK_WORDS" default:"256"`
	ChunkRetries   int    `envconfig:"CHUNK_RETRIES" default:"0"`
	ExtractionMode string `envconfig:"EXTRACTION_MODE" default:"chunked"`

	DatabaseURL    string `envconfig:"DATABASE_URL"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`

	S3Endpoint       string `envconfig:"S3_ENDPOINT"`
	S3AccessKey      string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket         string `envconfig:"S3_BUCKET" default:"docextract"`
	S3Region         string `envconfig:"S3_REGION" default:"us-east-1"`
	S3UsePathStyle   bool   `envconfig:"S3_USE_PATH_STYLE" default:"true"`
	S3MaxObjectBytes int64  `envconfig:"S3_MAX_OBJECT_BYTES" default:"10485760"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Static bearer keys for the HTTP API; empty leaves the API open
	APIKeys []string `envconfig:"API_KEYS"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
	WorkerBatchSize    int           `envconfig:"WORKER_BATCH_SIZE" default:"4"`
	MaxBodyBytes       int64         `envconfig:"MAX_BODY_BYTES" default:"10485760"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Concurrency <= 0:
		return fmt.Errorf("%w: CONCURRENCY must be positive, got %d", ErrInvalidConfig, c.Concurrency)
	case c.MaxChunkWords <= 0:
		return fmt.Errorf("%w: MAX_CHUNK_WORDS must be positive, got %d", ErrInvalidConfig, c.MaxChunkWords)
	case c.ChunkRetries < 0:
		return fmt.Errorf("%w: CHUNK_RETRIES must not be negative, got %d", ErrInvalidConfig, c.ChunkRetries)
	case !domain.IsValidExtractionMode(domain.ExtractionMode(c.ExtractionMode)):
		return fmt.Errorf("%w: unknown EXTRACTION_MODE %q", ErrInvalidConfig, c.ExtractionMode)
	case c.LogFormat != "json" && c.LogFormat != "text":
		return fmt.Errorf("%w: LOG_FORMAT must be json or text, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

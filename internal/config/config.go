package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/seabridge/pkg/icron"
	"github.com/MimeLyc/seabridge/pkg/log"
)

// Config holds all application configuration.
// Supports environment variables with sensible defaults.
//
// Environment Variables:
// Primary provider (local OpenAI-compatible inference server):
// - PRIMARY_API_URL: endpoint URL (default: http://127.0.0.1:11434/v1)
// - PRIMARY_API_KEY: API key (optional)
// - PRIMARY_MODEL: model name (default: qwen2.5:7b-instruct)
// - PRIMARY_MAX_TOKENS: maximum response tokens (default: 4096)
// - PRIMARY_TEMPERATURE: sampling temperature (default: 0.2)
// - PRIMARY_TIMEOUT: request timeout in seconds (default: 20)
//
// Fallback provider:
// - FALLBACK_LAMBDA_FUNCTION: translator Lambda function name (optional)
// - AWS_REGION: AWS region for Lambda and S3 (optional)
//
// Document jobs:
// - BATCH_API_URL: batch translation service URL (optional)
// - BATCH_API_KEY: batch service bearer token (optional)
// - BATCH_TIMEOUT: batch request timeout in seconds (default: 60)
// - S3_BUCKET: bucket holding translated documents (optional)
// - S3_ENDPOINT_URL: S3-compatible endpoint (optional)
// - SIGNED_URL_TTL: lifetime of re-signed download links (default: 24h)
// - JOBS_DB_PATH: SQLite job store; empty keeps jobs in memory (default: data/jobs.db)
// - POLL_SCHEDULE: job status poll schedule (default: @every 15s)
// - MAX_DOCUMENT_BYTES: largest accepted document (default: 52428800)
//
// Translation limits:
// - MAX_SYNC_CHARS: synchronous translation ceiling in characters (default: 12000)
// - DOC_MAX_CHUNK_SIZE: document chunk size in characters (default: 12000)
// - DOC_CONCURRENCY: chunks translated in parallel (default: 4)
// - SMS_MAX_LENGTH: SMS segment length (default: 160)
// - DEFAULT_TARGET_LANG: target language when a request names none (default: en)
//
// System:
// - HTTP_ADDR: HTTP listen address (default: :8080)
// - LOG_LEVEL: debug, info, warn or error (default: info)
type Config struct {
	Primary   PrimaryConfig   `json:"primary"`
	Fallback  FallbackConfig  `json:"fallback"`
	Jobs      JobsConfig      `json:"jobs"`
	Translate TranslateConfig `json:"translate"`
	HTTP      HTTPConfig      `json:"http"`
	Log       LogConfig       `json:"log"`
}

// PrimaryConfig configures the local OpenAI-compatible provider.
type PrimaryConfig struct {
	APIURL      string  `json:"api_url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

type FallbackConfig struct {
	LambdaFunction string `json:"lambda_function"`
	Region         string `json:"region"`
}

type JobsConfig struct {
	BatchAPIURL      string        `json:"batch_api_url"`
	BatchAPIKey      string        `json:"batch_api_key"`
	BatchTimeout     int           `json:"batch_timeout"`
	Bucket           string        `json:"bucket"`
	EndpointURL      string        `json:"endpoint_url"`
	SignedURLTTL     time.Duration `json:"signed_url_ttl"`
	DBPath           string        `json:"db_path"`
	PollSchedule     string        `json:"poll_schedule"`
	MaxDocumentBytes int64         `json:"max_document_bytes"`
}

// Enabled reports whether a batch provider is configured.
func (c JobsConfig) Enabled() bool {
	return strings.TrimSpace(c.BatchAPIURL) != ""
}

type TranslateConfig struct {
	MaxSyncChars    int `json:"max_sync_chars"`
	DocMaxChunkSize int `json:"doc_max_chunk_size"`
	DocConcurrency  int `json:"doc_concurrency"`
	SMSMaxLength    int `json:"sms_max_length"`

	DefaultTargetLanguage language.Tag `json:"default_target_language"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type LogConfig struct {
	Level string `json:"level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Primary: PrimaryConfig{
			APIURL:      getEnvString("PRIMARY_API_URL", "http://127.0.0.1:11434/v1"),
			APIKey:      getEnvString("PRIMARY_API_KEY", ""),
			Model:       getEnvString("PRIMARY_MODEL", "qwen2.5:7b-instruct"),
			MaxTokens:   getEnvInt("PRIMARY_MAX_TOKENS", 4096),
			Temperature: getEnvFloat("PRIMARY_TEMPERATURE", 0.2),
			Timeout:     getEnvInt("PRIMARY_TIMEOUT", 20),
		},
		Fallback: FallbackConfig{
			LambdaFunction: getEnvString("FALLBACK_LAMBDA_FUNCTION", ""),
			Region:         getEnvString("AWS_REGION", ""),
		},
		Jobs: JobsConfig{
			BatchAPIURL:      getEnvString("BATCH_API_URL", ""),
			BatchAPIKey:      getEnvString("BATCH_API_KEY", ""),
			BatchTimeout:     getEnvInt("BATCH_TIMEOUT", 60),
			Bucket:           getEnvString("S3_BUCKET", ""),
			EndpointURL:      getEnvString("S3_ENDPOINT_URL", ""),
			SignedURLTTL:     getEnvDuration("SIGNED_URL_TTL", 24*time.Hour),
			DBPath:           getEnvString("JOBS_DB_PATH", "data/jobs.db"),
			PollSchedule:     getEnvString("POLL_SCHEDULE", icron.DefaultPollSchedule),
			MaxDocumentBytes: int64(getEnvInt("MAX_DOCUMENT_BYTES", 50<<20)),
		},
		Translate: TranslateConfig{
			MaxSyncChars:    getEnvInt("MAX_SYNC_CHARS", 12000),
			DocMaxChunkSize: getEnvInt("DOC_MAX_CHUNK_SIZE", 12000),
			DocConcurrency:  getEnvInt("DOC_CONCURRENCY", 4),
			SMSMaxLength:    getEnvInt("SMS_MAX_LENGTH", 160),

			DefaultTargetLanguage: getEnvLanguage("DEFAULT_TARGET_LANG", language.English),
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: primary=%s model=%s fallback=%q batch=%q poll=%q",
		config.Primary.APIURL, config.Primary.Model, config.Fallback.LambdaFunction,
		config.Jobs.BatchAPIURL, config.Jobs.PollSchedule)

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if strings.TrimSpace(c.Primary.APIURL) == "" && strings.TrimSpace(c.Fallback.LambdaFunction) == "" {
		return fmt.Errorf("PRIMARY_API_URL or FALLBACK_LAMBDA_FUNCTION is required")
	}
	if _, err := icron.ParseSchedule(c.Jobs.PollSchedule); err != nil {
		return fmt.Errorf("invalid POLL_SCHEDULE: %w", err)
	}
	if c.Translate.SMSMaxLength > 0 && c.Translate.SMSMaxLength < 16 {
		return fmt.Errorf("SMS_MAX_LENGTH must be at least 16")
	}
	if c.Jobs.Enabled() && c.Jobs.MaxDocumentBytes <= 0 {
		return fmt.Errorf("MAX_DOCUMENT_BYTES must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90m") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
	}
	return defaultValue
}

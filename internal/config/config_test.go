package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/seabridge/pkg/icron"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:11434/v1", cfg.Primary.APIURL)
	assert.Equal(t, 20, cfg.Primary.Timeout)
	assert.Equal(t, icron.DefaultPollSchedule, cfg.Jobs.PollSchedule)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.SignedURLTTL)
	assert.Equal(t, int64(50<<20), cfg.Jobs.MaxDocumentBytes)
	assert.Equal(t, 12000, cfg.Translate.MaxSyncChars)
	assert.Equal(t, 160, cfg.Translate.SMSMaxLength)
	assert.Equal(t, language.English, cfg.Translate.DefaultTargetLanguage)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.Jobs.Enabled())
}

func TestNewFromEnv_ReadsEnvironment(t *testing.T) {
	t.Setenv("PRIMARY_MODEL", "llama3")
	t.Setenv("PRIMARY_TEMPERATURE", "0.7")
	t.Setenv("FALLBACK_LAMBDA_FUNCTION", "translator")
	t.Setenv("BATCH_API_URL", "https://batch.example")
	t.Setenv("SIGNED_URL_TTL", "3600")
	t.Setenv("DOC_CONCURRENCY", "not-a-number")
	t.Setenv("DEFAULT_TARGET_LANG", "vi")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "llama3", cfg.Primary.Model)
	assert.InDelta(t, 0.7, cfg.Primary.Temperature, 1e-9)
	assert.Equal(t, "translator", cfg.Fallback.LambdaFunction)
	assert.True(t, cfg.Jobs.Enabled())
	assert.Equal(t, time.Hour, cfg.Jobs.SignedURLTTL)
	assert.Equal(t, 4, cfg.Translate.DocConcurrency)
	assert.Equal(t, language.Vietnamese, cfg.Translate.DefaultTargetLanguage)
}

func TestNewFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"no provider", func(c *Config) { c.Primary.APIURL = ""; c.Fallback.LambdaFunction = "" }},
		{"bad schedule", func(c *Config) { c.Jobs.PollSchedule = "sometimes" }},
		{"tiny sms", func(c *Config) { c.Translate.SMSMaxLength = 8 }},
		{"no document limit", func(c *Config) { c.Jobs.BatchAPIURL = "https://b"; c.Jobs.MaxDocumentBytes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromEnv(tt.opt)
			assert.Error(t, err)
		})
	}
}

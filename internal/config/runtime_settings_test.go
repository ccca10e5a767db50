package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestRuntimeSettings_Validate(t *testing.T) {
	valid := RuntimeSettings{
		PrimaryAPIURL:         "https://example.test/v1",
		PrimaryModel:          "model-test",
		PollSchedule:          "*/30 * * * * *",
		DocMaxChunkSize:       4000,
		DefaultTargetLanguage: "vi",
	}
	require.NoError(t, valid.Validate())
	require.NoError(t, RuntimeSettings{}.Validate())

	invalid := valid
	invalid.PollSchedule = "bad cron"
	require.Error(t, invalid.Validate())

	invalidSize := valid
	invalidSize.DocMaxChunkSize = -1
	require.Error(t, invalidSize.Validate())

	invalidLang := valid
	invalidLang.DefaultTargetLanguage = "not a language"
	require.Error(t, invalidLang.Validate())
}

func TestRuntimeSettingsFile_RoundTrip(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "settings", "runtime.json")
	input := RuntimeSettings{
		PrimaryModel:    "model-test",
		PollSchedule:    "@every 1m",
		DocMaxChunkSize: 8000,
	}

	require.NoError(t, WriteRuntimeSettingsFile(filePath, input))

	got, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, input, got)

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestLoadRuntimeSettingsFile_Missing(t *testing.T) {
	got, err := LoadRuntimeSettingsFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, RuntimeSettings{}, got)
}

func TestLoadRuntimeSettingsFile_RejectsInvalid(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "runtime.json")
	require.NoError(t, os.WriteFile(filePath, []byte(`{"poll_schedule":"never"}`), 0o600))

	_, err := LoadRuntimeSettingsFile(filePath)
	assert.Error(t, err)
}

func TestWithRuntimeSettings_OverridesConfig(t *testing.T) {
	t.Setenv("PRIMARY_API_URL", "https://env.example/v1")
	t.Setenv("PRIMARY_MODEL", "env-model")
	t.Setenv("POLL_SCHEDULE", "@every 30s")

	override := RuntimeSettings{
		PrimaryModel:          "file-model",
		PollSchedule:          "@every 2m",
		DefaultTargetLanguage: "ja",
	}

	cfg, err := NewFromEnv(WithRuntimeSettings(override))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example/v1", cfg.Primary.APIURL)
	assert.Equal(t, "file-model", cfg.Primary.Model)
	assert.Equal(t, "@every 2m", cfg.Jobs.PollSchedule)
	assert.Equal(t, 12000, cfg.Translate.DocMaxChunkSize)
	assert.Equal(t, language.Japanese, cfg.Translate.DefaultTargetLanguage)
}

func TestRuntimeSettingsStore_Update(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "runtime.json")
	store, err := NewRuntimeSettingsStore(filePath, RuntimeSettings{PrimaryModel: "a"})
	require.NoError(t, err)

	got, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, "a", got.PrimaryModel)

	_, err = store.UpdateRuntimeSettings(RuntimeSettings{PollSchedule: "bad"})
	require.Error(t, err)

	updated, err := store.UpdateRuntimeSettings(RuntimeSettings{PrimaryModel: "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", updated.PrimaryModel)

	onDisk, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, updated, onDisk)

	_, err = NewRuntimeSettingsStore("", RuntimeSettings{})
	assert.Error(t, err)
}

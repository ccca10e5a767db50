package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/MimeLyc/seabridge/pkg/icron"
)

const DefaultRuntimeSettingsFile = "config/settings.json"

// RuntimeSettings are operator overrides kept in a JSON file next to the
// environment configuration. Empty fields keep the environment value.
type RuntimeSettings struct {
	PrimaryAPIURL         string `json:"primary_api_url,omitempty"`
	PrimaryModel          string `json:"primary_model,omitempty"`
	PollSchedule          string `json:"poll_schedule,omitempty"`
	DocMaxChunkSize       int    `json:"doc_max_chunk_size,omitempty"`
	DefaultTargetLanguage string `json:"default_target_language,omitempty"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.PollSchedule) != "" {
		if _, err := icron.ParseSchedule(s.PollSchedule); err != nil {
			return fmt.Errorf("invalid poll_schedule: %w", err)
		}
	}
	if s.DocMaxChunkSize < 0 {
		return fmt.Errorf("doc_max_chunk_size must not be negative")
	}
	if strings.TrimSpace(s.DefaultTargetLanguage) != "" {
		if _, err := language.Parse(s.DefaultTargetLanguage); err != nil {
			return fmt.Errorf("invalid default_target_language: %w", err)
		}
	}
	return nil
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		PrimaryAPIURL:         c.Primary.APIURL,
		PrimaryModel:          c.Primary.Model,
		PollSchedule:          c.Jobs.PollSchedule,
		DocMaxChunkSize:       c.Translate.DocMaxChunkSize,
		DefaultTargetLanguage: c.Translate.DefaultTargetLanguage.String(),
	}
}

func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.PrimaryAPIURL) != "" {
			c.Primary.APIURL = settings.PrimaryAPIURL
		}
		if strings.TrimSpace(settings.PrimaryModel) != "" {
			c.Primary.Model = settings.PrimaryModel
		}
		if strings.TrimSpace(settings.PollSchedule) != "" {
			c.Jobs.PollSchedule = settings.PollSchedule
		}
		if settings.DocMaxChunkSize > 0 {
			c.Translate.DocMaxChunkSize = settings.DocMaxChunkSize
		}
		if tag, err := language.Parse(settings.DefaultTargetLanguage); err == nil {
			c.Translate.DefaultTargetLanguage = tag
		}
	}
}

// LoadRuntimeSettingsFile reads path. A missing file yields empty settings.
func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return RuntimeSettings{}, nil
	}
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RuntimeSettingsStore serves and persists runtime settings. Updates are
// written to disk and take effect on the next start.
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmaddaus/sprintboard/internal/model"
)

// EnvPrefix prefixes the environment variables that override settings,
// e.g. SPRINTBOARD_ACCESS_TOKEN.
const EnvPrefix = "SPRINTBOARD_"

// ErrUnknownField is returned when a settings field name is not recognised.
var ErrUnknownField = errors.New("unknown settings field")

// SettingsStore persists the connection settings as a JSON file.
// No validation is applied to values; bad values surface as remote failures.
type SettingsStore struct {
	path string
	mu   sync.Mutex
}

// NewSettingsStore returns a store backed by the file at path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Path returns the backing file path.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load returns the persisted settings merged over the defaults. A persisted
// field wins even when it is the empty string. A missing file yields the
// defaults.
func (s *SettingsStore) Load() (*model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *SettingsStore) load() (*model.Settings, error) {
	v := viper.New()
	defaults := model.DefaultSettings()
	for _, f := range model.SettingsFields {
		val, _ := defaults.Get(f.Key)
		v.SetDefault(f.Key, val)
	}

	if _, err := os.Stat(s.path); err == nil {
		v.SetConfigFile(s.path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("parse settings: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	settings := &model.Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// Save durably persists the full record.
func (s *SettingsStore) Save(settings *model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(settings)
}

func (s *SettingsStore) save(settings *model.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	v := viper.New()
	for _, f := range model.SettingsFields {
		val, _ := settings.Get(f.Key)
		v.Set(f.Key, val)
	}
	v.SetConfigType("json")
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	// The file carries the access token.
	if err := os.Chmod(s.path, 0600); err != nil {
		return fmt.Errorf("chmod settings: %w", err)
	}
	return nil
}

// Set overwrites a single field and persists the whole record immediately.
func (s *SettingsStore) Set(key, value string) (*model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.load()
	if err != nil {
		return nil, err
	}
	if !settings.Set(key, value) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	if err := s.save(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// ApplyEnv returns a copy of settings with SPRINTBOARD_<FIELD> environment
// overrides applied. The result is meant for a single run and is never saved.
func ApplyEnv(settings *model.Settings) *model.Settings {
	out := *settings
	for _, f := range model.SettingsFields {
		if val := os.Getenv(EnvPrefix + strings.ToUpper(f.Key)); val != "" {
			out.Set(f.Key, val)
		}
	}
	return &out
}

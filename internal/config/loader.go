package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thruflo/tracksync/internal/logging"
)

// DefaultFile is the config file looked up when no path is given.
const DefaultFile = "tracksync.yaml"

// Default values for Config.
const (
	DefaultEditorAddress      = "localhost:1338"
	DefaultRetryInterval      = time.Second
	DefaultDialTimeout        = 50 * time.Millisecond
	DefaultPollTimeout        = time.Millisecond
	DefaultMaxMessagesPerTick = 256
	DefaultBPM                = 125.0
	DefaultRowsPerBeat        = 8
	DefaultFrameTarget        = 16 * time.Millisecond
	DefaultTracksDir          = "."
	DefaultRenderEvery        = 1
	DefaultRenderWidth        = 640
	DefaultRenderHeight       = 360
	DefaultLogLevel           = "warn"
)

// DefaultConfig returns a Config with sensible default values and no tracks.
func DefaultConfig() Config {
	return Config{
		Editor: Editor{
			Address:            DefaultEditorAddress,
			RetryInterval:      DefaultRetryInterval,
			DialTimeout:        DefaultDialTimeout,
			PollTimeout:        DefaultPollTimeout,
			MaxMessagesPerTick: DefaultMaxMessagesPerTick,
		},
		Tempo: Tempo{
			BPM:         DefaultBPM,
			RowsPerBeat: DefaultRowsPerBeat,
		},
		Playback: Playback{
			FrameTarget: DefaultFrameTarget,
			TracksDir:   DefaultTracksDir,
		},
		Render: Render{
			Every:  DefaultRenderEvery,
			Width:  DefaultRenderWidth,
			Height: DefaultRenderHeight,
		},
		Log: Log{Level: DefaultLogLevel},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// LoadConfig reads and parses the config file at path. If the file doesn't
// exist, returns the default config. Missing fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML config data over the defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateConfig checks that all config values are valid.
func ValidateConfig(cfg *Config) error {
	if cfg.Editor.Address == "" {
		return ValidationError{Field: "editor.address", Message: "required field is empty"}
	}
	if cfg.Editor.RetryInterval <= 0 {
		return ValidationError{Field: "editor.retry_interval", Message: "must be positive"}
	}
	if cfg.Editor.DialTimeout <= 0 {
		return ValidationError{Field: "editor.dial_timeout", Message: "must be positive"}
	}
	if cfg.Editor.PollTimeout <= 0 {
		return ValidationError{Field: "editor.poll_timeout", Message: "must be positive"}
	}
	if cfg.Editor.MaxMessagesPerTick <= 0 {
		return ValidationError{Field: "editor.max_messages_per_tick", Message: "must be positive"}
	}

	if cfg.Tempo.BPM <= 0 {
		return ValidationError{Field: "tempo.bpm", Message: "must be positive"}
	}
	if cfg.Tempo.RowsPerBeat <= 0 {
		return ValidationError{Field: "tempo.rows_per_beat", Message: "must be positive"}
	}

	seen := make(map[string]bool, len(cfg.Tracks))
	for i, name := range cfg.Tracks {
		field := fmt.Sprintf("tracks[%d]", i)
		if name == "" {
			return ValidationError{Field: field, Message: "track name is empty"}
		}
		if seen[name] {
			return ValidationError{Field: field, Message: fmt.Sprintf("duplicate track name %q", name)}
		}
		seen[name] = true
	}

	if cfg.Playback.FrameTarget <= 0 {
		return ValidationError{Field: "playback.frame_target", Message: "must be positive"}
	}

	if cfg.Render.Every <= 0 {
		return ValidationError{Field: "render.every", Message: "must be positive"}
	}
	if cfg.Render.Width <= 0 || cfg.Render.Height <= 0 {
		return ValidationError{Field: "render.width", Message: "frame size must be positive"}
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return ValidationError{Field: "log.level", Message: err.Error()}
	}

	return nil
}

// LogLevel returns the parsed log level. Call after ValidateConfig.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

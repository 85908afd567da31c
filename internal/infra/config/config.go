// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Control  ControlConfig   `yaml:"control"`
	Player   PlayerConfig    `yaml:"player"`
	Animator AnimatorConfig  `yaml:"animator"`
	Backends []BackendConfig `yaml:"backends" validate:"dive"`
	Metadata MetadataConfig  `yaml:"metadata"`
	Messages MessagesConfig  `yaml:"messages"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Title string      `yaml:"title" default:"Spinbox"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ControlConfig represents the control RPC configuration.
type ControlConfig struct {
	Token    string `yaml:"token" validate:"required_if=Required true"`
	Required bool   `yaml:"required"`
}

// PlayerConfig represents the playback configuration.
type PlayerConfig struct {
	Shuffle        bool     `yaml:"shuffle"`
	Loop           bool     `yaml:"loop"`
	AdvanceDelayMs *int     `yaml:"advance_delay_ms" default:"500" validate:"required,gte=0,lte=10000"`
	PauseOnFailure bool     `yaml:"pause_on_failure"`
	Playlist       []string `yaml:"playlist"`
}

// AnimatorConfig represents the rotation animation configuration.
type AnimatorConfig struct {
	PeriodMs    int `yaml:"period_ms" default:"50" validate:"gte=10,lte=1000"`
	StepDegrees int `yaml:"step_degrees" default:"1" validate:"gte=1,lte=359"`
}

// BackendConfig represents a single playback backend configuration.
type BackendConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=native youtube"`
	Settings map[string]any `yaml:"settings"`
}

// MetadataConfig represents the YouTube title lookup configuration.
// When disabled every YouTube entry keeps the generic title.
type MetadataConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint" default:"https://www.youtube.com/oembed" validate:"url"`
	TimeoutMs int    `yaml:"timeout_ms" default:"3000" validate:"gte=100,lte=30000"`
}

// MessagesConfig represents user-facing notice texts.
type MessagesConfig struct {
	InvalidURL        string `yaml:"invalid_url" default:"Please enter a valid URL"`
	InvalidYouTubeURL string `yaml:"invalid_youtube_url" default:"Invalid YouTube URL"`
	SongAdded         string `yaml:"song_added" default:"Song added to playlist"`
	SongRemoved       string `yaml:"song_removed" default:"Song removed from playlist"`
	PlaybackFailed    string `yaml:"playback_failed" default:"Failed to play audio"`
	PlaylistEmpty     string `yaml:"playlist_empty" default:"Playlist is empty"`
	ShuffleEnabled    string `yaml:"shuffle_enabled" default:"Shuffle enabled"`
	ShuffleDisabled   string `yaml:"shuffle_disabled" default:"Shuffle disabled"`
	LoopEnabled       string `yaml:"loop_enabled" default:"Loop enabled"`
	LoopDisabled      string `yaml:"loop_disabled" default:"Loop disabled"`
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	var cfg Config
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	// Override with environment variables
	c.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(c); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if len(c.Backends) == 0 {
		c.Backends = []BackendConfig{{Type: "native"}, {Type: "youtube"}}
	}

	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPINBOX_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SPINBOX_CONTROL_TOKEN"); v != "" {
		c.Control.Token = v
	}
}

// GetMessage returns the notice text for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "invalid_url":
		return c.Messages.InvalidURL
	case "invalid_youtube_url":
		return c.Messages.InvalidYouTubeURL
	case "song_added":
		return c.Messages.SongAdded
	case "song_removed":
		return c.Messages.SongRemoved
	case "playback_failed":
		return c.Messages.PlaybackFailed
	case "playlist_empty":
		return c.Messages.PlaylistEmpty
	case "shuffle_enabled":
		return c.Messages.ShuffleEnabled
	case "shuffle_disabled":
		return c.Messages.ShuffleDisabled
	case "loop_enabled":
		return c.Messages.LoopEnabled
	case "loop_disabled":
		return c.Messages.LoopDisabled
	default:
		return code
	}
}

// AdvanceDelay returns the wait between a natural end and the next song.
func (c *Config) AdvanceDelay() time.Duration {
	if c.Player.AdvanceDelayMs == nil {
		return 0
	}
	return time.Duration(*c.Player.AdvanceDelayMs) * time.Millisecond
}

// MetadataTimeout returns the limit for a single title lookup.
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Metadata.TimeoutMs) * time.Millisecond
}

// AnimatorPeriod returns the rotation tick period.
func (c *Config) AnimatorPeriod() time.Duration {
	return time.Duration(c.Animator.PeriodMs) * time.Millisecond
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	// Each backend type may appear once
	seen := make(map[string]bool)
	for i, b := range c.Backends {
		if seen[b.Type] {
			return errors.Newf("duplicate backend type: %s (backend index %d)", b.Type, i)
		}
		seen[b.Type] = true
	}

	return nil
}

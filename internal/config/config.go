// Package config loads the rradio configuration document: default values,
// then a TOML decode over them, then validation, with SaveToFile able to
// write out a fresh default document when none exists yet.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Notifications carries the optional notification sound URIs played around
// station changes, playlist boundaries, and errors.
type Notifications struct {
	Ready          string `toml:"ready"`
	PlaylistPrefix string `toml:"playlist_prefix"`
	PlaylistSuffix string `toml:"playlist_suffix"`
	Error          string `toml:"error"`
}

// Config is the recognized option set of the configuration document
// (config.toml unless RRADIO_CONFIG_PATH names another file).
type Config struct {
	StationsDirectory string `toml:"stations_directory"`

	InputTimeout Duration `toml:"input_timeout"`

	InitialVolume int `toml:"initial_volume"`
	VolumeOffset  int `toml:"volume_offset"`

	BufferingDuration              Duration `toml:"buffering_duration"`
	PauseBeforePlayingIncrement    Duration `toml:"pause_before_playing_increment"`
	MaxPauseBeforePlaying          Duration `toml:"max_pause_before_playing"`
	SmartGotoPreviousTrackDuration Duration `toml:"smart_goto_previous_track_duration"`

	PlayErrorSoundOnPipelineError bool `toml:"play_error_sound_on_gstreamer_error"`

	Notifications Notifications `toml:"Notifications"`

	CD   CDConfig   `toml:"CD"`
	USB  USBConfig  `toml:"USB"`
	Ping PingConfig `toml:"ping"`
	Web  WebConfig  `toml:"web"`
	TCP  TCPConfig  `toml:"TCP"`
}

// CDConfig is the feature-gated CD device section.
type CDConfig struct {
	Enabled bool   `toml:"enabled"`
	Device  string `toml:"device"`
}

// USBConfig is the feature-gated USB device section.
type USBConfig struct {
	Enabled    bool   `toml:"enabled"`
	MountPoint string `toml:"mount_point"`
}

// PingConfig controls the (externally-owned) reachability prober's target;
// carried here only so the config document round-trips.
type PingConfig struct {
	Enabled bool   `toml:"enabled"`
	Target  string `toml:"target"`
}

// WebConfig is the feature-gated HTTP/web port section. Its websocket
// sibling is mounted on the same address under /api.
type WebConfig struct {
	Enabled   bool   `toml:"enabled"`
	Address   string `toml:"address"`
	StaticDir string `toml:"static_dir"`
}

// TCPConfig is the feature-gated binary-framed TCP port section.
type TCPConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// Duration wraps time.Duration with TOML decoding of human-readable strings
// ("2s", "500ms"), matching the original's humantime_serde usage without
// pulling in a third dependency: BurntSushi/toml calls UnmarshalText for any
// type that implements encoding.TextUnmarshaler, which is the supported,
// idiomatic extension point for this codec.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Default returns the configuration defaults used when no config file exists
// yet.
func Default() *Config {
	return &Config{
		StationsDirectory:              "stations",
		InputTimeout:                   Duration(2 * time.Second),
		InitialVolume:                  70,
		VolumeOffset:                   5,
		BufferingDuration:              Duration(2 * time.Second),
		PauseBeforePlayingIncrement:    Duration(1 * time.Second),
		MaxPauseBeforePlaying:          Duration(5 * time.Second),
		SmartGotoPreviousTrackDuration: Duration(2 * time.Second),
		PlayErrorSoundOnPipelineError:  true,
		Web: WebConfig{
			Enabled: true,
			Address: "0.0.0.0:8000",
		},
		TCP: TCPConfig{
			Enabled: true,
			Address: "0.0.0.0:8001",
		},
	}
}

// Load reads and decodes the document at path, falling back to defaults and
// writing them out if the file doesn't exist yet — mirroring LoadConfig's
// create-default-on-first-run behaviour.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cfg.SaveToFile(path); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes cfg to path as TOML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(c)
}

// Validate checks invariants that must hold before the controller starts.
func (c *Config) Validate() error {
	if c.StationsDirectory == "" {
		return fmt.Errorf("stations_directory cannot be empty")
	}
	if c.InitialVolume < 0 || c.InitialVolume > 100 {
		return fmt.Errorf("initial_volume must be within 0..100, got %d", c.InitialVolume)
	}
	if c.MaxPauseBeforePlaying.Duration() < c.PauseBeforePlayingIncrement.Duration() {
		return fmt.Errorf("max_pause_before_playing must be >= pause_before_playing_increment")
	}
	return nil
}

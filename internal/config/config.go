// Package config provides configuration for voicebridge commands.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alwell-kevin/voicebridge/pkg/audioio"
	"github.com/alwell-kevin/voicebridge/pkg/bridge"
)

// Defaults.
const (
	DefaultStatusAddr = ":8090"
	DefaultLogLevel   = "info"
)

// SessionConfig holds the remote session settings.
type SessionConfig struct {
	// Model overrides the default realtime model.
	Model string `yaml:"model"`

	// Voice is the TTS voice.
	Voice string `yaml:"voice"`

	// Instructions is the system instruction for the agent.
	Instructions string `yaml:"instructions"`
}

// WebConfig holds the status server settings.
type WebConfig struct {
	// Addr is the listen address for the status server.
	Addr string `yaml:"addr"`

	// Disabled turns the status server off.
	Disabled bool `yaml:"disabled"`
}

// Config is the top-level configuration.
type Config struct {
	Audio    audioio.Config
	Bridge   bridge.Config
	Session  SessionConfig
	Web      WebConfig
	LogLevel string
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Audio:    audioio.DefaultConfig(),
		Bridge:   bridge.DefaultConfig(),
		Web:      WebConfig{Addr: DefaultStatusAddr},
		LogLevel: DefaultLogLevel,
	}
}

// File schema. Pointer fields distinguish "absent" from "zero" so file
// values overlay defaults instead of clobbering them. Durations are
// strings ("100ms", "2s") because yaml.v3 has no native time.Duration
// decoding.

type fileAudio struct {
	Backend         *string `yaml:"backend"`
	SampleRate      *int    `yaml:"sample_rate"`
	Channels        *int    `yaml:"channels"`
	ChunkDuration   *string `yaml:"chunk_duration"`
	Device          *string `yaml:"device"`
	CaptureCommand  *string `yaml:"capture_command"`
	PlaybackCommand *string `yaml:"playback_command"`
}

type fileBackoff struct {
	Initial     *string  `yaml:"initial"`
	Max         *string  `yaml:"max"`
	Multiplier  *float64 `yaml:"multiplier"`
	MaxAttempts *int     `yaml:"max_attempts"`
}

type fileBridge struct {
	FrameSize        *int        `yaml:"frame_size"`
	SilenceThreshold *float64    `yaml:"silence_threshold"`
	SilenceChunks    *int        `yaml:"silence_chunks"`
	Backoff          fileBackoff `yaml:"backoff"`
}

type fileConfig struct {
	Audio    fileAudio     `yaml:"audio"`
	Bridge   fileBridge    `yaml:"bridge"`
	Session  SessionConfig `yaml:"session"`
	Web      WebConfig     `yaml:"web"`
	LogLevel *string       `yaml:"log_level"`
}

// Load reads configuration from path, applies environment overrides and
// validates the result. An empty path or missing file yields defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else {
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
			if err := fc.apply(&cfg); err != nil {
				return cfg, err
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// apply overlays file values on top of defaults.
func (fc *fileConfig) apply(cfg *Config) error {
	a := fc.Audio
	if a.Backend != nil {
		cfg.Audio.Backend = audioio.Backend(*a.Backend)
	}
	if a.SampleRate != nil {
		cfg.Audio.SampleRate = *a.SampleRate
	}
	if a.Channels != nil {
		cfg.Audio.Channels = *a.Channels
	}
	if a.ChunkDuration != nil {
		d, err := time.ParseDuration(*a.ChunkDuration)
		if err != nil {
			return fmt.Errorf("audio.chunk_duration: %w", err)
		}
		cfg.Audio.ChunkDuration = d
	}
	if a.Device != nil {
		cfg.Audio.Device = *a.Device
	}
	if a.CaptureCommand != nil {
		cfg.Audio.CaptureCommand = *a.CaptureCommand
	}
	if a.PlaybackCommand != nil {
		cfg.Audio.PlaybackCommand = *a.PlaybackCommand
	}

	b := fc.Bridge
	if b.FrameSize != nil {
		cfg.Bridge.FrameSize = *b.FrameSize
	}
	if b.SilenceThreshold != nil {
		cfg.Bridge.SilenceThreshold = *b.SilenceThreshold
	}
	if b.SilenceChunks != nil {
		cfg.Bridge.SilenceChunks = *b.SilenceChunks
	}
	if b.Backoff.Initial != nil {
		d, err := time.ParseDuration(*b.Backoff.Initial)
		if err != nil {
			return fmt.Errorf("bridge.backoff.initial: %w", err)
		}
		cfg.Bridge.Backoff.Initial = d
	}
	if b.Backoff.Max != nil {
		d, err := time.ParseDuration(*b.Backoff.Max)
		if err != nil {
			return fmt.Errorf("bridge.backoff.max: %w", err)
		}
		cfg.Bridge.Backoff.Max = d
	}
	if b.Backoff.Multiplier != nil {
		cfg.Bridge.Backoff.Multiplier = *b.Backoff.Multiplier
	}
	if b.Backoff.MaxAttempts != nil {
		cfg.Bridge.Backoff.MaxAttempts = *b.Backoff.MaxAttempts
	}

	cfg.Session = fc.Session
	if fc.Web.Addr != "" {
		cfg.Web.Addr = fc.Web.Addr
	}
	cfg.Web.Disabled = fc.Web.Disabled
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}

	return nil
}

// applyEnv overlays environment variables on top of file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("VOICEBRIDGE_AUDIO_BACKEND"); v != "" {
		cfg.Audio.Backend = audioio.Backend(v)
	}
	if v := os.Getenv("VOICEBRIDGE_AUDIO_DEVICE"); v != "" {
		cfg.Audio.Device = v
	}
	if v := os.Getenv("VOICEBRIDGE_STATUS_ADDR"); v != "" {
		cfg.Web.Addr = v
	}
	if v := os.Getenv("VOICEBRIDGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VOICEBRIDGE_VOICE"); v != "" {
		cfg.Session.Voice = v
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Bridge.Validate(); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	return nil
}

// APIKey returns the OpenAI API key from OPENAI_API_KEY env var.
// Falls back to the empty string if not set.
func APIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// APIKeyRequired returns the OpenAI API key from OPENAI_API_KEY env var.
// Exits if not set.
func APIKeyRequired() string {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: OPENAI_API_KEY environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: OPENAI_API_KEY=sk-... voicebridge")
		os.Exit(1)
	}
	return key
}

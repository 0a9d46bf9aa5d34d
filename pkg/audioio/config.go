// Package audioio provides audio capture and playback for the voice bridge.
//
// This package supports multiple backends:
//   - Exec - spawns arecord/aplay-style helper processes and moves raw
//     PCM16 over their stdio pipes. Production use on Linux hosts.
//   - Mock - synthetic audio for CI/testing without hardware.
//
// The backend is selected automatically based on platform, or can be
// explicitly specified via configuration.
//
// Besides the device adapters the package carries the stream plumbing the
// bridge needs: FrameBuffer reassembles arbitrary capture chunks into
// fixed-size protocol frames, and SilenceDetector turns sustained low
// energy into a discrete end-of-turn signal.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendExec uses external capture/playback helper processes.
	BackendExec Backend = "exec"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto" (selects best available for platform)
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 24000 (what the realtime session expects)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// ChunkDuration is the size of capture/playback buffers.
	// Default: 100ms (2400 samples at 24kHz)
	ChunkDuration time.Duration `yaml:"chunk_duration" json:"chunk_duration"`

	// Device is the platform-specific device identifier.
	// For the exec backend this is passed to the helper process
	// (e.g. ALSA "hw:0,0", "default", "plughw:1,0").
	Device string `yaml:"device" json:"device"`

	// CaptureCommand overrides the capture helper binary for the exec
	// backend. Default: "arecord".
	CaptureCommand string `yaml:"capture_command" json:"capture_command"`

	// PlaybackCommand overrides the playback helper binary for the exec
	// backend. Default: "aplay".
	PlaybackCommand string `yaml:"playback_command" json:"playback_command"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendAuto,
		SampleRate:    24000,
		Channels:      1,
		ChunkDuration: 100 * time.Millisecond,
		Device:        "", // Use system default
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %v", c.ChunkDuration)
	}
	return nil
}

// ChunkSize returns the number of samples per capture chunk.
func (c *Config) ChunkSize() int {
	return int(float64(c.SampleRate) * c.ChunkDuration.Seconds())
}

// ChunkBytes returns the size of a capture chunk in bytes (int16 samples).
func (c *Config) ChunkBytes() int {
	return c.ChunkSize() * c.Channels * 2
}

// Package bridge connects a local audio device to a remote realtime
// session. Capture chunks are reassembled into fixed-size frames and
// streamed upward; sustained silence closes the user's turn; completed
// response items are played back through a per-turn output stream.
package bridge

import (
	"fmt"
	"time"

	"github.com/alwell-kevin/voicebridge/pkg/audioio"
	"github.com/alwell-kevin/voicebridge/pkg/session"
)

// FrameSize is the protocol frame size in bytes: 0.1s of PCM16 mono at
// 24kHz.
const FrameSize = 4800

// BackoffConfig controls session reconnection.
type BackoffConfig struct {
	// Initial is the delay before the first retry.
	Initial time.Duration `yaml:"initial" json:"initial"`

	// Max caps the delay between retries.
	Max time.Duration `yaml:"max" json:"max"`

	// Multiplier grows the delay after each failed attempt.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// MaxAttempts bounds consecutive failed attempts before the bridge
	// gives up. Zero means retry forever.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// DefaultBackoffConfig returns backoff defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
	}
}

// Next returns the delay after the given delay, capped at Max.
func (b BackoffConfig) Next(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * b.Multiplier)
	if next > b.Max {
		next = b.Max
	}
	return next
}

// Config holds bridge configuration.
type Config struct {
	// FrameSize is the upstream frame size in bytes.
	// Default: 4800 (0.1s of PCM16 mono at 24kHz)
	FrameSize int `yaml:"frame_size" json:"frame_size"`

	// SessionSampleRate is the PCM16 sample rate the remote session
	// speaks. Capture chunks at other rates are resampled before
	// forwarding, and response audio is resampled to the device rate.
	SessionSampleRate int `yaml:"-" json:"session_sample_rate"`

	// SilenceThreshold is the normalized RMS below which a capture
	// chunk counts as quiet.
	SilenceThreshold float64 `yaml:"silence_threshold" json:"silence_threshold"`

	// SilenceChunks is the number of consecutive quiet chunks that end
	// the user's turn.
	SilenceChunks int `yaml:"silence_chunks" json:"silence_chunks"`

	// Backoff controls session reconnection.
	Backoff BackoffConfig `yaml:"backoff" json:"backoff"`

	// Session configures the remote session after each connect.
	Session session.SessionOptions `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FrameSize:         FrameSize,
		SessionSampleRate: session.DefaultSampleRate,
		SilenceThreshold:  audioio.DefaultSilenceThreshold,
		SilenceChunks:     audioio.DefaultQuietChunks,
		Backoff:           DefaultBackoffConfig(),
		Session:           session.DefaultSessionOptions(),
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame_size must be positive, got %d", c.FrameSize)
	}
	if c.SessionSampleRate <= 0 {
		return fmt.Errorf("session sample rate must be positive, got %d", c.SessionSampleRate)
	}
	if c.SilenceChunks <= 0 {
		return fmt.Errorf("silence_chunks must be positive, got %d", c.SilenceChunks)
	}
	if c.Backoff.Initial <= 0 {
		return fmt.Errorf("backoff initial must be positive, got %v", c.Backoff.Initial)
	}
	if c.Backoff.Multiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1, got %v", c.Backoff.Multiplier)
	}
	return nil
}

// Package session maintains a realtime conversational session with a
// remote voice service over WebSocket. Audio frames go up, completed
// response items come back down as discrete events.
package session

import (
	"context"
	"time"
)

// State represents the session connection state.
type State int

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota
	// StateConnecting indicates connection is being established.
	StateConnecting
	// StateConnected indicates an active connection.
	StateConnected
)

// String returns a human-readable connection state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// EventKind identifies the type of a session event.
type EventKind int

const (
	// EventSessionCreated fires once after the remote service accepts
	// the connection and the session is ready for configuration.
	EventSessionCreated EventKind = iota

	// EventItemCompleted fires when a response item finishes. The event
	// carries the item's complete audio and transcript; partial deltas
	// are accumulated internally and never surface.
	EventItemCompleted

	// EventError carries a non-fatal error reported by the remote
	// service. Transport failures go to the error callback instead.
	EventError
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	switch k {
	case EventSessionCreated:
		return "session_created"
	case EventItemCompleted:
		return "item_completed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a discrete occurrence on the session.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// ItemID is the remote identifier of the response item, if any.
	ItemID string

	// Role is who produced the item ("assistant", "user").
	Role string

	// Audio is the item's complete PCM16 audio. May be empty for
	// text-only items; callers must not assume audio is present.
	Audio []byte

	// Transcript is the item's complete transcript text, if available.
	Transcript string

	// Err is the error payload for EventError events.
	Err error
}

// SessionOptions configures the remote session after connecting.
type SessionOptions struct {
	// Instructions is the system instruction for the agent.
	Instructions string

	// Voice is the TTS voice to use.
	Voice string

	// Temperature controls response randomness (0.0-1.0).
	Temperature float64

	// MaxResponseTokens limits response length.
	MaxResponseTokens int
}

// DefaultSessionOptions returns SessionOptions with sensible defaults.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		Temperature:       0.8,
		MaxResponseTokens: 4096,
	}
}

// Metrics tracks connection and usage statistics.
type Metrics struct {
	// ConnectionTime is when the connection was established.
	ConnectionTime time.Time

	// MessagesSent is the total messages sent.
	MessagesSent int64

	// MessagesReceived is the total messages received.
	MessagesReceived int64

	// AudioBytesSent is the total audio bytes sent.
	AudioBytesSent int64

	// AudioBytesReceived is the total audio bytes received.
	AudioBytesReceived int64
}

// Session is the interface for realtime conversational sessions.
// Implementations handle the WebSocket connection and message processing.
//
// Turn-taking is driven entirely by the caller: AppendAudio streams
// capture frames upward without triggering a response, and CreateResponse
// closes the user's turn and asks the service to respond.
type Session interface {
	// Connect establishes the connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// IsConnected returns true if connected.
	IsConnected() bool

	// State returns the current connection state.
	State() State

	// ConfigureSession sets up the remote session. Must be called after
	// Connect; the service applies defaults until then.
	ConfigureSession(opts SessionOptions) error

	// AppendAudio streams one audio frame to the session's input buffer.
	AppendAudio(frame []byte) error

	// CreateResponse commits the input buffer and requests a response.
	CreateResponse() error

	// CancelResponse interrupts the in-flight response, if any.
	CancelResponse() error

	// OnEvent sets the event callback. Events are delivered from the
	// session's read goroutine; the callback must not block.
	OnEvent(fn func(Event))

	// OnError sets the callback for fatal transport errors. After it
	// fires the session is disconnected and must be re-established.
	OnError(fn func(err error))
}

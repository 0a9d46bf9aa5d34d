package session

import (
	"context"
	"errors"
	"testing"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventSessionCreated, "session_created"},
		{EventItemCompleted, "item_completed"},
		{EventError, "error"},
		{EventKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("EventKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewConnectionError("read failed", errors.New("eof"), true)) {
		t.Error("retryable connection error reported as not retryable")
	}
	if IsRetryable(NewConnectionError("auth failed", nil, false)) {
		t.Error("non-retryable connection error reported as retryable")
	}
	if !IsRetryable(NewAPIError(500, "", "server error")) {
		t.Error("HTTP 500 reported as not retryable")
	}
	if !IsRetryable(NewAPIError(429, "", "slow down")) {
		t.Error("HTTP 429 reported as not retryable")
	}
	if IsRetryable(NewAPIError(400, "", "bad request")) {
		t.Error("HTTP 400 reported as retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain error reported as retryable")
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(ErrRateLimited) {
		t.Error("ErrRateLimited not detected")
	}
	if !IsRateLimited(NewAPIError(429, "", "slow down")) {
		t.Error("HTTP 429 not detected as rate limited")
	}
	if IsRateLimited(NewAPIError(500, "", "boom")) {
		t.Error("HTTP 500 detected as rate limited")
	}
}

func TestMockConnectLifecycle(t *testing.T) {
	m := NewMock()

	if m.IsConnected() {
		t.Error("new mock reports connected")
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !m.IsConnected() {
		t.Error("mock not connected after Connect")
	}
	if m.State() != StateConnected {
		t.Errorf("state = %v, want connected", m.State())
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.IsConnected() {
		t.Error("mock still connected after Close")
	}
}

func TestMockScriptedDialErrors(t *testing.T) {
	m := NewMock()
	dialErr := NewConnectionError("dial failed", nil, true)
	m.DialErrs = []error{dialErr, dialErr}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := m.Connect(ctx); err == nil {
			t.Fatalf("Connect %d succeeded, want scripted failure", i+1)
		}
	}
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect after scripted failures: %v", err)
	}
	if m.Attempts() != 3 {
		t.Errorf("attempts = %d, want 3", m.Attempts())
	}
}

func TestMockCapturesAudioAndResponses(t *testing.T) {
	m := NewMock()
	_ = m.Connect(context.Background())

	frame := []byte{1, 2, 3}
	if err := m.AppendAudio(frame); err != nil {
		t.Fatalf("AppendAudio: %v", err)
	}
	frame[0] = 9 // Mock must have copied the frame.

	frames := m.SentFrames()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0][0] != 1 {
		t.Error("mock did not copy the appended frame")
	}

	if err := m.CreateResponse(); err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}
	if m.Responses() != 1 {
		t.Errorf("responses = %d, want 1", m.Responses())
	}
}

func TestMockFailWithDisconnects(t *testing.T) {
	m := NewMock()
	_ = m.Connect(context.Background())

	var got error
	m.OnError(func(err error) { got = err })

	cause := NewConnectionError("read failed", errors.New("eof"), true)
	m.FailWith(cause)

	if got != cause {
		t.Errorf("error callback got %v, want %v", got, cause)
	}
	if m.IsConnected() {
		t.Error("mock still connected after FailWith")
	}
	if err := m.AppendAudio([]byte{0}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("AppendAudio after failure = %v, want ErrNotConnected", err)
	}
}

func TestMockDeliverEvent(t *testing.T) {
	m := NewMock()

	var events []Event
	m.OnEvent(func(ev Event) { events = append(events, ev) })

	m.DeliverEvent(Event{Kind: EventItemCompleted, ItemID: "x", Audio: []byte{1}})

	if len(events) != 1 || events[0].ItemID != "x" {
		t.Errorf("events = %+v, want one item x", events)
	}
}

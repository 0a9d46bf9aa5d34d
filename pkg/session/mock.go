package session

import (
	"context"
	"sync"
)

// Mock is a mock implementation of Session for testing.
type Mock struct {
	mu sync.RWMutex

	// State
	connected bool
	state     State

	// Callbacks
	onEvent func(Event)
	onError func(err error)

	// Configurable behavior
	ConnectFunc          func(ctx context.Context) error
	CloseFunc            func() error
	AppendAudioFunc      func(frame []byte) error
	CreateResponseFunc   func() error
	ConfigureSessionFunc func(opts SessionOptions) error
	CancelResponseFunc   func() error

	// DialErrs are returned by successive Connect calls before the
	// default behavior resumes. Lets tests script a flaky service.
	DialErrs []error

	// Captured calls for assertions
	AudioSent       [][]byte
	ResponseCount   int
	SessionOptions  *SessionOptions
	CancelCalled    bool
	ConnectAttempts int
}

// NewMock creates a new Mock session.
func NewMock() *Mock {
	return &Mock{}
}

// Connect implements Session.
func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.ConnectAttempts++
	var scripted error
	if len(m.DialErrs) > 0 {
		scripted = m.DialErrs[0]
		m.DialErrs = m.DialErrs[1:]
	}
	m.mu.Unlock()

	if scripted != nil {
		return scripted
	}
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	m.state = StateConnected
	return nil
}

// Close implements Session.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.state = StateDisconnected
	return nil
}

// IsConnected implements Session.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// State implements Session.
func (m *Mock) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// AppendAudio implements Session.
func (m *Mock) AppendAudio(frame []byte) error {
	if m.AppendAudioFunc != nil {
		return m.AppendAudioFunc(frame)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.AudioSent = append(m.AudioSent, cp)
	return nil
}

// CreateResponse implements Session.
func (m *Mock) CreateResponse() error {
	if m.CreateResponseFunc != nil {
		return m.CreateResponseFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.ResponseCount++
	return nil
}

// CancelResponse implements Session.
func (m *Mock) CancelResponse() error {
	if m.CancelResponseFunc != nil {
		return m.CancelResponseFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.CancelCalled = true
	return nil
}

// ConfigureSession implements Session.
func (m *Mock) ConfigureSession(opts SessionOptions) error {
	if m.ConfigureSessionFunc != nil {
		return m.ConfigureSessionFunc(opts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionOptions = &opts
	return nil
}

// OnEvent implements Session.
func (m *Mock) OnEvent(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvent = fn
}

// OnError implements Session.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// Test helpers

// DeliverEvent triggers the OnEvent callback with the given event.
func (m *Mock) DeliverEvent(ev Event) {
	m.mu.RLock()
	fn := m.onEvent
	m.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

// FailWith triggers the OnError callback and marks the session
// disconnected, as a real transport failure would.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	m.connected = false
	m.state = StateDisconnected
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// SentFrames returns a copy of the audio frames appended so far.
func (m *Mock) SentFrames() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.AudioSent))
	copy(out, m.AudioSent)
	return out
}

// Responses returns the number of CreateResponse calls.
func (m *Mock) Responses() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ResponseCount
}

// Attempts returns the number of Connect calls.
func (m *Mock) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConnectAttempts
}

// Reset clears all captured data.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AudioSent = nil
	m.SessionOptions = nil
	m.ResponseCount = 0
	m.CancelCalled = false
	m.ConnectAttempts = 0
	m.DialErrs = nil
}

// Ensure Mock implements Session.
var _ Session = (*Mock)(nil)

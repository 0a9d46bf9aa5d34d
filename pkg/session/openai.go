package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	openAIRealtimeURL = "wss://api.openai.com/v1/realtime"
	openAIModel       = "gpt-4o-realtime-preview-2024-12-17"
)

// pendingItem accumulates the streamed deltas of one response item until
// the service marks it done.
type pendingItem struct {
	role       string
	audio      bytes.Buffer
	transcript strings.Builder
}

// OpenAI implements Session for the OpenAI Realtime API.
//
// The service streams response audio as deltas; OpenAI buffers them per
// item and surfaces one EventItemCompleted with the whole turn's audio.
// Turn detection is disabled on the server so that the caller decides
// when a turn ends via CreateResponse.
type OpenAI struct {
	config *Config
	logger *slog.Logger

	mu           sync.RWMutex
	conn         *websocket.Conn
	state        State
	sessionReady bool
	pending      map[string]*pendingItem
	cancelCtx    context.CancelFunc

	// Callbacks
	onEvent func(Event)
	onError func(err error)

	// Metrics
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	audioBytesSent   atomic.Int64
	audioBytesRecv   atomic.Int64
}

// NewOpenAI creates a new OpenAI Realtime session.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Model = openAIModel
	cfg.SampleRate = DefaultSampleRate
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Voice == "" {
		cfg.Voice = VoiceShimmer
	}

	return &OpenAI{
		config:  cfg,
		logger:  cfg.Logger.With("component", "session.openai"),
		state:   StateDisconnected,
		pending: make(map[string]*pendingItem),
	}, nil
}

// Connect establishes the WebSocket connection to OpenAI.
func (o *OpenAI) Connect(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateConnected {
		o.mu.Unlock()
		return ErrAlreadyConnected
	}
	o.state = StateConnecting
	o.mu.Unlock()

	baseURL := o.config.BaseURL
	if baseURL == "" {
		baseURL = openAIRealtimeURL
	}
	url := fmt.Sprintf("%s?model=%s", baseURL, o.config.Model)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+o.config.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{
		HandshakeTimeout: o.config.Timeout,
	}

	o.logger.Info("connecting to OpenAI Realtime API",
		"model", o.config.Model,
	)

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		o.mu.Lock()
		o.state = StateDisconnected
		o.mu.Unlock()
		if resp != nil {
			return NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return NewConnectionError("dial failed", err, true)
	}

	// Create cancellation context
	msgCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.conn = conn
	o.state = StateConnected
	o.cancelCtx = cancel
	o.pending = make(map[string]*pendingItem)
	o.mu.Unlock()

	// Start message handler
	go o.handleMessages(msgCtx)

	o.logger.Info("connected to OpenAI Realtime API")

	return nil
}

// Close gracefully closes the connection.
func (o *OpenAI) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateDisconnected {
		return nil
	}

	if o.cancelCtx != nil {
		o.cancelCtx()
	}

	if o.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = o.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		o.conn.Close()
		o.conn = nil
	}

	o.state = StateDisconnected
	o.sessionReady = false
	o.pending = make(map[string]*pendingItem)
	o.logger.Info("disconnected from OpenAI Realtime API")

	return nil
}

// IsConnected returns true if connected.
func (o *OpenAI) IsConnected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state == StateConnected
}

// State returns the current connection state.
func (o *OpenAI) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// AppendAudio streams one audio frame to the session's input buffer.
// The frame is not committed; CreateResponse closes the turn.
func (o *OpenAI) AppendAudio(frame []byte) error {
	o.mu.RLock()
	conn := o.conn
	state := o.state
	o.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	encoded := base64.StdEncoding.EncodeToString(frame)

	msg := map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": encoded,
	}

	o.mu.Lock()
	err := conn.WriteJSON(msg)
	o.mu.Unlock()

	if err != nil {
		return NewConnectionError("append audio failed", err, true)
	}

	o.messagesSent.Add(1)
	o.audioBytesSent.Add(int64(len(frame)))
	return nil
}

// CreateResponse commits the input buffer and requests a response.
func (o *OpenAI) CreateResponse() error {
	o.mu.RLock()
	conn := o.conn
	state := o.state
	o.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	commitMsg := map[string]string{"type": "input_audio_buffer.commit"}
	createMsg := map[string]string{"type": "response.create"}

	o.mu.Lock()
	err := conn.WriteJSON(commitMsg)
	if err == nil {
		err = conn.WriteJSON(createMsg)
	}
	o.mu.Unlock()

	if err != nil {
		return NewConnectionError("create response failed", err, true)
	}

	o.messagesSent.Add(2)
	o.logger.Debug("response requested")
	return nil
}

// CancelResponse interrupts the current response.
func (o *OpenAI) CancelResponse() error {
	o.mu.RLock()
	conn := o.conn
	state := o.state
	o.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	msg := map[string]string{"type": "response.cancel"}

	o.mu.Lock()
	err := conn.WriteJSON(msg)
	o.mu.Unlock()

	if err != nil {
		return NewConnectionError("cancel response failed", err, true)
	}

	o.messagesSent.Add(1)
	return nil
}

// OnEvent sets the event callback.
func (o *OpenAI) OnEvent(fn func(Event)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEvent = fn
}

// OnError sets the error callback.
func (o *OpenAI) OnError(fn func(err error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onError = fn
}

// ConfigureSession configures the remote session. Server-side turn
// detection is switched off; the caller's silence detection drives turns.
func (o *OpenAI) ConfigureSession(opts SessionOptions) error {
	o.mu.RLock()
	conn := o.conn
	state := o.state
	o.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	voice := opts.Voice
	if voice == "" {
		voice = o.config.Voice
	}
	instructions := opts.Instructions
	if instructions == "" {
		instructions = o.config.Instructions
	}

	msg := map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":          []string{"text", "audio"},
			"instructions":        instructions,
			"voice":               voice,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
			"turn_detection": nil,
			"temperature":    opts.Temperature,
		},
	}

	o.mu.Lock()
	err := conn.WriteJSON(msg)
	o.mu.Unlock()

	if err != nil {
		return NewConnectionError("configure session failed", err, true)
	}

	o.messagesSent.Add(1)
	return nil
}

// Metrics returns a snapshot of session statistics.
func (o *OpenAI) Metrics() Metrics {
	return Metrics{
		MessagesSent:       o.messagesSent.Load(),
		MessagesReceived:   o.messagesReceived.Load(),
		AudioBytesSent:     o.audioBytesSent.Load(),
		AudioBytesReceived: o.audioBytesRecv.Load(),
	}
}

// handleMessages processes incoming WebSocket messages.
func (o *OpenAI) handleMessages(ctx context.Context) {
	defer func() {
		o.mu.Lock()
		if o.state == StateConnected {
			o.state = StateDisconnected
		}
		o.sessionReady = false
		o.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		o.mu.RLock()
		conn := o.conn
		o.mu.RUnlock()

		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(o.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			// A locally initiated Close cancels ctx before tearing down
			// the connection; the resulting read error is not a failure.
			select {
			case <-ctx.Done():
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				o.logger.Info("connection closed normally")
				o.emitError(ErrConnectionClosed)
				return
			}
			o.logger.Error("read error", "error", err)
			o.emitError(NewConnectionError("read failed", err, true))
			return
		}

		o.messagesReceived.Add(1)

		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			o.logger.Warn("failed to parse message", "error", err)
			continue
		}

		o.handleMessage(msg)
	}
}

// handleMessage processes a single message.
func (o *OpenAI) handleMessage(msg map[string]any) {
	msgType, _ := msg["type"].(string)

	switch msgType {
	case "session.created":
		o.mu.Lock()
		o.sessionReady = true
		o.mu.Unlock()
		o.logger.Info("session created")
		o.emitEvent(Event{Kind: EventSessionCreated})

	case "session.updated":
		o.logger.Debug("session updated")

	case "response.output_item.added":
		o.handleItemAdded(msg)

	case "response.audio.delta":
		o.handleAudioDelta(msg)

	case "response.audio_transcript.delta":
		o.handleTranscriptDelta(msg)

	case "response.output_item.done":
		o.handleItemDone(msg)

	case "error":
		if errData, ok := msg["error"].(map[string]any); ok {
			errMsg, _ := errData["message"].(string)
			errCode, _ := errData["code"].(string)
			o.emitEvent(Event{
				Kind: EventError,
				Err:  NewAPIError(0, errCode, errMsg),
			})
		}

	default:
		// Ignore other message types
	}
}

// handleItemAdded opens an accumulator for a new response item.
func (o *OpenAI) handleItemAdded(msg map[string]any) {
	item, ok := msg["item"].(map[string]any)
	if !ok {
		return
	}
	id, _ := item["id"].(string)
	if id == "" {
		return
	}
	role, _ := item["role"].(string)

	o.mu.Lock()
	o.pending[id] = &pendingItem{role: role}
	o.mu.Unlock()

	o.logger.Debug("response item opened", "item_id", id, "role", role)
}

// handleAudioDelta appends decoded audio to the item's accumulator.
func (o *OpenAI) handleAudioDelta(msg map[string]any) {
	delta, ok := msg["delta"].(string)
	if !ok {
		return
	}
	audio, err := base64.StdEncoding.DecodeString(delta)
	if err != nil {
		o.logger.Warn("invalid audio delta", "error", err)
		return
	}

	itemID, _ := msg["item_id"].(string)

	o.mu.Lock()
	p := o.pendingLocked(itemID)
	p.audio.Write(audio)
	o.mu.Unlock()

	o.audioBytesRecv.Add(int64(len(audio)))
}

// handleTranscriptDelta appends transcript text to the item's accumulator.
func (o *OpenAI) handleTranscriptDelta(msg map[string]any) {
	delta, ok := msg["delta"].(string)
	if !ok {
		return
	}
	itemID, _ := msg["item_id"].(string)

	o.mu.Lock()
	p := o.pendingLocked(itemID)
	p.transcript.WriteString(delta)
	o.mu.Unlock()
}

// pendingLocked returns the accumulator for itemID, creating it if the
// item.added event was missed. Must hold mu.
func (o *OpenAI) pendingLocked(itemID string) *pendingItem {
	p, ok := o.pending[itemID]
	if !ok {
		p = &pendingItem{role: "assistant"}
		o.pending[itemID] = p
	}
	return p
}

// handleItemDone finalizes an item and emits EventItemCompleted.
func (o *OpenAI) handleItemDone(msg map[string]any) {
	item, ok := msg["item"].(map[string]any)
	if !ok {
		return
	}
	id, _ := item["id"].(string)

	o.mu.Lock()
	p, ok := o.pending[id]
	if ok {
		delete(o.pending, id)
	}
	o.mu.Unlock()

	if !ok {
		// Item with no streamed content (e.g. text-only or cancelled).
		role, _ := item["role"].(string)
		o.emitEvent(Event{
			Kind:   EventItemCompleted,
			ItemID: id,
			Role:   role,
		})
		return
	}

	o.logger.Debug("response item completed",
		"item_id", id,
		"audio_bytes", p.audio.Len(),
		"transcript_len", p.transcript.Len(),
	)

	o.emitEvent(Event{
		Kind:       EventItemCompleted,
		ItemID:     id,
		Role:       p.role,
		Audio:      p.audio.Bytes(),
		Transcript: p.transcript.String(),
	})
}

// Emit helpers

func (o *OpenAI) emitEvent(ev Event) {
	o.mu.RLock()
	fn := o.onEvent
	o.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (o *OpenAI) emitError(err error) {
	o.mu.RLock()
	fn := o.onError
	o.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Ensure OpenAI implements Session.
var _ Session = (*OpenAI)(nil)

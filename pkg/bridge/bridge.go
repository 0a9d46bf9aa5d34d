package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alwell-kevin/voicebridge/pkg/audioio"
	"github.com/alwell-kevin/voicebridge/pkg/session"
)

// State represents the bridge lifecycle state.
type State int

const (
	// StateDisconnected indicates the bridge is not running.
	StateDisconnected State = iota
	// StateConnecting indicates a session connect or reconnect is in
	// progress. Capture chunks arriving now are dropped.
	StateConnecting
	// StateStreaming indicates capture audio is being forwarded and
	// silence detection is armed.
	StateStreaming
	// StateAwaitingResponse indicates a turn was closed and the bridge
	// is waiting for the response item. Audio still flows upward, but
	// further silence signals are ignored.
	StateAwaitingResponse
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateAwaitingResponse:
		return "awaiting_response"
	default:
		return "unknown"
	}
}

// Bridge streams microphone audio to a realtime session and plays the
// session's responses back. Run drives everything from a single event
// loop; device and session callbacks only feed its channels.
type Bridge struct {
	cfg      Config
	source   audioio.Source
	sess     session.Session
	renderer *Renderer
	logger   *slog.Logger
	metrics  *Metrics

	framebuf *audioio.FrameBuffer
	detector *audioio.SilenceDetector

	mu    sync.RWMutex
	state State

	events   chan session.Event
	errs     chan error
	renderCh chan session.Event

	renderWG sync.WaitGroup
}

// New creates a Bridge. The session's callbacks are claimed by the
// bridge; do not set OnEvent or OnError on it afterwards.
func New(cfg Config, source audioio.Source, sess session.Session, renderer *Renderer, logger *slog.Logger, metrics *Metrics) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	framebuf, err := audioio.NewFrameBuffer(cfg.FrameSize)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:      cfg,
		source:   source,
		sess:     sess,
		renderer: renderer,
		logger:   logger.With("component", "bridge"),
		metrics:  metrics,
		framebuf: framebuf,
		detector: audioio.NewSilenceDetector(cfg.SilenceThreshold, cfg.SilenceChunks),
		state:    StateDisconnected,
		events:   make(chan session.Event, 16),
		errs:     make(chan error, 4),
		renderCh: make(chan session.Event, 16),
	}

	sess.OnEvent(func(ev session.Event) {
		select {
		case b.events <- ev:
		default:
			b.logger.Warn("event channel full, dropping event", "kind", ev.Kind.String())
		}
	})
	sess.OnError(func(err error) {
		select {
		case b.errs <- err:
		default:
		}
	})

	return b, nil
}

// State returns the current bridge state.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Stats returns a snapshot of bridge statistics.
func (b *Bridge) Stats() Snapshot {
	if b.metrics == nil {
		return Snapshot{}
	}
	return b.metrics.Snapshot()
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.setState(s)
	}
}

// Run connects the session, starts capture and drives the bridge until
// ctx is cancelled, the capture device dies, or reconnection gives up.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := b.connect(ctx); err != nil {
		b.setState(StateDisconnected)
		return err
	}

	if err := b.source.Start(ctx); err != nil {
		b.setState(StateDisconnected)
		_ = b.sess.Close()
		return fmt.Errorf("start capture: %w", err)
	}

	b.renderWG.Add(1)
	go b.renderLoop(ctx)

	defer func() {
		_ = b.source.Stop()
		_ = b.sess.Close()
		cancel()
		b.renderWG.Wait()
		b.setState(StateDisconnected)
	}()

	b.logger.Info("bridge running",
		"frame_size", b.cfg.FrameSize,
		"silence_chunks", b.cfg.SilenceChunks,
	)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bridge stopping")
			return ctx.Err()

		case chunk, ok := <-b.source.Stream():
			if !ok {
				if err := b.source.Err(); err != nil {
					return fmt.Errorf("capture stream ended: %w", err)
				}
				b.logger.Info("capture stream closed")
				return nil
			}
			b.handleChunk(chunk)

		case ev := <-b.events:
			b.handleEvent(ctx, ev)

		case err := <-b.errs:
			if b.metrics != nil {
				b.metrics.incSessionErrors()
			}
			b.logger.Error("session failed", "error", err)
			if rerr := b.reconnect(ctx); rerr != nil {
				return rerr
			}
		}
	}
}

// handleChunk processes one capture chunk: frame reassembly, upstream
// forwarding and silence detection.
func (b *Bridge) handleChunk(chunk audioio.AudioChunk) {
	st := b.State()
	if st != StateStreaming && st != StateAwaitingResponse {
		if b.metrics != nil {
			b.metrics.incChunksDropped()
		}
		return
	}

	b.framebuf.Append(b.toSessionFormat(chunk))

	for _, frame := range b.framebuf.Drain() {
		if err := b.sess.AppendAudio(frame); err != nil {
			b.logger.Warn("append audio failed", "error", err)
			b.reportSessionError(err)
			return
		}
		if b.metrics != nil {
			b.metrics.incFramesForwarded()
		}
	}

	// Only a streaming turn can be closed by silence. The detector
	// still consumes chunks while awaiting a response so that it is
	// armed correctly when the turn flips back.
	fired := b.detector.Feed(chunk)
	if !fired || st != StateStreaming {
		return
	}

	b.logger.Info("silence detected, closing turn")
	if err := b.sess.CreateResponse(); err != nil {
		b.logger.Warn("create response failed", "error", err)
		b.reportSessionError(err)
		return
	}
	b.setState(StateAwaitingResponse)
	if b.metrics != nil {
		b.metrics.incTurnsTriggered()
	}
}

// toSessionFormat converts a capture chunk to the session's wire format:
// mono PCM16 at the session sample rate.
func (b *Bridge) toSessionFormat(chunk audioio.AudioChunk) []byte {
	samples := chunk.Samples
	if chunk.Channels == 2 {
		samples = audioio.StereoToMono(samples)
	}
	if chunk.SampleRate > 0 && chunk.SampleRate != b.cfg.SessionSampleRate {
		samples = audioio.Resample(samples, chunk.SampleRate, b.cfg.SessionSampleRate)
	}
	return audioio.SamplesToBytes(samples)
}

// handleEvent processes one session event.
func (b *Bridge) handleEvent(ctx context.Context, ev session.Event) {
	switch ev.Kind {
	case session.EventSessionCreated:
		b.logger.Info("session ready")

	case session.EventError:
		b.logger.Warn("session reported error", "error", ev.Err)

	case session.EventItemCompleted:
		b.completeTurn(ctx, ev)
	}
}

// completeTurn queues a finished response item for playback and re-arms
// the turn cycle.
func (b *Bridge) completeTurn(ctx context.Context, ev session.Event) {
	if len(ev.Audio) == 0 {
		// Items may legitimately carry no audio; the turn still ends.
		b.logger.Info("response item without audio",
			"item_id", ev.ItemID,
			"transcript_len", len(ev.Transcript),
		)
		if b.metrics != nil {
			b.metrics.incItemsSilent()
		}
	} else {
		select {
		case b.renderCh <- ev:
		case <-ctx.Done():
		}
	}

	if b.State() == StateAwaitingResponse {
		b.setState(StateStreaming)
	}
	b.detector.Reset()
}

// renderLoop plays queued response items one at a time, in the order the
// session delivered them.
func (b *Bridge) renderLoop(ctx context.Context) {
	defer b.renderWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.renderCh:
			if err := b.renderer.Play(ctx, ev.Audio); err != nil {
				// Playback failures are confined to their turn.
				b.logger.Error("render failed", "item_id", ev.ItemID, "error", err)
			}
		}
	}
}

// reportSessionError feeds a send-side failure into the error channel so
// the main loop runs its reconnect path exactly once.
func (b *Bridge) reportSessionError(err error) {
	select {
	case b.errs <- err:
	default:
	}
}

// connect establishes the initial session with backoff.
func (b *Bridge) connect(ctx context.Context) error {
	b.setState(StateConnecting)
	return b.dialLoop(ctx, false)
}

// reconnect tears down the failed session and re-establishes it with
// backoff. Capture chunks arriving during the outage are drained and
// counted; nothing buffered before the outage survives it.
func (b *Bridge) reconnect(ctx context.Context) error {
	b.setState(StateConnecting)
	_ = b.sess.Close()
	b.framebuf.Reset()
	b.detector.Reset()
	return b.dialLoop(ctx, true)
}

func (b *Bridge) dialLoop(ctx context.Context, isReconnect bool) error {
	delay := b.cfg.Backoff.Initial
	attempts := 0

	for {
		attempts++
		err := b.sess.Connect(ctx)
		if err == nil {
			if cerr := b.sess.ConfigureSession(b.cfg.Session); cerr != nil {
				b.logger.Warn("configure session failed", "error", cerr)
				_ = b.sess.Close()
				err = cerr
			}
		}
		if err == nil {
			b.setState(StateStreaming)
			if isReconnect {
				if b.metrics != nil {
					b.metrics.incReconnects()
				}
				b.logger.Info("session reconnected", "attempts", attempts)
			} else {
				b.logger.Info("session connected")
			}
			return nil
		}

		if b.cfg.Backoff.MaxAttempts > 0 && attempts >= b.cfg.Backoff.MaxAttempts {
			return fmt.Errorf("session connect: giving up after %d attempts: %w", attempts, err)
		}

		b.logger.Warn("session connect failed, retrying",
			"attempt", attempts,
			"delay", delay,
			"error", err,
		)

		if werr := b.waitDroppingCapture(ctx, delay); werr != nil {
			return werr
		}
		delay = b.cfg.Backoff.Next(delay)
	}
}

// waitDroppingCapture sleeps for d while draining the capture stream so
// the device does not back up. Drained chunks are counted as dropped.
func (b *Bridge) waitDroppingCapture(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case _, ok := <-b.source.Stream():
			if !ok {
				if err := b.source.Err(); err != nil {
					return fmt.Errorf("capture stream ended: %w", err)
				}
				// Source closed cleanly; just wait out the delay.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
					return nil
				}
			}
			if b.metrics != nil {
				b.metrics.incChunksDropped()
			}
		}
	}
}

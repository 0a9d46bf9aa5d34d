package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// Default helper binaries for the exec backend. Both speak raw PCM16 over
// their stdio pipes, which keeps the bridge free of cgo audio bindings.
const (
	defaultCaptureCommand  = "arecord"
	defaultPlaybackCommand = "aplay"
)

// ExecSource captures audio by spawning an external helper process
// (arecord by default) and reading raw PCM16 from its stdout.
type ExecSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	stopping bool
	streamCh chan AudioChunk
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	err      error

	// Stats
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// newExecSource creates a new exec-backed audio source.
func newExecSource(cfg Config, logger *slog.Logger) (*ExecSource, error) {
	s := &ExecSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 10),
	}

	logger.Info("exec source created",
		"command", s.captureCommand(),
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return s, nil
}

func (s *ExecSource) captureCommand() string {
	if s.cfg.CaptureCommand != "" {
		return s.cfg.CaptureCommand
	}
	return defaultCaptureCommand
}

// Start spawns the capture helper and begins reading audio.
func (s *ExecSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	args := []string{
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-r", fmt.Sprintf("%d", s.cfg.SampleRate),
		"-c", fmt.Sprintf("%d", s.cfg.Channels),
	}
	if s.cfg.Device != "" {
		args = append(args, "-D", s.cfg.Device)
	}

	cmd := exec.CommandContext(ctx, s.captureCommand(), args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.running = true
	s.stopping = false
	s.err = nil
	s.streamCh = make(chan AudioChunk, 10)

	go s.readLoop()

	s.logger.Info("exec audio source started", "command", s.captureCommand())

	return nil
}

func (s *ExecSource) readLoop() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.streamCh)
	}()

	chunkBytes := s.cfg.ChunkBytes()
	buf := make([]byte, chunkBytes)

	for {
		_, err := io.ReadFull(s.stdout, buf)
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			if !stopping && !errors.Is(err, io.EOF) {
				s.err = fmt.Errorf("capture read: %w", err)
			} else if !stopping {
				s.err = fmt.Errorf("capture device closed: %w", err)
			}
			s.mu.Unlock()
			if !stopping {
				s.logger.Error("capture stream ended", "error", err)
			}
			return
		}

		var chunk AudioChunk
		chunk.FromBytes(buf, s.cfg.SampleRate, s.cfg.Channels)

		select {
		case s.streamCh <- chunk:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(chunk.Samples)))
		default:
			s.overruns.Add(1)
			s.logger.Debug("exec source: buffer full, dropping chunk")
		}
	}
}

// Stop halts audio capture by terminating the helper process.
func (s *ExecSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	cmd := s.cmd
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}

	s.logger.Info("exec audio source stopped")

	return nil
}

// Read reads the next audio chunk.
func (s *ExecSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-s.streamCh:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *ExecSource) Stream() <-chan AudioChunk {
	return s.streamCh
}

// Err returns the device error that ended the stream, if any.
func (s *ExecSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Config returns the audio configuration.
func (s *ExecSource) Config() Config {
	return s.cfg
}

// Name returns "exec".
func (s *ExecSource) Name() string {
	return "exec"
}

// Close releases resources.
func (s *ExecSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *ExecSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     "exec",
	}
}

var _ SourceWithStats = (*ExecSource)(nil)

// ExecSink plays audio by spawning an external helper process (aplay by
// default) and writing raw PCM16 to its stdin. One ExecSink is one output
// stream: Flush closes stdin and waits for the helper to drain, after
// which the sink is finished for good.
type ExecSink struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	finished bool
	cmd      *exec.Cmd
	stdin    io.WriteCloser

	// Stats
	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

// newExecSink creates a new exec-backed audio sink.
func newExecSink(cfg Config, logger *slog.Logger) (*ExecSink, error) {
	s := &ExecSink{
		cfg:    cfg,
		logger: logger,
	}

	logger.Info("exec sink created",
		"command", s.playbackCommand(),
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return s, nil
}

func (s *ExecSink) playbackCommand() string {
	if s.cfg.PlaybackCommand != "" {
		return s.cfg.PlaybackCommand
	}
	return defaultPlaybackCommand
}

// Start spawns the playback helper, opening the output device.
func (s *ExecSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	if s.finished {
		return fmt.Errorf("sink already flushed; output streams are single-use")
	}

	args := []string{
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-r", fmt.Sprintf("%d", s.cfg.SampleRate),
		"-c", fmt.Sprintf("%d", s.cfg.Channels),
	}
	if s.cfg.Device != "" {
		args = append(args, "-D", s.cfg.Device)
	}

	cmd := exec.CommandContext(ctx, s.playbackCommand(), args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("playback stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open playback device: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.running = true

	s.logger.Info("exec audio sink started", "command", s.playbackCommand())

	return nil
}

// Stop halts audio playback.
func (s *ExecSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teardownLocked()
}

// teardownLocked kills the helper process. Must hold mu.
func (s *ExecSink) teardownLocked() error {
	if !s.running {
		return nil
	}
	s.running = false
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	s.logger.Info("exec audio sink stopped")
	return nil
}

// Write sends audio to the playback helper.
func (s *ExecSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.finished {
		return io.ErrClosedPipe
	}
	if !s.running || s.stdin == nil {
		return fmt.Errorf("sink not running")
	}

	if _, err := s.stdin.Write(chunk.Bytes()); err != nil {
		// Helper died mid-write; this turn's audio is lost.
		_ = s.teardownLocked()
		return fmt.Errorf("playback write: %w", err)
	}

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))

	return nil
}

// Flush finalizes the stream: closes stdin and waits for the helper to
// finish playing buffered audio. The sink is finished afterwards.
func (s *ExecSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.running || s.cmd == nil {
		s.mu.Unlock()
		return nil
	}
	s.finished = true
	s.running = false
	stdin := s.stdin
	cmd := s.cmd
	s.stdin = nil
	s.cmd = nil
	s.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("playback drain: %w", err)
		}
		return nil
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return ctx.Err()
	case <-time.After(30 * time.Second):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return fmt.Errorf("playback drain timed out")
	}
}

// Clear discards buffered audio by killing the helper immediately.
func (s *ExecSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	return s.teardownLocked()
}

// Config returns the audio configuration.
func (s *ExecSink) Config() Config {
	return s.cfg
}

// Name returns "exec".
func (s *ExecSink) Name() string {
	return "exec"
}

// Close releases resources.
func (s *ExecSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.teardownLocked()
	s.mu.Unlock()
	return err
}

// Stats returns sink statistics.
func (s *ExecSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Running:        running,
		Backend:        "exec",
	}
}

var _ SinkWithStats = (*ExecSink)(nil)

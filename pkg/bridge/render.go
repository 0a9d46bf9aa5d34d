package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/alwell-kevin/voicebridge/pkg/audioio"
)

// SinkFactory opens a fresh output stream. The renderer calls it once
// per response item.
type SinkFactory func() (audioio.Sink, error)

// Renderer plays completed response items through the speaker.
//
// Each item gets its own sink: the factory opens a fresh output stream,
// the item's audio is written through it, and Flush tears the stream
// down once playback drains. Sinks are never reused across turns, so a
// playback failure in one turn cannot poison the next.
type Renderer struct {
	factory     SinkFactory
	cfg         audioio.Config
	sessionRate int
	logger      *slog.Logger
	metrics     *Metrics

	// Serializes turns. A second item arriving mid-playback waits for
	// the first to drain rather than interleaving audio.
	mu sync.Mutex
}

// NewRenderer creates a Renderer that opens sinks via factory. Item audio
// arrives as mono PCM16 at sessionRate and is converted to the device
// format described by cfg before playback.
func NewRenderer(factory SinkFactory, cfg audioio.Config, sessionRate int, logger *slog.Logger, metrics *Metrics) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		factory:     factory,
		cfg:         cfg,
		sessionRate: sessionRate,
		logger:      logger,
		metrics:     metrics,
	}
}

// Play renders one response item's audio from start to finish. It
// blocks until the output stream has drained.
func (r *Renderer) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	turnID := uuid.NewString()[:8]
	logger := r.logger.With("turn_id", turnID)

	sink, err := r.factory()
	if err != nil {
		r.recordError()
		return fmt.Errorf("open output stream: %w", err)
	}
	defer sink.Close()

	if err := sink.Start(ctx); err != nil {
		r.recordError()
		return fmt.Errorf("start output stream: %w", err)
	}

	logger.Info("rendering response item",
		"audio_bytes", len(audio),
		"backend", sink.Name(),
	)

	audio = r.toDeviceFormat(audio)

	chunkBytes := r.cfg.ChunkBytes()
	for off := 0; off < len(audio); off += chunkBytes {
		end := off + chunkBytes
		if end > len(audio) {
			end = len(audio)
		}

		var chunk audioio.AudioChunk
		chunk.FromBytes(audio[off:end], r.cfg.SampleRate, r.cfg.Channels)

		if err := sink.Write(ctx, chunk); err != nil {
			r.recordError()
			return fmt.Errorf("write output stream: %w", err)
		}
	}

	if err := sink.Flush(ctx); err != nil {
		r.recordError()
		return fmt.Errorf("drain output stream: %w", err)
	}

	if r.metrics != nil {
		r.metrics.incItemsRendered()
	}
	logger.Debug("response item rendered")

	return nil
}

// toDeviceFormat converts session audio (mono PCM16 at the session rate)
// to the playback device's rate and channel count.
func (r *Renderer) toDeviceFormat(audio []byte) []byte {
	if r.sessionRate <= 0 || (r.sessionRate == r.cfg.SampleRate && r.cfg.Channels == 1) {
		return audio
	}
	samples := audioio.BytesToSamples(audio)
	if r.sessionRate != r.cfg.SampleRate {
		samples = audioio.Resample(samples, r.sessionRate, r.cfg.SampleRate)
	}
	if r.cfg.Channels == 2 {
		samples = audioio.MonoToStereo(samples)
	}
	return audioio.SamplesToBytes(samples)
}

func (r *Renderer) recordError() {
	if r.metrics != nil {
		r.metrics.incRenderErrors()
	}
}

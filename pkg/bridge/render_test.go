package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alwell-kevin/voicebridge/pkg/audioio"
)

func renderAudioConfig() audioio.Config {
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	cfg.ChunkDuration = 10 * time.Millisecond // 240 samples, 480 bytes
	return cfg
}

func TestRendererPlaysWholeItem(t *testing.T) {
	cfg := renderAudioConfig()

	var sinks []*audioio.MockSink
	factory := func() (audioio.Sink, error) {
		s := audioio.NewMockSink(cfg, nil)
		sinks = append(sinks, s)
		return s, nil
	}

	metrics := NewMetrics(prometheus.NewRegistry())
	r := NewRenderer(factory, cfg, cfg.SampleRate, nil, metrics)

	// 3.5 playback chunks of audio.
	audio := make([]byte, cfg.ChunkBytes()*3+cfg.ChunkBytes()/2)
	if err := r.Play(context.Background(), audio); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if len(sinks) != 1 {
		t.Fatalf("opened %d sinks, want 1", len(sinks))
	}
	sink := sinks[0]
	if !sink.Finished() {
		t.Error("sink not flushed")
	}

	written := sink.Written()
	if len(written) != 4 {
		t.Fatalf("wrote %d chunks, want 4", len(written))
	}
	total := 0
	for _, c := range written {
		total += len(c.Samples) * 2
	}
	if total != len(audio) {
		t.Errorf("wrote %d bytes, want %d", total, len(audio))
	}

	if got := metrics.Snapshot().ItemsRendered; got != 1 {
		t.Errorf("ItemsRendered = %d, want 1", got)
	}
}

func TestRendererResamplesToDeviceRate(t *testing.T) {
	cfg := renderAudioConfig()
	cfg.SampleRate = 48000

	var sinks []*audioio.MockSink
	factory := func() (audioio.Sink, error) {
		s := audioio.NewMockSink(cfg, nil)
		sinks = append(sinks, s)
		return s, nil
	}

	// Session audio at 24kHz doubles when played on a 48kHz device.
	r := NewRenderer(factory, cfg, 24000, nil, nil)
	audio := audioio.SamplesToBytes(make([]int16, 100))
	if err := r.Play(context.Background(), audio); err != nil {
		t.Fatalf("Play: %v", err)
	}

	total := 0
	for _, c := range sinks[0].Written() {
		total += len(c.Samples)
	}
	if total != 200 {
		t.Errorf("device samples = %d, want 200", total)
	}
}

func TestRendererExpandsMonoForStereoDevice(t *testing.T) {
	cfg := renderAudioConfig()
	cfg.Channels = 2

	var sinks []*audioio.MockSink
	factory := func() (audioio.Sink, error) {
		s := audioio.NewMockSink(cfg, nil)
		sinks = append(sinks, s)
		return s, nil
	}

	r := NewRenderer(factory, cfg, cfg.SampleRate, nil, nil)
	audio := audioio.SamplesToBytes([]int16{5, 6, 7})
	if err := r.Play(context.Background(), audio); err != nil {
		t.Fatalf("Play: %v", err)
	}

	written := sinks[0].Written()
	if len(written) != 1 {
		t.Fatalf("wrote %d chunks, want 1", len(written))
	}
	want := []int16{5, 5, 6, 6, 7, 7}
	got := written[0].Samples
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRendererEmptyAudioIsNoop(t *testing.T) {
	cfg := renderAudioConfig()

	opened := 0
	factory := func() (audioio.Sink, error) {
		opened++
		return audioio.NewMockSink(cfg, nil), nil
	}

	r := NewRenderer(factory, cfg, cfg.SampleRate, nil, nil)
	if err := r.Play(context.Background(), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if opened != 0 {
		t.Errorf("opened %d sinks for empty audio, want 0", opened)
	}
}

func TestRendererFactoryFailure(t *testing.T) {
	cfg := renderAudioConfig()
	factoryErr := errors.New("device busy")
	factory := func() (audioio.Sink, error) { return nil, factoryErr }

	metrics := NewMetrics(prometheus.NewRegistry())
	r := NewRenderer(factory, cfg, cfg.SampleRate, nil, metrics)

	err := r.Play(context.Background(), make([]byte, 16))
	if !errors.Is(err, factoryErr) {
		t.Fatalf("err = %v, want wrapped factory error", err)
	}
	if got := metrics.Snapshot().RenderErrors; got != 1 {
		t.Errorf("RenderErrors = %d, want 1", got)
	}
}

func TestRendererSerializesTurns(t *testing.T) {
	cfg := renderAudioConfig()

	var sinks []*audioio.MockSink
	factory := func() (audioio.Sink, error) {
		s := audioio.NewMockSink(cfg, nil)
		sinks = append(sinks, s)
		return s, nil
	}

	r := NewRenderer(factory, cfg, cfg.SampleRate, nil, nil)

	audio := make([]byte, cfg.ChunkBytes())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Play(context.Background(), audio)
	}()
	_ = r.Play(context.Background(), audio)
	<-done

	if len(sinks) != 2 {
		t.Fatalf("opened %d sinks, want 2", len(sinks))
	}
	for i, s := range sinks {
		if !s.Finished() {
			t.Errorf("sink %d not flushed", i)
		}
	}
}

package audioio

import (
	"context"
	"io"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	cfg.ChunkDuration = 10 * time.Millisecond
	return cfg
}

func TestMockSourceStream(t *testing.T) {
	src := NewMockSource(testConfig(), nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	wantCfg := testConfig()
	if len(chunk.Samples) != wantCfg.ChunkSize() {
		t.Errorf("chunk size = %d, want %d", len(chunk.Samples), wantCfg.ChunkSize())
	}
	if chunk.SampleRate != 24000 {
		t.Errorf("sample rate = %d, want 24000", chunk.SampleRate)
	}
	if CalculateRMS(chunk.Samples) < DefaultSilenceThreshold {
		t.Error("sine wave chunk has silence-level energy")
	}
}

func TestMockSourceSilenceByDefault(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rms := CalculateRMS(chunk.Samples); rms != 0 {
		t.Errorf("default mock chunk RMS = %v, want 0", rms)
	}
}

func TestMockSourceStopClosesStream(t *testing.T) {
	src := NewMockSource(testConfig(), nil)

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Stream drains then closes; Read reports EOF and Err stays nil.
	for {
		_, err := src.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if err := src.Err(); err != nil {
		t.Errorf("Err after clean Stop = %v, want nil", err)
	}
}

func TestMockSourceStopWhileGenerating(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkDuration = time.Millisecond

	// Stop races the generate loop; closing the stream mid-send must
	// never panic.
	for i := 0; i < 25; i++ {
		src := NewMockSource(cfg, nil)
		if err := src.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		time.Sleep(time.Millisecond)
		if err := src.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		for range src.Stream() {
		}
	}
}

func TestMockSinkRecordsWrites(t *testing.T) {
	sink := NewMockSink(testConfig(), nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	chunk := AudioChunk{Samples: []int16{1, 2, 3}, SampleRate: 24000, Channels: 1}
	for i := 0; i < 3; i++ {
		if err := sink.Write(ctx, chunk); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	if got := len(sink.Written()); got != 3 {
		t.Errorf("Written = %d chunks, want 3", got)
	}
	if stats := sink.Stats(); stats.ChunksWritten != 3 {
		t.Errorf("ChunksWritten = %d, want 3", stats.ChunksWritten)
	}
}

func TestMockSinkFlushFinalizes(t *testing.T) {
	sink := NewMockSink(testConfig(), nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	chunk := AudioChunk{Samples: make([]int16, 240), SampleRate: 24000, Channels: 1}
	if err := sink.Write(ctx, chunk); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if !sink.Finished() {
		t.Error("sink not finished after Flush")
	}
	if err := sink.Write(ctx, chunk); err == nil {
		t.Error("Write after Flush succeeded, want error")
	}
	if err := sink.Start(ctx); err == nil {
		t.Error("Start after Flush succeeded, want error")
	}
}

func TestFactoryMockBackend(t *testing.T) {
	cfg := testConfig()

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	defer src.Close()
	if src.Name() != "mock" {
		t.Errorf("source backend = %q, want mock", src.Name())
	}

	sink, err := NewSink(cfg, nil)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	defer sink.Close()
	if sink.Name() != "mock" {
		t.Errorf("sink backend = %q, want mock", sink.Name())
	}
}

func TestFactoryRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SampleRate = 0

	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("NewSource accepted zero sample rate")
	}
	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("NewSink accepted zero sample rate")
	}

	cfg = testConfig()
	cfg.Channels = 3
	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("NewSource accepted 3 channels")
	}
}

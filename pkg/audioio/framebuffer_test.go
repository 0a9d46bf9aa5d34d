package audioio

import (
	"bytes"
	"testing"
)

func TestNewFrameBuffer(t *testing.T) {
	if _, err := NewFrameBuffer(0); err == nil {
		t.Error("expected error for zero frame size")
	}
	if _, err := NewFrameBuffer(-1); err == nil {
		t.Error("expected error for negative frame size")
	}

	fb, err := NewFrameBuffer(4800)
	if err != nil {
		t.Fatalf("NewFrameBuffer: %v", err)
	}
	if fb.FrameSize() != 4800 {
		t.Errorf("FrameSize = %d, want 4800", fb.FrameSize())
	}
}

func TestFrameBufferExactFrames(t *testing.T) {
	fb, _ := NewFrameBuffer(4)

	fb.Append([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	frames := fb.Drain()

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{1, 2, 3, 4}) {
		t.Errorf("frame 0 = %v", frames[0])
	}
	if !bytes.Equal(frames[1], []byte{5, 6, 7, 8}) {
		t.Errorf("frame 1 = %v", frames[1])
	}
	if fb.Buffered() != 0 {
		t.Errorf("Buffered = %d, want 0", fb.Buffered())
	}
}

func TestFrameBufferRemainder(t *testing.T) {
	fb, _ := NewFrameBuffer(4)

	fb.Append([]byte{1, 2, 3, 4, 5, 6})
	frames := fb.Drain()

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if fb.Buffered() != 2 {
		t.Errorf("Buffered = %d, want 2", fb.Buffered())
	}

	// The remainder must lead the next frame.
	fb.Append([]byte{7, 8})
	frames = fb.Drain()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{5, 6, 7, 8}) {
		t.Errorf("frame = %v, want [5 6 7 8]", frames[0])
	}
}

func TestFrameBufferShortAppends(t *testing.T) {
	fb, _ := NewFrameBuffer(6)

	// Feed byte by byte; nothing drains until a full frame exists.
	for i := byte(1); i <= 5; i++ {
		fb.Append([]byte{i})
		if got := fb.Drain(); got != nil {
			t.Fatalf("drained %d frames before frame complete", len(got))
		}
	}
	fb.Append([]byte{6})

	frames := fb.Drain()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("frame = %v", frames[0])
	}
}

// Chunk sizes of 4800, 3000 and 1800 bytes add up to two full 4800-byte
// frames with no remainder.
func TestFrameBufferProtocolFrameSizes(t *testing.T) {
	fb, _ := NewFrameBuffer(4800)

	appends := []int{4800, 3000, 1800}
	next := byte(0)
	var want []byte
	for _, n := range appends {
		p := make([]byte, n)
		for i := range p {
			p[i] = next
			next++
		}
		want = append(want, p...)
		fb.Append(p)
	}

	frames := fb.Drain()
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if fb.Buffered() != 0 {
		t.Errorf("Buffered = %d, want 0", fb.Buffered())
	}

	var got []byte
	for _, f := range frames {
		if len(f) != 4800 {
			t.Fatalf("frame size = %d, want 4800", len(f))
		}
		got = append(got, f...)
	}
	if !bytes.Equal(got, want) {
		t.Error("frame bytes do not match appended bytes in order")
	}
}

func TestFrameBufferDrainEmpty(t *testing.T) {
	fb, _ := NewFrameBuffer(4)

	if got := fb.Drain(); got != nil {
		t.Errorf("Drain on empty buffer = %v, want nil", got)
	}
	// Drain twice in a row must not re-emit anything.
	fb.Append([]byte{1, 2, 3, 4})
	fb.Drain()
	if got := fb.Drain(); got != nil {
		t.Errorf("second Drain = %v, want nil", got)
	}
}

func TestFrameBufferReset(t *testing.T) {
	fb, _ := NewFrameBuffer(4)

	fb.Append([]byte{1, 2, 3})
	fb.Reset()

	if fb.Buffered() != 0 {
		t.Errorf("Buffered after Reset = %d, want 0", fb.Buffered())
	}

	// Bytes appended after Reset start a fresh frame.
	fb.Append([]byte{9, 9, 9, 9})
	frames := fb.Drain()
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte{9, 9, 9, 9}) {
		t.Errorf("frames after Reset = %v", frames)
	}
}

package audioio

import (
	"fmt"
	"sync"
)

// FrameBuffer reassembles arbitrary-sized capture chunks into fixed-size
// protocol frames. Bytes go in via Append in whatever sizes the device
// produces; Drain hands back as many complete frames as are available and
// keeps the remainder for the next Append. Byte order is preserved exactly
// and no byte is ever emitted twice.
//
// Capture and drain may happen on different goroutines, so the residual
// accumulator is mutex-guarded.
type FrameBuffer struct {
	mu        sync.Mutex
	frameSize int
	residual  []byte
}

// NewFrameBuffer creates a FrameBuffer emitting frames of exactly
// frameSize bytes.
func NewFrameBuffer(frameSize int) (*FrameBuffer, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSize)
	}
	return &FrameBuffer{
		frameSize: frameSize,
		residual:  make([]byte, 0, frameSize*2),
	}, nil
}

// Append adds raw bytes to the residual accumulator.
func (b *FrameBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.residual = append(b.residual, p...)
}

// Drain removes and returns all complete frames currently buffered,
// left to right. Each returned frame is an independent copy of exactly
// FrameSize bytes. Any remainder shorter than a frame stays buffered.
func (b *FrameBuffer) Drain() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.residual) / b.frameSize
	if n == 0 {
		return nil
	}

	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		frame := make([]byte, b.frameSize)
		copy(frame, b.residual[i*b.frameSize:(i+1)*b.frameSize])
		frames = append(frames, frame)
	}

	remainder := len(b.residual) - n*b.frameSize
	copy(b.residual, b.residual[n*b.frameSize:])
	b.residual = b.residual[:remainder]

	return frames
}

// Buffered returns the number of residual bytes awaiting a full frame.
func (b *FrameBuffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.residual)
}

// FrameSize returns the configured frame size in bytes.
func (b *FrameBuffer) FrameSize() int {
	return b.frameSize
}

// Reset discards all buffered bytes. Used when the upstream session drops:
// audio captured during an outage is never retroactively forwarded.
func (b *FrameBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.residual = b.residual[:0]
}

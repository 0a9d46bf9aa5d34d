package audioio

// SilenceDetector watches the capture stream for sustained low energy and
// raises a discrete end-of-turn signal. It is edge-triggered: once the
// signal fires, it stays quiet until voice is heard again.
//
// Energy is measured as normalized RMS per chunk. A chunk below Threshold
// counts as quiet; QuietChunks consecutive quiet chunks fire the signal.
type SilenceDetector struct {
	threshold   float64
	quietChunks int

	quiet int
	fired bool
}

// DefaultQuietChunks is the number of consecutive quiet chunks that count
// as end of turn.
const DefaultQuietChunks = 6

// DefaultSilenceThreshold is the normalized RMS below which a chunk is
// considered quiet.
const DefaultSilenceThreshold = 1e-4

// NewSilenceDetector creates a detector. Threshold is normalized RMS in
// [0,1]; quietChunks is the consecutive quiet-chunk count that fires the
// signal.
func NewSilenceDetector(threshold float64, quietChunks int) *SilenceDetector {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	if quietChunks <= 0 {
		quietChunks = DefaultQuietChunks
	}
	return &SilenceDetector{
		threshold:   threshold,
		quietChunks: quietChunks,
	}
}

// Feed observes one capture chunk. It returns true exactly once per
// silence episode, on the chunk that completes the quiet run.
func (d *SilenceDetector) Feed(chunk AudioChunk) bool {
	if CalculateRMS(chunk.Samples) >= d.threshold {
		d.quiet = 0
		d.fired = false
		return false
	}

	d.quiet++
	if d.quiet >= d.quietChunks && !d.fired {
		d.fired = true
		return true
	}
	return false
}

// Reset re-arms the detector, clearing any quiet run in progress.
func (d *SilenceDetector) Reset() {
	d.quiet = 0
	d.fired = false
}

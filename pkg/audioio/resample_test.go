package audioio

import (
	"bytes"
	"testing"
)

func TestResampleSameRate(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	result := Resample(samples, 24000, 24000)

	if len(result) != len(samples) {
		t.Errorf("length changed: %d -> %d", len(samples), len(result))
	}
}

func TestResampleDownsample(t *testing.T) {
	samples := make([]int16, 480) // 10ms at 48kHz
	result := Resample(samples, 48000, 24000)

	if len(result) != 240 {
		t.Errorf("got %d samples, want 240", len(result))
	}
}

func TestResampleUpsample(t *testing.T) {
	samples := make([]int16, 240) // 10ms at 24kHz
	result := Resample(samples, 24000, 48000)

	if len(result) != 480 {
		t.Errorf("got %d samples, want 480", len(result))
	}
}

func TestResampleEmpty(t *testing.T) {
	result := Resample([]int16{}, 48000, 24000)
	if len(result) != 0 {
		t.Errorf("got %d samples, want 0", len(result))
	}
}

func TestBytesToSamplesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256, -256}

	data := SamplesToBytes(samples)
	if len(data) != len(samples)*2 {
		t.Fatalf("byte length = %d, want %d", len(data), len(samples)*2)
	}

	back := BytesToSamples(data)
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d: %d != %d", i, back[i], samples[i])
		}
	}
}

func TestSamplesToBytesLittleEndian(t *testing.T) {
	data := SamplesToBytes([]int16{0x0102})
	if !bytes.Equal(data, []byte{0x02, 0x01}) {
		t.Errorf("got %v, want [2 1]", data)
	}
}

func TestStereoToMono(t *testing.T) {
	stereo := []int16{100, 200, -100, -200}
	mono := StereoToMono(stereo)

	if len(mono) != 2 {
		t.Fatalf("got %d samples, want 2", len(mono))
	}
	if mono[0] != 150 {
		t.Errorf("mono[0] = %d, want 150", mono[0])
	}
	if mono[1] != -150 {
		t.Errorf("mono[1] = %d, want -150", mono[1])
	}
}

func TestMonoToStereo(t *testing.T) {
	mono := []int16{100, -200, 300}
	stereo := MonoToStereo(mono)

	if len(stereo) != 6 {
		t.Fatalf("got %d samples, want 6", len(stereo))
	}
	for i, s := range mono {
		if stereo[i*2] != s || stereo[i*2+1] != s {
			t.Errorf("pair %d = (%d, %d), want (%d, %d)", i, stereo[i*2], stereo[i*2+1], s, s)
		}
	}
}

func TestCalculateRMS(t *testing.T) {
	if rms := CalculateRMS(nil); rms != 0 {
		t.Errorf("RMS of empty = %v, want 0", rms)
	}

	silence := make([]int16, 100)
	if rms := CalculateRMS(silence); rms != 0 {
		t.Errorf("RMS of silence = %v, want 0", rms)
	}

	fullScale := make([]int16, 100)
	for i := range fullScale {
		fullScale[i] = 32767
	}
	if rms := CalculateRMS(fullScale); rms < 0.99 || rms > 1.0 {
		t.Errorf("RMS of full scale = %v, want ~1.0", rms)
	}

	// Quiet audio sits below the silence threshold, moderate audio above.
	quiet := make([]int16, 100)
	for i := range quiet {
		quiet[i] = 100
	}
	if rms := CalculateRMS(quiet); rms >= DefaultSilenceThreshold {
		t.Errorf("RMS of quiet audio = %v, want < %v", rms, DefaultSilenceThreshold)
	}

	voice := make([]int16, 100)
	for i := range voice {
		voice[i] = 5000
	}
	if rms := CalculateRMS(voice); rms < DefaultSilenceThreshold {
		t.Errorf("RMS of voice audio = %v, want >= %v", rms, DefaultSilenceThreshold)
	}
}

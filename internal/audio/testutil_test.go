package audio

import (
	"path/filepath"
	"testing"
)

// Synthetic waveforms for DSP tests use a 1 kHz sample rate to keep the
// arrays small; the algorithms only ever see samples-per-second ratios.
const testRate = 1000

const (
	loudAmp   = 10000 // ~ -10 dBFS at 16-bit full scale
	silentAmp = 0     // clamps to -120 dBFS via the epsilon guard
)

// synth builds a waveform from (seconds, amplitude) spans.
func synth(t *testing.T, spans ...[2]float64) *Waveform {
	t.Helper()
	samples := []int{}
	for _, span := range spans {
		n := int(span[0] * testRate)
		for i := 0; i < n; i++ {
			samples = append(samples, int(span[1]))
		}
	}
	return &Waveform{Samples: samples, SampleRate: testRate, BitDepth: 16}
}

func writeTestWAV(t *testing.T, dir, name string, w *Waveform) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := WriteWAV(path, w, 0, len(w.Samples)); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

package audio

import (
	"math"
	"time"
)

// dbfsEpsilon keeps log10 defined for digital silence.
const dbfsEpsilon = 1e-6

// SilenceRun is a maximal contiguous region whose loudness stays below the
// detection threshold. Sample indices, half-open [Start, End).
type SilenceRun struct {
	Start int
	End   int
}

// DetectSilence scans w left to right and returns the silence runs lasting at
// least minSilence, in ascending order, non-overlapping. A run still open at
// end of signal is emitted under the same length rule.
//
// Loudness per sample is 20*log10(|s|/fullScale + eps) dBFS. Single linear
// pass, no side effects.
func DetectSilence(w *Waveform, minSilence time.Duration, thresholdDBFS float64) []SilenceRun {
	minLen := int(minSilence.Seconds() * float64(w.SampleRate))
	if minLen < 1 {
		minLen = 1
	}
	full := w.fullScale()

	runs := []SilenceRun{}
	inSilence := false
	runStart := 0

	for i, s := range w.Samples {
		db := 20 * math.Log10(math.Abs(float64(s))/full+dbfsEpsilon)
		switch {
		case db < thresholdDBFS && !inSilence:
			inSilence = true
			runStart = i
		case db >= thresholdDBFS && inSilence:
			inSilence = false
			if i-runStart >= minLen {
				runs = append(runs, SilenceRun{Start: runStart, End: i})
			}
		}
	}
	if inSilence && len(w.Samples)-runStart >= minLen {
		runs = append(runs, SilenceRun{Start: runStart, End: len(w.Samples)})
	}
	return runs
}

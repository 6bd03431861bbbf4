package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var ErrSegmentation = errors.New("audio: segmentation failed")

// SegmentDescriptor describes one emitted chunk file. Times are seconds
// relative to the start of the source waveform; Duration == EndTime - StartTime.
type SegmentDescriptor struct {
	Index     int
	Path      string
	StartTime float64
	EndTime   float64
	Duration  float64
}

// SplitParams tunes the segmenter. Zero values get the domain defaults.
type SplitParams struct {
	// MaxChunk is the hard upper bound on chunk duration.
	MaxChunk time.Duration
	// SearchWindow is the trailing window scanned for a silence boundary
	// before falling back to a forced cut. Must be shorter than MaxChunk.
	SearchWindow time.Duration
	// MinSilence is the shortest silence that qualifies as a cut point.
	MinSilence time.Duration
	// ThresholdDBFS is the silence loudness threshold.
	ThresholdDBFS float64
	// MinChunk is the shortest chunk worth keeping; shorter slices are
	// dropped and the cursor advances past them.
	MinChunk time.Duration
}

func (p SplitParams) withDefaults() SplitParams {
	out := p
	if out.MaxChunk <= 0 {
		out.MaxChunk = 30 * time.Second
	}
	if out.SearchWindow <= 0 {
		out.SearchWindow = 5 * time.Second
	}
	if out.MinSilence <= 0 {
		out.MinSilence = 500 * time.Millisecond
	}
	if out.ThresholdDBFS == 0 {
		out.ThresholdDBFS = -40
	}
	if out.MinChunk <= 0 {
		out.MinChunk = time.Second
	}
	return out
}

// Segmenter cuts a normalized waveform into bounded chunks aligned to silence
// where possible.
type Segmenter struct {
	log *slog.Logger
}

func NewSegmenter(log *slog.Logger) *Segmenter {
	if log == nil {
		log = slog.Default()
	}
	return &Segmenter{log: log}
}

// Split reads wavPath and writes one file per chunk into outDir, named
// chunk_NNNN.wav so lexical order matches playback order. It returns the
// emitted descriptors in start-time order plus the source duration in seconds.
//
// A zero-length input yields an empty descriptor slice and no error.
func (s *Segmenter) Split(ctx context.Context, wavPath, outDir string, p SplitParams) ([]SegmentDescriptor, float64, error) {
	p = p.withDefaults()
	if p.SearchWindow >= p.MaxChunk {
		return nil, 0, fmt.Errorf("%w: search window %v must be shorter than max chunk %v", ErrSegmentation, p.SearchWindow, p.MaxChunk)
	}

	w, err := ReadWAV(wavPath)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrSegmentation, err)
	}
	total := w.Duration()
	if len(w.Samples) == 0 {
		return []SegmentDescriptor{}, total, nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrSegmentation, err)
	}

	rate := float64(w.SampleRate)
	maxSamples := int(p.MaxChunk.Seconds() * rate)
	winSamples := int(p.SearchWindow.Seconds() * rate)
	minSamples := int(p.MinChunk.Seconds() * rate)
	n := len(w.Samples)

	descs := []SegmentDescriptor{}
	cursor := 0
	idx := 0

	for cursor < n {
		// File writes below are the suspension points; honor cancellation
		// between chunks, not mid-scan.
		if err := ctx.Err(); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrSegmentation, err)
		}

		end := cursor + maxSamples
		if end > n {
			end = n
		}

		// Not the final slice: prefer cutting at the start of the earliest
		// silence run inside the trailing window over a forced cut.
		if end < n {
			searchStart := end - winSamples
			if searchStart < cursor {
				searchStart = cursor
			}
			runs := DetectSilence(w.View(searchStart, end), p.MinSilence, p.ThresholdDBFS)
			if len(runs) > 0 {
				end = searchStart + runs[0].Start
			}
		}
		if end <= cursor {
			// Window misconfiguration guard: fall back to the hard boundary.
			end = cursor + maxSamples
			if end > n {
				end = n
			}
		}

		if end-cursor < minSamples {
			s.log.Debug("discarding sub-minimum chunk",
				"start_sec", float64(cursor)/rate,
				"end_sec", float64(end)/rate)
			cursor = end
			continue
		}

		path := filepath.Join(outDir, fmt.Sprintf("chunk_%04d.wav", idx))
		if err := WriteWAV(path, w, cursor, end); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrSegmentation, err)
		}
		descs = append(descs, SegmentDescriptor{
			Index:     idx,
			Path:      path,
			StartTime: float64(cursor) / rate,
			EndTime:   float64(end) / rate,
			Duration:  float64(end-cursor) / rate,
		})
		cursor = end
		idx++
	}
	return descs, total, nil
}

// Package audio implements the call-processing signal path: waveform I/O,
// silence detection and silence-aligned chunking of normalized recordings.
package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Waveform is a decoded mono PCM signal.
type Waveform struct {
	Samples    []int
	SampleRate int
	BitDepth   int
}

// Duration returns the signal length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// View returns a window [from, to) sharing the underlying sample slice.
func (w *Waveform) View(from, to int) *Waveform {
	return &Waveform{Samples: w.Samples[from:to], SampleRate: w.SampleRate, BitDepth: w.BitDepth}
}

// fullScale is the positive full-scale magnitude for the waveform's bit depth.
func (w *Waveform) fullScale() float64 {
	depth := w.BitDepth
	if depth <= 0 {
		depth = 16
	}
	return float64(int(1) << (depth - 1))
}

// ReadWAV decodes a mono WAV file produced by the normalizer.
func ReadWAV(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels != 1 {
		return nil, fmt.Errorf("expected mono wav, got %s", path)
	}

	depth := int(dec.BitDepth)
	if buf.SourceBitDepth > 0 {
		depth = buf.SourceBitDepth
	}
	return &Waveform{
		Samples:    buf.Data,
		SampleRate: buf.Format.SampleRate,
		BitDepth:   depth,
	}, nil
}

// WriteWAV encodes the sample window [from, to) of w to path.
func WriteWAV(path string, w *Waveform, from, to int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	depth := w.BitDepth
	if depth <= 0 {
		depth = 16
	}
	enc := wav.NewEncoder(f, w.SampleRate, depth, 1, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:           w.Samples[from:to],
		SourceBitDepth: depth,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}

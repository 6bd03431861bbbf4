package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrConversion = errors.New("audio: conversion failed")

// Normalizer converts arbitrary input audio to the canonical waveform the
// rest of the pipeline expects: mono, fixed sample rate, 16-bit linear PCM.
type Normalizer struct {
	// FFmpegPath overrides the binary looked up on PATH. Tests inject a stub.
	FFmpegPath string
	SampleRate int
}

func NewNormalizer(sampleRate int) *Normalizer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Normalizer{FFmpegPath: "ffmpeg", SampleRate: sampleRate}
}

// Normalize decodes inputPath and writes the canonical WAV to outputPath.
// The conversion goes through a temp file and an atomic rename, so a failed
// run never leaves partial output behind.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}

	tmp := outputPath + ".tmp"
	// ffmpeg -y -i input -ac 1 -ar rate -acodec pcm_s16le -f wav tmp
	cmd := exec.CommandContext(ctx, n.FFmpegPath,
		"-y", "-i", inputPath,
		"-ac", "1",
		"-ar", strconv.Itoa(n.SampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		"-loglevel", "error",
		tmp,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", ErrConversion, msg)
		}
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return nil
}

// Package pipeline orchestrates the full lifecycle of one call: normalize,
// segment, transcribe each chunk, persist results and finalize status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"callprep-platform/internal/audio"
	"callprep-platform/internal/calls"
	"callprep-platform/internal/transcribe"

	"github.com/google/uuid"
)

var ErrPersistence = errors.New("pipeline: persistence failed")

// Store is the slice of persistence the pipeline needs. FinalizeCall must
// replace the call's chunk set and commit the processed status atomically.
type Store interface {
	GetCall(ctx context.Context, id string) (calls.Call, error)
	UpdateCallStatus(ctx context.Context, id string, status calls.CallStatus) error
	FinalizeCall(ctx context.Context, id string, durationSeconds float64, chunks []calls.Chunk) error
}

// Normalizer converts an input recording to the canonical waveform.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outputPath string) error
}

// Splitter cuts a canonical waveform into chunk files.
type Splitter interface {
	Split(ctx context.Context, wavPath, outDir string, p audio.SplitParams) ([]audio.SegmentDescriptor, float64, error)
}

type Config struct {
	// ProcessedDir and ChunksDir get one subdirectory per call.
	ProcessedDir    string
	ChunksDir       string
	DefaultLanguage string
	Split           audio.SplitParams
}

// Pipeline owns the call state machine. All capabilities are injected and
// constructed once at worker startup; the pipeline holds no global state.
type Pipeline struct {
	store Store
	norm  Normalizer
	split Splitter
	stt   transcribe.Transcriber
	cfg   Config
	log   *slog.Logger
	clock func() time.Time
}

func New(store Store, norm Normalizer, split Splitter, stt transcribe.Transcriber, cfg Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "hi"
	}
	return &Pipeline{store: store, norm: norm, split: split, stt: stt, cfg: cfg, log: log, clock: time.Now}
}

// Process runs the state machine for one call:
//
//	uploaded -> processing -> processed | failed
//
// Processing is committed before any audio work so a crash mid-run is
// observable as stuck-in-processing. Re-running on such a call is safe:
// FinalizeCall supersedes any chunks a prior aborted run persisted.
//
// Failure policy: normalization, segmentation and persistence errors fail the
// whole call; a transcription error on one chunk keeps that chunk's transcript
// null and processing continues.
func (p *Pipeline) Process(ctx context.Context, callID string) error {
	log := p.log.With("call_id", callID)

	call, err := p.store.GetCall(ctx, callID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := p.store.UpdateCallStatus(ctx, callID, calls.CallStatusProcessing); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	log.Info("processing call", "file", call.FilePath)

	base := strings.TrimSuffix(filepath.Base(call.FilePath), filepath.Ext(call.FilePath))
	wavPath := filepath.Join(p.cfg.ProcessedDir, callID, base+".wav")
	if err := p.norm.Normalize(ctx, call.FilePath, wavPath); err != nil {
		return p.fail(ctx, log, callID, err)
	}

	descs, total, err := p.split.Split(ctx, wavPath, filepath.Join(p.cfg.ChunksDir, callID), p.cfg.Split)
	if err != nil {
		return p.fail(ctx, log, callID, err)
	}

	lang := call.Language
	if lang == "" {
		lang = p.cfg.DefaultLanguage
	}

	now := p.clock().UTC()
	chunks := make([]calls.Chunk, 0, len(descs))
	for _, d := range descs {
		text, err := p.stt.Transcribe(ctx, d.Path, lang)
		var original *string
		if err != nil {
			if ctx.Err() != nil {
				return p.fail(ctx, log, callID, fmt.Errorf("transcription interrupted: %w", ctx.Err()))
			}
			log.Warn("chunk transcription failed, keeping null transcript",
				"chunk_index", d.Index, "err", err)
		} else {
			t := text
			original = &t
		}
		chunks = append(chunks, calls.Chunk{
			ID:           uuid.NewString(),
			CallID:       callID,
			Index:        d.Index,
			FilePath:     d.Path,
			StartTime:    d.StartTime,
			EndTime:      d.EndTime,
			Duration:     d.Duration,
			OriginalText: original,
			SpeakerRole:  calls.SpeakerRoleUnknown,
			Status:       calls.ChunkStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := p.store.FinalizeCall(ctx, callID, total, chunks); err != nil {
		return p.fail(ctx, log, callID, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	log.Info("call processed", "chunks", len(chunks), "duration_sec", total)
	return nil
}

// fail marks the call failed and returns the cause. Partial chunk files and
// any previously persisted chunks stay in place, flagged by the failed status.
// The status write runs on a detached context so it survives the cancellation
// that may have caused the failure.
func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, callID string, cause error) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := p.store.UpdateCallStatus(sctx, callID, calls.CallStatusFailed); err != nil {
		log.Error("marking call failed did not stick", "err", err)
	}
	log.Error("call processing failed", "err", cause)
	return cause
}

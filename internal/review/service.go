package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"callprep-platform/internal/calls"
)

// Repository is the persistence contract for review records.
//
// It MUST be append-only.
// No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, rec Record) error
	ListByChunk(ctx context.Context, chunkID string) ([]Record, error)
}

// ChunkStore is the slice of the calls repository the review flow needs.
type ChunkStore interface {
	GetChunk(ctx context.Context, id string) (calls.Chunk, error)
	UpdateChunk(ctx context.Context, c calls.Chunk) error
}

var ErrInvalidReview = errors.New("review: invalid review")

// Input carries one annotation pass. Nil pointers leave the field untouched.
type Input struct {
	CorrectedText *string            `json:"corrected_text"`
	SpeakerRole   *calls.SpeakerRole `json:"speaker_role"`
	Status        *calls.ChunkStatus `json:"status"`
	Reviewer      string             `json:"reviewer"`
	Note          string             `json:"note"`
}

func (in Input) empty() bool {
	return in.CorrectedText == nil && in.SpeakerRole == nil && in.Status == nil
}

// Service applies annotator edits to chunks and keeps the append-only trail.
type Service struct {
	chunks ChunkStore
	repo   Repository
	log    *slog.Logger
	clock  func() time.Time
}

func NewService(chunks ChunkStore, repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{chunks: chunks, repo: repo, log: log, clock: time.Now}
}

// ApplyReview validates and applies one pass to a chunk, then appends the
// trail record. The chunk update is authoritative; the trail is best-effort.
func (s *Service) ApplyReview(ctx context.Context, chunkID string, in Input) (calls.Chunk, error) {
	if chunkID == "" {
		return calls.Chunk{}, fmt.Errorf("%w: chunk id is required", ErrInvalidReview)
	}
	if in.empty() {
		return calls.Chunk{}, fmt.Errorf("%w: no fields to change", ErrInvalidReview)
	}
	if in.SpeakerRole != nil && !in.SpeakerRole.Valid() {
		return calls.Chunk{}, fmt.Errorf("%w: unknown speaker role %q", ErrInvalidReview, *in.SpeakerRole)
	}
	if in.Status != nil && !in.Status.Valid() {
		return calls.Chunk{}, fmt.Errorf("%w: unknown chunk status %q", ErrInvalidReview, *in.Status)
	}

	chunk, err := s.chunks.GetChunk(ctx, chunkID)
	if err != nil {
		return calls.Chunk{}, err
	}

	changes := map[string]any{}
	if in.CorrectedText != nil {
		chunk.CorrectedText = in.CorrectedText
		changes["corrected_text"] = *in.CorrectedText
	}
	if in.SpeakerRole != nil {
		chunk.SpeakerRole = *in.SpeakerRole
		changes["speaker_role"] = *in.SpeakerRole
	}
	if in.Status != nil {
		chunk.Status = *in.Status
		changes["status"] = *in.Status
	}
	chunk.UpdatedAt = s.clock().UTC()

	if err := s.chunks.UpdateChunk(ctx, chunk); err != nil {
		return calls.Chunk{}, err
	}

	if s.repo != nil {
		payload, merr := json.Marshal(changes)
		if merr != nil {
			payload = []byte("{}")
		}
		rec := Record{
			ID:        uuid.NewString(),
			ChunkID:   chunk.ID,
			CallID:    chunk.CallID,
			Reviewer:  in.Reviewer,
			Note:      in.Note,
			Changes:   string(payload),
			CreatedAt: s.clock().UTC(),
		}
		if err := s.repo.Append(ctx, rec); err != nil {
			s.log.Warn("review trail append failed", "chunk_id", chunk.ID, "err", err)
		}
	}
	return chunk, nil
}

// History returns the trail for a chunk, oldest first.
func (s *Service) History(ctx context.Context, chunkID string) ([]Record, error) {
	if s.repo == nil {
		return []Record{}, nil
	}
	return s.repo.ListByChunk(ctx, chunkID)
}

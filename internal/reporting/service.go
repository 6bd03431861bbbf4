package reporting

import (
	"context"
	"errors"
	"time"

	"callprep-platform/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. Implementations should read
// committed call and chunk rows only; in-flight pipeline state is invisible
// until FinalizeCall lands.

type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time) ([]calls.Call, error)
	ListChunks(ctx context.Context, from, to time.Time, callID string) ([]calls.Chunk, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func validRange(r TimeRange) bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

func (s *Service) DatasetSummary(ctx context.Context, req DatasetSummaryRequest) (DatasetSummary, error) {
	if !validRange(req.Range) {
		return DatasetSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return DatasetSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return DatasetSummary{}, err
	}

	out := DatasetSummary{}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		switch c.Status {
		case calls.CallStatusUploaded:
			out.UploadedCalls++
		case calls.CallStatusProcessing:
			out.ProcessingCalls++
		case calls.CallStatusProcessed:
			out.ProcessedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / float64(out.TotalCalls)
	}
	return out, nil
}

func (s *Service) AnnotationProgress(ctx context.Context, req AnnotationProgressRequest) (AnnotationProgress, error) {
	if !validRange(req.Range) {
		return AnnotationProgress{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return AnnotationProgress{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListChunks(ctx, req.Range.From, req.Range.To, req.CallID)
	if err != nil {
		return AnnotationProgress{}, err
	}

	out := AnnotationProgress{CallID: req.CallID}
	for _, ch := range rows {
		out.TotalChunks++
		if ch.OriginalText != nil {
			out.TranscribedChunks++
		}
		if ch.CorrectedText != nil {
			out.CorrectedChunks++
		}
		switch ch.Status {
		case calls.ChunkStatusPending:
			out.PendingChunks++
		case calls.ChunkStatusReviewed:
			out.ReviewedChunks++
		case calls.ChunkStatusApproved:
			out.ApprovedChunks++
			out.ApprovedAudioSeconds += ch.Duration
		}
		switch ch.SpeakerRole {
		case calls.SpeakerRoleAgent:
			out.AgentChunks++
		case calls.SpeakerRoleCustomer:
			out.CustomerChunks++
		case calls.SpeakerRoleUnknown:
			out.UnknownSpeakerChunks++
		}
	}
	if out.TotalChunks > 0 {
		out.CompletionRate = float64(out.ReviewedChunks+out.ApprovedChunks) / float64(out.TotalChunks)
	}
	return out, nil
}

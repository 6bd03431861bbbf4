package calls

import "time"

// Call represents one uploaded call recording.
//
// Lifecycle invariant: the ingestion boundary creates a call in status
// "uploaded"; once the pipeline takes over the row, only the pipeline mutates
// it. "processed" and "failed" are terminal.
//
// NOTE: This is a domain model only. Transcription-engine specifics (model
// name, device, confidence scores) do not belong here.

type Call struct {
	ID               string `json:"id" db:"id"`
	OriginalFilename string `json:"original_filename" db:"original_filename"`
	FilePath         string `json:"file_path" db:"file_path"`
	FileSizeBytes    int64  `json:"file_size" db:"file_size"`

	// Language is the ISO 639-1 hint fed to the transcriber.
	Language string `json:"language" db:"language"`

	// DurationSeconds is filled by the pipeline after normalization.
	DurationSeconds float64 `json:"duration" db:"duration"`

	Status CallStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusUploaded   CallStatus = "uploaded"
	CallStatusProcessing CallStatus = "processing"
	CallStatusProcessed  CallStatus = "processed"
	CallStatusFailed     CallStatus = "failed"
)

func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusUploaded, CallStatusProcessing, CallStatusProcessed, CallStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further automatic transition occurs.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusProcessed, CallStatusFailed:
		return true
	case CallStatusUploaded, CallStatusProcessing:
		return false
	default:
		return false
	}
}

// Chunk is one bounded-duration slice of a call's audio.
//
// Invariants:
// - 0 <= StartTime < EndTime <= call duration; Duration == EndTime - StartTime.
// - Chunks of a call are non-overlapping and ordered by Index / StartTime.
// - Created by the pipeline; mutated afterwards only by the review workflow.
type Chunk struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`

	// Index is the zero-based position within the call; chunk files carry it
	// zero-padded so lexical order matches playback order.
	Index    int    `json:"index" db:"idx"`
	FilePath string `json:"file_path" db:"file_path"`

	StartTime float64 `json:"start_time" db:"start_time"`
	EndTime   float64 `json:"end_time" db:"end_time"`
	Duration  float64 `json:"duration" db:"duration"`

	// OriginalText is the machine transcript; nil when transcription failed
	// for this chunk (the call as a whole still processes).
	OriginalText *string `json:"original_text" db:"original_text"`
	// CorrectedText is filled by human review.
	CorrectedText *string `json:"corrected_text" db:"corrected_text"`

	SpeakerRole SpeakerRole `json:"speaker_role" db:"speaker_role"`
	Status      ChunkStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ChunkStatus string

const (
	ChunkStatusPending  ChunkStatus = "pending"
	ChunkStatusReviewed ChunkStatus = "reviewed"
	ChunkStatusApproved ChunkStatus = "approved"
)

func (s ChunkStatus) Valid() bool {
	switch s {
	case ChunkStatusPending, ChunkStatusReviewed, ChunkStatusApproved:
		return true
	default:
		return false
	}
}

type SpeakerRole string

const (
	SpeakerRoleAgent    SpeakerRole = "agent"
	SpeakerRoleCustomer SpeakerRole = "customer"
	SpeakerRoleUnknown  SpeakerRole = "unknown"
)

func (r SpeakerRole) Valid() bool {
	switch r {
	case SpeakerRoleAgent, SpeakerRoleCustomer, SpeakerRoleUnknown:
		return true
	default:
		return false
	}
}

package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DatasetSummaryRequest requests aggregated ingestion metrics over a window.

type DatasetSummaryRequest struct {
	Range TimeRange `json:"range"`
}

type DatasetSummary struct {
	TotalCalls      int `json:"total_calls"`
	UploadedCalls   int `json:"uploaded_calls"`
	ProcessingCalls int `json:"processing_calls"`
	ProcessedCalls  int `json:"processed_calls"`
	FailedCalls     int `json:"failed_calls"`

	TotalDurationSeconds   float64 `json:"total_duration_seconds"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
}

// AnnotationProgressRequest requests chunk-level annotation metrics.
// CallID narrows the report to one call when set.

type AnnotationProgressRequest struct {
	Range  TimeRange `json:"range"`
	CallID string    `json:"call_id,omitempty"`
}

type AnnotationProgress struct {
	CallID string `json:"call_id,omitempty"`

	TotalChunks    int `json:"total_chunks"`
	PendingChunks  int `json:"pending_chunks"`
	ReviewedChunks int `json:"reviewed_chunks"`
	ApprovedChunks int `json:"approved_chunks"`

	// TranscribedChunks counts chunks with a machine transcript; the gap to
	// TotalChunks is the transcription failure backlog.
	TranscribedChunks int `json:"transcribed_chunks"`
	CorrectedChunks   int `json:"corrected_chunks"`

	AgentChunks          int `json:"agent_chunks"`
	CustomerChunks       int `json:"customer_chunks"`
	UnknownSpeakerChunks int `json:"unknown_speaker_chunks"`

	// ApprovedAudioSeconds is the training-ready audio volume.
	ApprovedAudioSeconds float64 `json:"approved_audio_seconds"`
	CompletionRate       float64 `json:"completion_rate"`
}

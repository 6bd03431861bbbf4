// Package transcribe defines the capability interface the pipeline uses to
// turn chunk audio into text, plus adapters for concrete engines.
package transcribe

import (
	"context"
	"errors"
)

// ErrTranscription marks an unrecoverable engine or input failure. The
// pipeline treats it as recoverable per chunk: the chunk keeps a null
// transcript and processing continues.
var ErrTranscription = errors.New("transcribe: transcription failed")

// Transcriber is a black box to the pipeline. Implementations may batch,
// VAD-filter or beam-search internally; none of that leaks through here.
//
// Contract: genuinely silent or unintelligible audio yields an empty string
// and a nil error, not an ErrTranscription.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

package review

import "time"

// Record is an immutable, append-only trail of one annotation pass over a
// chunk.
//
// Invariants:
// - Records are never updated or deleted.
// - chunk_id is required; the chunk row itself holds the current state,
//   records hold the history.
// - Recording is best-effort; a chunk edit must not be rolled back because
//   the trail write failed.

type Record struct {
	ID      string `json:"id" db:"id"`
	ChunkID string `json:"chunk_id" db:"chunk_id"`
	CallID  string `json:"call_id" db:"call_id"`

	// Reviewer is a free-form annotator identifier (initials, email, tool id).
	Reviewer string `json:"reviewer,omitempty" db:"reviewer"`

	// Note is a short human-readable remark from the annotator.
	Note string `json:"note,omitempty" db:"note"`

	// Changes is a JSON object describing the fields touched by this pass.
	Changes string `json:"changes,omitempty" db:"changes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

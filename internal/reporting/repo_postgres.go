package reporting

import (
	"context"
	"database/sql"
	"time"

	"callprep-platform/internal/calls"
)

// PostgresRepo reads the calls and chunks tables directly. Reporting queries
// are read-only and tolerate concurrent pipeline writes.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, from, to time.Time) ([]calls.Call, error) {
	const q = `
SELECT id, original_filename, file_path, file_size, language, duration, status, created_at, updated_at
FROM calls
WHERE created_at >= $1 AND created_at < $2
`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]calls.Call, 0)
	for rows.Next() {
		var c calls.Call
		if err := rows.Scan(
			&c.ID,
			&c.OriginalFilename,
			&c.FilePath,
			&c.FileSizeBytes,
			&c.Language,
			&c.DurationSeconds,
			&c.Status,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListChunks(ctx context.Context, from, to time.Time, callID string) ([]calls.Chunk, error) {
	q := `
SELECT id, call_id, idx, file_path, start_time, end_time, duration,
       original_text, corrected_text, speaker_role, status, created_at, updated_at
FROM chunks
WHERE created_at >= $1 AND created_at < $2
`
	args := []any{from, to}
	if callID != "" {
		q += ` AND call_id = $3`
		args = append(args, callID)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]calls.Chunk, 0)
	for rows.Next() {
		var ch calls.Chunk
		if err := rows.Scan(
			&ch.ID,
			&ch.CallID,
			&ch.Index,
			&ch.FilePath,
			&ch.StartTime,
			&ch.EndTime,
			&ch.Duration,
			&ch.OriginalText,
			&ch.CorrectedText,
			&ch.SpeakerRole,
			&ch.Status,
			&ch.CreatedAt,
			&ch.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

var _ Repository = (*PostgresRepo)(nil)

package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"callprep-platform/pkg/utils"
)

var ErrNotFound = errors.New("calls: not found")

// Repository is the persistence contract shared by the API, the pipeline and
// the review workflow.
//
// ReplaceChunks semantics: FinalizeCall must atomically remove any chunks a
// prior (aborted) run persisted for the call and insert the new set, so that
// at-least-once job delivery never duplicates chunks.
type Repository interface {
	CreateCall(ctx context.Context, c Call) error
	GetCall(ctx context.Context, id string) (Call, error)
	ListCalls(ctx context.Context, limit, offset int) ([]Call, error)
	UpdateCallStatus(ctx context.Context, id string, status CallStatus) error
	FinalizeCall(ctx context.Context, id string, durationSeconds float64, chunks []Chunk) error

	GetChunk(ctx context.Context, id string) (Chunk, error)
	ListChunks(ctx context.Context, f ChunkFilter) ([]Chunk, error)
	UpdateChunk(ctx context.Context, c Chunk) error
}

// ChunkFilter narrows ListChunks. Zero values mean "no filter".
type ChunkFilter struct {
	CallID      string
	Status      ChunkStatus
	SpeakerRole SpeakerRole
	Limit       int
	Offset      int
}

// PostgresRepo implements Repository on database/sql (pgx stdlib driver).
//
// Assumed tables: calls, chunks (chunks.call_id → calls.id ON DELETE CASCADE,
// UNIQUE (call_id, idx)).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `id, original_filename, file_path, file_size, language, duration, status, created_at, updated_at`

func scanCall(row interface{ Scan(dest ...any) error }) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.OriginalFilename,
		&c.FilePath,
		&c.FileSizeBytes,
		&c.Language,
		&c.DurationSeconds,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *PostgresRepo) CreateCall(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (id, original_filename, file_path, file_size, language, duration, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.OriginalFilename,
		c.FilePath,
		c.FileSizeBytes,
		c.Language,
		c.DurationSeconds,
		c.Status,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) GetCall(ctx context.Context, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ListCalls(ctx context.Context, limit, offset int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + callColumns + ` FROM calls ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateCallStatus(ctx context.Context, id string, status CallStatus) error {
	if !status.Valid() {
		return fmt.Errorf("calls: invalid status %q", status)
	}
	const q = `UPDATE calls SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, status, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FinalizeCall commits a completed pipeline run in one transaction: the call's
// duration and processed status, plus delete-and-insert of its chunk set.
// A concurrent reader never observes the transition half-done.
func (r *PostgresRepo) FinalizeCall(ctx context.Context, id string, durationSeconds float64, chunks []Chunk) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const upd = `UPDATE calls SET duration = $2, status = $3, updated_at = $4 WHERE id = $1`
		res, err := tx.ExecContext(ctx, upd, id, durationSeconds, CallStatusProcessed, time.Now().UTC())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE call_id = $1`, id); err != nil {
			return err
		}

		const ins = `
INSERT INTO chunks (id, call_id, idx, file_path, start_time, end_time, duration,
                    original_text, corrected_text, speaker_role, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
		for _, c := range chunks {
			if _, err := tx.ExecContext(ctx, ins,
				c.ID,
				c.CallID,
				c.Index,
				c.FilePath,
				c.StartTime,
				c.EndTime,
				c.Duration,
				c.OriginalText,
				c.CorrectedText,
				c.SpeakerRole,
				c.Status,
				c.CreatedAt,
				c.UpdatedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

const chunkColumns = `id, call_id, idx, file_path, start_time, end_time, duration,
original_text, corrected_text, speaker_role, status, created_at, updated_at`

func scanChunk(row interface{ Scan(dest ...any) error }) (Chunk, error) {
	var c Chunk
	err := row.Scan(
		&c.ID,
		&c.CallID,
		&c.Index,
		&c.FilePath,
		&c.StartTime,
		&c.EndTime,
		&c.Duration,
		&c.OriginalText,
		&c.CorrectedText,
		&c.SpeakerRole,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *PostgresRepo) GetChunk(ctx context.Context, id string) (Chunk, error) {
	q := `SELECT ` + chunkColumns + ` FROM chunks WHERE id = $1`
	c, err := scanChunk(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chunk{}, ErrNotFound
		}
		return Chunk{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ListChunks(ctx context.Context, f ChunkFilter) ([]Chunk, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}

	q := `SELECT ` + chunkColumns + ` FROM chunks WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.CallID != "" {
		q += ` AND call_id = ` + arg(f.CallID)
	}
	if f.Status != "" {
		q += ` AND status = ` + arg(f.Status)
	}
	if f.SpeakerRole != "" {
		q += ` AND speaker_role = ` + arg(f.SpeakerRole)
	}
	q += ` ORDER BY call_id, idx LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Chunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateChunk(ctx context.Context, c Chunk) error {
	const q = `
UPDATE chunks
SET corrected_text = $2, speaker_role = $3, status = $4, updated_at = $5
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, c.ID, c.CorrectedText, c.SpeakerRole, c.Status, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

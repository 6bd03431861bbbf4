package review

import (
	"context"
	"database/sql"
)

// PostgresRepo stores review records in an insert-only table.
//
// Assumed table: chunk_reviews (chunk_reviews.chunk_id → chunks.id
// ON DELETE CASCADE). No UPDATE/DELETE statements exist here on purpose.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO chunk_reviews (id, chunk_id, call_id, reviewer, note, changes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.ChunkID,
		rec.CallID,
		rec.Reviewer,
		rec.Note,
		rec.Changes,
		rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByChunk(ctx context.Context, chunkID string) ([]Record, error) {
	const q = `
SELECT id, chunk_id, call_id, reviewer, note, changes, created_at
FROM chunk_reviews
WHERE chunk_id = $1
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, chunkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.ChunkID,
			&rec.CallID,
			&rec.Reviewer,
			&rec.Note,
			&rec.Changes,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ Repository = (*PostgresRepo)(nil)

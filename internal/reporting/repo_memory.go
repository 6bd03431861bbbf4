package reporting

import (
	"context"
	"sync"
	"time"

	"callprep-platform/internal/calls"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early
// development.

type MemoryRepo struct {
	mu sync.Mutex

	Calls  []calls.Call
	Chunks []calls.Chunk
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func inRange(at time.Time, from, to time.Time) bool {
	if at.IsZero() {
		return true
	}
	return !at.Before(from) && at.Before(to)
}

func (r *MemoryRepo) ListCalls(ctx context.Context, from, to time.Time) ([]calls.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if !inRange(c.CreatedAt, from, to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListChunks(ctx context.Context, from, to time.Time, callID string) ([]calls.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Chunk, 0)
	for _, ch := range r.Chunks {
		if !inRange(ch.CreatedAt, from, to) {
			continue
		}
		if callID != "" && ch.CallID != callID {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

var _ Repository = (*MemoryRepo)(nil)

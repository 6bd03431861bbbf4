package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory Repository for tests and early development.
// FinalizeCall mirrors the transactional delete-and-insert of the Postgres
// implementation so idempotence tests exercise the same semantics.

type MemoryRepo struct {
	mu sync.Mutex

	Calls  map[string]Call
	Chunks map[string]Chunk
}

var _ Repository = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Calls: map[string]Call{}, Chunks: map[string]Chunk{}}
}

func (r *MemoryRepo) CreateCall(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls[c.ID] = c
	return nil
}

func (r *MemoryRepo) GetCall(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListCalls(ctx context.Context, limit, offset int) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	all := make([]Call, 0, len(r.Calls))
	for _, c := range r.Calls {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []Call{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryRepo) UpdateCallStatus(ctx context.Context, id string, status CallStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Calls[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	r.Calls[id] = c
	return nil
}

func (r *MemoryRepo) FinalizeCall(ctx context.Context, id string, durationSeconds float64, chunks []Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Calls[id]
	if !ok {
		return ErrNotFound
	}
	for cid, ch := range r.Chunks {
		if ch.CallID == id {
			delete(r.Chunks, cid)
		}
	}
	for _, ch := range chunks {
		r.Chunks[ch.ID] = ch
	}
	c.DurationSeconds = durationSeconds
	c.Status = CallStatusProcessed
	c.UpdatedAt = time.Now().UTC()
	r.Calls[id] = c
	return nil
}

func (r *MemoryRepo) GetChunk(ctx context.Context, id string) (Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Chunks[id]
	if !ok {
		return Chunk{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListChunks(ctx context.Context, f ChunkFilter) ([]Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.Limit <= 0 {
		f.Limit = 100
	}
	out := make([]Chunk, 0)
	for _, c := range r.Chunks {
		if f.CallID != "" && c.CallID != f.CallID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.SpeakerRole != "" && c.SpeakerRole != f.SpeakerRole {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CallID != out[j].CallID {
			return out[i].CallID < out[j].CallID
		}
		return out[i].Index < out[j].Index
	})
	if f.Offset >= len(out) {
		return []Chunk{}, nil
	}
	end := f.Offset + f.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[f.Offset:end], nil
}

func (r *MemoryRepo) UpdateChunk(ctx context.Context, c Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.Chunks[c.ID]
	if !ok {
		return ErrNotFound
	}
	cur.CorrectedText = c.CorrectedText
	cur.SpeakerRole = c.SpeakerRole
	cur.Status = c.Status
	cur.UpdatedAt = time.Now().UTC()
	r.Chunks[c.ID] = cur
	return nil
}

// ChunksOf returns a call's chunks ordered by index. Test helper.
func (r *MemoryRepo) ChunksOf(callID string) []Chunk {
	out, _ := r.ListChunks(context.Background(), ChunkFilter{CallID: callID, Limit: len(r.Chunks) + 1})
	return out
}

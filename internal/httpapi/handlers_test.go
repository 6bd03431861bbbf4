package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"callprep-platform/internal/calls"
	"callprep-platform/internal/reporting"
	"callprep-platform/internal/review"
)

type fakeSubmitter struct {
	submitted []string
	err       error
}

func (f *fakeSubmitter) Submit(ctx context.Context, callID string) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, callID)
	return nil
}

type env struct {
	repo    *calls.MemoryRepo
	jobs    *fakeSubmitter
	router  *gin.Engine
	uploads string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := calls.NewMemoryRepo()
	jobs := &fakeSubmitter{}
	uploads := t.TempDir()

	reports := reporting.NewMemoryRepo()
	h := Handlers{
		Repo:      repo,
		Review:    review.NewService(repo, review.NewMemoryRepo(), nil),
		Reports:   reporting.NewService(reports),
		Jobs:      jobs,
		UploadDir: uploads,
	}

	r := gin.New()
	v1 := r.Group("/v1")
	v1.POST("/calls", h.UploadCall)
	v1.GET("/calls", h.ListCalls)
	v1.GET("/calls/:call_id", h.GetCall)
	v1.POST("/calls/:call_id/reprocess", h.ReprocessCall)
	v1.GET("/calls/:call_id/chunks", h.ListCallChunks)
	v1.GET("/chunks", h.ListChunks)
	v1.GET("/chunks/:chunk_id", h.GetChunk)
	v1.PATCH("/chunks/:chunk_id", h.ReviewChunk)
	v1.GET("/chunks/:chunk_id/history", h.ChunkHistory)
	v1.GET("/chunks/:chunk_id/audio", h.ChunkAudio)
	v1.GET("/reports/dataset", h.DatasetSummary)
	v1.GET("/reports/annotation", h.AnnotationProgress)

	return &env{repo: repo, jobs: jobs, router: r, uploads: uploads}
}

func multipartUpload(t *testing.T, filename string, language string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("fake audio bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func TestUploadCall_AcceptsAndQueues(t *testing.T) {
	e := newEnv(t)
	body, ctype := multipartUpload(t, "sales-call.mp3", "hi")

	req := httptest.NewRequest(http.MethodPost, "/v1/calls", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var got calls.Call
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.OriginalFilename != "sales-call.mp3" || got.Language != "hi" {
		t.Fatalf("unexpected call: %+v", got)
	}
	if got.Status != calls.CallStatusUploaded {
		t.Fatalf("expected uploaded status, got %s", got.Status)
	}

	if len(e.jobs.submitted) != 1 || e.jobs.submitted[0] != got.ID {
		t.Fatalf("expected job submitted for %s, got %v", got.ID, e.jobs.submitted)
	}
	if _, err := e.repo.GetCall(context.Background(), got.ID); err != nil {
		t.Fatalf("call row missing: %v", err)
	}
	// The stored file uses a server-side name, not the client filename.
	if filepath.Base(got.FilePath) != got.ID+".mp3" {
		t.Fatalf("unexpected stored name: %s", got.FilePath)
	}
	if _, err := os.Stat(got.FilePath); err != nil {
		t.Fatalf("upload not on disk: %v", err)
	}
}

func TestUploadCall_RejectsUnsupportedFormat(t *testing.T) {
	e := newEnv(t)
	body, ctype := multipartUpload(t, "notes.txt", "")

	req := httptest.NewRequest(http.MethodPost, "/v1/calls", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(e.jobs.submitted) != 0 {
		t.Fatalf("nothing should be queued")
	}
}

func TestUploadCall_MissingFile(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/calls", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetCall_NotFound(t *testing.T) {
	e := newEnv(t)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/calls/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReprocessCall(t *testing.T) {
	e := newEnv(t)
	now := time.Now().UTC()
	_ = e.repo.CreateCall(context.Background(), calls.Call{ID: "c1", Status: calls.CallStatusFailed, CreatedAt: now, UpdatedAt: now})
	_ = e.repo.CreateCall(context.Background(), calls.Call{ID: "c2", Status: calls.CallStatusProcessing, CreatedAt: now, UpdatedAt: now})

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/calls/c1/reprocess", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for failed call, got %d", rec.Code)
	}
	if len(e.jobs.submitted) != 1 || e.jobs.submitted[0] != "c1" {
		t.Fatalf("expected c1 requeued, got %v", e.jobs.submitted)
	}

	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/calls/c2/reprocess", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for in-flight call, got %d", rec.Code)
	}
}

func seedChunk(e *env, id, callID string) {
	text := "machine transcript"
	e.repo.Chunks[id] = calls.Chunk{
		ID:           id,
		CallID:       callID,
		FilePath:     filepath.Join(e.uploads, id+".wav"),
		Duration:     10,
		OriginalText: &text,
		SpeakerRole:  calls.SpeakerRoleUnknown,
		Status:       calls.ChunkStatusPending,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestReviewChunk_AppliesPatch(t *testing.T) {
	e := newEnv(t)
	seedChunk(e, "ch1", "c1")

	payload := `{"corrected_text":"fixed","speaker_role":"agent","status":"reviewed","reviewer":"qa-1"}`
	req := httptest.NewRequest(http.MethodPatch, "/v1/chunks/ch1", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored, _ := e.repo.GetChunk(context.Background(), "ch1")
	if stored.CorrectedText == nil || *stored.CorrectedText != "fixed" {
		t.Fatalf("patch not applied: %+v", stored)
	}
	if stored.SpeakerRole != calls.SpeakerRoleAgent || stored.Status != calls.ChunkStatusReviewed {
		t.Fatalf("patch not applied: %+v", stored)
	}

	// Trail is readable back through the API.
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chunks/ch1/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var hist struct {
		Reviews []review.Record `json:"reviews"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Reviews) != 1 || hist.Reviews[0].Reviewer != "qa-1" {
		t.Fatalf("unexpected history: %+v", hist.Reviews)
	}
}

func TestReviewChunk_RejectsBadEnum(t *testing.T) {
	e := newEnv(t)
	seedChunk(e, "ch1", "c1")

	payload := `{"speaker_role":"narrator"}`
	req := httptest.NewRequest(http.MethodPatch, "/v1/chunks/ch1", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListCallChunks_FilterValidation(t *testing.T) {
	e := newEnv(t)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/calls/c1/chunks?status=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListChunks_QueryFilter(t *testing.T) {
	e := newEnv(t)
	seedChunk(e, "ch1", "c1")
	seedChunk(e, "ch2", "c2")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chunks?call_id=c1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		Chunks []calls.Chunk `json:"chunks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Chunks) != 1 || out.Chunks[0].ID != "ch1" {
		t.Fatalf("expected only c1 chunks, got %+v", out.Chunks)
	}
}

func TestChunkAudio_ServesFile(t *testing.T) {
	e := newEnv(t)
	seedChunk(e, "ch1", "c1")
	path := e.repo.Chunks["ch1"].FilePath
	if err := os.WriteFile(path, []byte("RIFFxxxx"), 0o644); err != nil {
		t.Fatalf("write chunk file: %v", err)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chunks/ch1/audio", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("expected audio/wav, got %s", ct)
	}
}

func TestChunkAudio_MissingOnDisk(t *testing.T) {
	e := newEnv(t)
	seedChunk(e, "ch1", "c1")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chunks/ch1/audio", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDatasetSummary_BadRange(t *testing.T) {
	e := newEnv(t)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/reports/dataset?from=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDatasetSummary_DefaultsRange(t *testing.T) {
	e := newEnv(t)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/reports/dataset", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

package httpapi

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"callprep-platform/internal/calls"
	"callprep-platform/internal/jobs"
	"callprep-platform/internal/reporting"
	"callprep-platform/internal/review"
	"callprep-platform/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Repo    calls.Repository
	Review  *review.Service
	Reports *reporting.Service
	Jobs    jobs.Submitter

	UploadDir      string
	MaxUploadBytes int64
}

// allowedExtensions are the upload formats ffmpeg is known to decode here.
var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
}

const defaultMaxUploadBytes = 512 << 20

// --- Calls ---

// UploadCall accepts a multipart recording, persists the call row and queues
// processing. The upload is accepted (202) before the pipeline runs.
func (h Handlers) UploadCall(c *gin.Context) {
	if h.Repo == nil || h.Jobs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "upload not configured"})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' required"})
		return
	}

	maxBytes := h.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	if fh.Size > maxBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unsupported audio format " + ext})
		return
	}

	language := strings.TrimSpace(c.PostForm("language"))

	id := uuid.NewString()
	// Uploads get a server-side name; the client filename is recorded but
	// never used as a path.
	dst := filepath.Join(h.UploadDir, id+ext)
	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storing upload failed"})
		return
	}
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		logger.FromGin(c).Error("saving upload failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storing upload failed"})
		return
	}

	now := time.Now().UTC()
	call := calls.Call{
		ID:               id,
		OriginalFilename: filepath.Base(fh.Filename),
		FilePath:         dst,
		FileSizeBytes:    fh.Size,
		Language:         language,
		Status:           calls.CallStatusUploaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.Repo.CreateCall(c.Request.Context(), call); err != nil {
		logger.FromGin(c).Error("creating call failed", "err", err)
		_ = os.Remove(dst)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "creating call failed"})
		return
	}

	if err := h.Jobs.Submit(c.Request.Context(), id); err != nil {
		// The row and file stay; a reprocess request can requeue the call.
		logger.FromGin(c).Error("queueing call failed", "call_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "queueing call failed"})
		return
	}

	c.JSON(http.StatusAccepted, call)
}

func (h Handlers) ListCalls(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	out, err := h.Repo.ListCalls(c.Request.Context(), limit, offset)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing calls failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h Handlers) GetCall(c *gin.Context) {
	call, err := h.Repo.GetCall(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		abortRepoErr(c, err, "fetching call failed")
		return
	}
	c.JSON(http.StatusOK, call)
}

// ReprocessCall requeues a call whose pipeline run failed (or needs a rerun
// after retuning). Finalization replaces prior chunks, so reruns are safe.
func (h Handlers) ReprocessCall(c *gin.Context) {
	if h.Jobs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "queue not configured"})
		return
	}
	id := c.Param("call_id")
	call, err := h.Repo.GetCall(c.Request.Context(), id)
	if err != nil {
		abortRepoErr(c, err, "fetching call failed")
		return
	}
	if call.Status == calls.CallStatusProcessing {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call is already processing"})
		return
	}
	if err := h.Jobs.Submit(c.Request.Context(), id); err != nil {
		logger.FromGin(c).Error("queueing call failed", "call_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "queueing call failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "call_id": id})
}

// --- Chunks ---

func (h Handlers) ListCallChunks(c *gin.Context) {
	h.listChunks(c, c.Param("call_id"))
}

// ListChunks is the cross-call listing; call_id narrows it via query.
func (h Handlers) ListChunks(c *gin.Context) {
	h.listChunks(c, c.Query("call_id"))
}

func (h Handlers) listChunks(c *gin.Context, callID string) {
	f := calls.ChunkFilter{
		CallID:      callID,
		Status:      calls.ChunkStatus(c.Query("status")),
		SpeakerRole: calls.SpeakerRole(c.Query("speaker_role")),
		Limit:       intQuery(c, "limit", 100),
		Offset:      intQuery(c, "offset", 0),
	}
	if f.Status != "" && !f.Status.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}
	if f.SpeakerRole != "" && !f.SpeakerRole.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown speaker_role filter"})
		return
	}
	out, err := h.Repo.ListChunks(c.Request.Context(), f)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing chunks failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": out})
}

func (h Handlers) GetChunk(c *gin.Context) {
	chunk, err := h.Repo.GetChunk(c.Request.Context(), c.Param("chunk_id"))
	if err != nil {
		abortRepoErr(c, err, "fetching chunk failed")
		return
	}
	c.JSON(http.StatusOK, chunk)
}

// ReviewChunk applies an annotation pass: corrected text, speaker role
// and/or review status.
func (h Handlers) ReviewChunk(c *gin.Context) {
	if h.Review == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "review not configured"})
		return
	}
	var in review.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	chunk, err := h.Review.ApplyReview(c.Request.Context(), c.Param("chunk_id"), in)
	if err != nil {
		if errors.Is(err, review.ErrInvalidReview) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		abortRepoErr(c, err, "updating chunk failed")
		return
	}
	c.JSON(http.StatusOK, chunk)
}

func (h Handlers) ChunkHistory(c *gin.Context) {
	if h.Review == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "review not configured"})
		return
	}
	recs, err := h.Review.History(c.Request.Context(), c.Param("chunk_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "fetching history failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": recs})
}

// ChunkAudio streams the chunk WAV for annotator playback.
func (h Handlers) ChunkAudio(c *gin.Context) {
	chunk, err := h.Repo.GetChunk(c.Request.Context(), c.Param("chunk_id"))
	if err != nil {
		abortRepoErr(c, err, "fetching chunk failed")
		return
	}
	if _, err := os.Stat(chunk.FilePath); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "chunk audio missing on disk"})
		return
	}
	c.Header("Content-Type", "audio/wav")
	c.File(chunk.FilePath)
}

// --- Reports ---

func (h Handlers) DatasetSummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	r, ok := timeRangeQuery(c)
	if !ok {
		return
	}
	out, err := h.Reports.DatasetSummary(c.Request.Context(), reporting.DatasetSummaryRequest{Range: r})
	if err != nil {
		abortReportErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) AnnotationProgress(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	r, ok := timeRangeQuery(c)
	if !ok {
		return
	}
	out, err := h.Reports.AnnotationProgress(c.Request.Context(), reporting.AnnotationProgressRequest{
		Range:  r,
		CallID: c.Query("call_id"),
	})
	if err != nil {
		abortReportErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- helpers ---

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// timeRangeQuery parses from/to query params (RFC 3339). Missing values
// default to the trailing 30 days.
func timeRangeQuery(c *gin.Context) (reporting.TimeRange, bool) {
	now := time.Now().UTC()
	r := reporting.TimeRange{From: now.AddDate(0, 0, -30), To: now}

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return reporting.TimeRange{}, false
		}
		r.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return reporting.TimeRange{}, false
		}
		r.To = t
	}
	return r, true
}

func abortRepoErr(c *gin.Context, err error, msg string) {
	if errors.Is(err, calls.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	logger.FromGin(c).Error(msg, "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func abortReportErr(c *gin.Context, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid report range"})
		return
	}
	logger.FromGin(c).Error("report failed", "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
}

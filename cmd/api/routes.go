package main

import (
	"github.com/gin-gonic/gin"

	"callprep-platform/internal/httpapi"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		// CALLS routes: ingestion and pipeline state.
		callsGroup := v1.Group("/calls")
		{
			callsGroup.POST("", h.UploadCall)
			callsGroup.GET("", h.ListCalls)
			callsGroup.GET("/:call_id", h.GetCall)
			callsGroup.POST("/:call_id/reprocess", h.ReprocessCall)
			callsGroup.GET("/:call_id/chunks", h.ListCallChunks)
		}

		// CHUNKS routes: annotation workflow.
		chunks := v1.Group("/chunks")
		{
			chunks.GET("", h.ListChunks)
			chunks.GET("/:chunk_id", h.GetChunk)
			chunks.PATCH("/:chunk_id", h.ReviewChunk)
			chunks.GET("/:chunk_id/history", h.ChunkHistory)
			chunks.GET("/:chunk_id/audio", h.ChunkAudio)
		}

		// REPORTS routes: dataset and annotation progress.
		reports := v1.Group("/reports")
		{
			reports.GET("/dataset", h.DatasetSummary)
			reports.GET("/annotation", h.AnnotationProgress)
		}
	}
}

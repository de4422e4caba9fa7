package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/tunevault-go/internal/app"
)

// JobHandler handles download-job HTTP requests
type JobHandler struct {
	orchestrator *app.Orchestrator
	logger       *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(orchestrator *app.Orchestrator, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// AddJobRequest represents a request to start a single download
type AddJobRequest struct {
	URL string `json:"url" binding:"required"`
}

// AddBatchRequest represents a request to download a playlist
type AddBatchRequest struct {
	URL              string   `json:"url" binding:"required"`
	SelectedIDs      []string `json:"selected_ids,omitempty"`
	CreateCollection bool     `json:"create_collection,omitempty"`
	CollectionName   string   `json:"collection_name,omitempty"`
}

// AddJob handles POST /api/v1/jobs
func (h *JobHandler) AddJob(c *gin.Context) {
	var req AddJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.orchestrator.StartJob(req.URL)
	if err != nil {
		h.logger.Error("Failed to start job", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, job)
}

// AddBatch handles POST /api/v1/jobs/batch
func (h *JobHandler) AddBatch(c *gin.Context) {
	var req AddBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.orchestrator.StartBatch(c.Request.Context(), req.URL, app.BatchOptions{
		SelectedIDs:      req.SelectedIDs,
		CreateCollection: req.CreateCollection,
		CollectionName:   req.CollectionName,
	})
	if err != nil {
		h.logger.Error("Failed to start batch", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.orchestrator.GetJob(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs, err := h.orchestrator.ListJobs()
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// GetStats handles GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.orchestrator.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.orchestrator.CancelJob(id); err != nil {
		h.logger.Warn("Failed to cancel job", zap.String("id", id), zap.Error(err))
		c.JSON(statusForJobError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested"})
}

// RetryJob handles POST /api/v1/jobs/:id/retry
func (h *JobHandler) RetryJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.orchestrator.RetryJob(id)
	if err != nil {
		h.logger.Warn("Failed to retry job", zap.String("id", id), zap.Error(err))
		c.JSON(statusForJobError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, job)
}

// DeleteJob handles DELETE /api/v1/jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.orchestrator.DeleteJob(id); err != nil {
		h.logger.Warn("Failed to delete job", zap.String("id", id), zap.Error(err))
		c.JSON(statusForJobError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job deleted"})
}

// GetCollection handles GET /api/v1/collections/:id
func (h *JobHandler) GetCollection(c *gin.Context) {
	media, err := h.orchestrator.ListCollection(c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to list collection", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, media)
}

// VideoPreview handles GET /api/v1/preview/video?url=...
func (h *JobHandler) VideoPreview(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	preview, err := h.orchestrator.VideoPreview(c.Request.Context(), url)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, preview)
}

// PlaylistPreview handles GET /api/v1/preview/playlist?url=...
func (h *JobHandler) PlaylistPreview(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	preview, err := h.orchestrator.PlaylistPreview(c.Request.Context(), url)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, preview)
}

// statusForJobError maps orchestrator errors onto HTTP status codes
func statusForJobError(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "terminal state"),
		strings.Contains(msg, "already completed"),
		strings.Contains(msg, "cannot delete"),
		strings.Contains(msg, "not in a terminal"):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

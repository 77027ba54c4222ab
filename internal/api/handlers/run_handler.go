package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/visionbatch/internal/pipeline"
	"github.com/andresuchdata/visionbatch/internal/service"
)

type RunHandler struct {
	runService *service.RunService
}

func NewRunHandler(runService *service.RunService) *RunHandler {
	return &RunHandler{runService: runService}
}

// ListRuns returns the most recent runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit := service.DefaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	runs, err := h.runService.ListRuns(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}

// GetRun returns a single run
func (h *RunHandler) GetRun(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	run, err := h.runService.GetRun(c.Request.Context(), id)
	if err != nil {
		respondRunError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}

// GetRunImages returns a run with its per-image outcomes
func (h *RunHandler) GetRunImages(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	detail, err := h.runService.GetRunImages(c.Request.Context(), id)
	if err != nil {
		respondRunError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func runID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return 0, false
	}
	return id, true
}

func respondRunError(c *gin.Context, id int64, err error) {
	if errors.Is(err, pipeline.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	log.Error().Err(err).Int64("run_id", id).Msg("failed to fetch run")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch run"})
}

package handlers

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cinematch/backend/internal/errors"
	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/models"
	"github.com/cinematch/backend/internal/util"
)

type forceUpdateRequest struct {
	UpdateType string `json:"update_type" binding:"required"`
}

// ForceModelUpdate triggers an immediate model rebuild.
// POST /api/v1/admin/models/update
// Body: {"update_type": "full_retrain"} or {"update_type": "warm_start"}
//
// The rebuild runs synchronously so the caller sees the outcome; operators
// use this after bulk imports rather than waiting for the rating threshold.
func (h *Handlers) ForceModelUpdate(c *gin.Context) {
	var req forceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid update payload")
		return
	}

	start := time.Now()
	if err := h.svc.Scheduler().ForceUpdate(req.UpdateType); err != nil {
		var apiErr *errors.APIError
		if stderrors.As(err, &apiErr) {
			util.RespondWithAPIError(c, apiErr)
			return
		}
		if errors.IsInsufficientData(err) {
			util.RespondWithAPIError(c, errors.Conflict("model rebuild: "+err.Error()))
			return
		}
		logger.ErrorWithFields("forced model update failed", err)
		util.RespondInternalError(c, "model rebuild failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"update_type": req.UpdateType,
		"duration":    time.Since(start).Seconds(),
		"status":      "ok",
	})
}

// GetModelStatus reports the serving model generation and rebuild history.
// GET /api/v1/admin/models/status
func (h *Handlers) GetModelStatus(c *gin.Context) {
	status := gin.H{
		"pending_ratings": h.svc.Scheduler().PendingRatings(),
		"model_published": false,
	}
	if set := h.svc.Scheduler().Current(); set != nil {
		status["model_published"] = true
		status["built_at"] = set.BuiltAt
		status["explained_variance"] = set.Latent.ExplainedVariance()
		status["trained_on"] = set.Latent.TrainedOn()
		status["item_pairs"] = set.ItemCF.PairCount()
		status["indexed_embeddings"] = set.Embeddings.Size()

		// The after-the-fact count from the database, alongside the in-memory
		// counter, so operators can spot drift after a restart.
		n, err := h.svc.Store().RatingCountSince(set.BuiltAt)
		if err != nil {
			logger.ErrorWithFields("rating count load failed", err)
			util.RespondInternalError(c, "failed to load model status")
			return
		}
		status["ratings_since_build"] = n
	}

	var history []models.ModelUpdateLog
	err := h.svc.Store().DB().
		Order("created_at DESC").
		Limit(10).
		Find(&history).Error
	if err != nil {
		logger.ErrorWithFields("model history load failed", err)
		util.RespondInternalError(c, "failed to load model history")
		return
	}
	status["recent_updates"] = history

	c.JSON(http.StatusOK, status)
}

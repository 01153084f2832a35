package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/util"
)

const defaultAnalyticsWindow = 7 * 24 * time.Hour

// analyticsWindow parses the ?days= query into a since time.
func analyticsWindow(c *gin.Context) time.Time {
	days := util.ParseInt(c.Query("days"), 0)
	if days > 0 {
		return time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	}
	return time.Now().Add(-defaultAnalyticsWindow)
}

type clickRequest struct {
	MovieID int `json:"movie_id" binding:"required"`
}

// TrackClick flags the most recent impression of a movie as clicked. The
// update is idempotent: repeat clicks keep the first click's timestamp.
// POST /api/v1/users/:id/clicks
func (h *Handlers) TrackClick(c *gin.Context) {
	userID := c.Param("id")

	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid click payload")
		return
	}

	if err := h.tracker.MarkClicked(userID, req.MovieID); err != nil {
		logger.ErrorWithFields("click tracking failed", err)
		util.RespondInternalError(c, "failed to track click")
		return
	}
	c.Status(http.StatusAccepted)
}

// GetAlgorithmPerformance returns per-algorithm CTR and engagement.
// GET /api/v1/analytics/performance?days=7
func (h *Handlers) GetAlgorithmPerformance(c *gin.Context) {
	perf, err := h.tracker.CalculatePerformance(analyticsWindow(c))
	if err != nil {
		logger.ErrorWithFields("performance report failed", err)
		util.RespondInternalError(c, "failed to compute performance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"algorithms": perf})
}

// GetAnalyticsStats returns the overall analytics snapshot.
// GET /api/v1/analytics/stats?days=7
func (h *Handlers) GetAnalyticsStats(c *gin.Context) {
	stats, err := h.tracker.OverallStats(analyticsWindow(c))
	if err != nil {
		logger.ErrorWithFields("stats report failed", err)
		util.RespondInternalError(c, "failed to compute stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetTopAlgorithm returns the best-CTR algorithm over the window.
// GET /api/v1/analytics/top?days=7&min_impressions=100
func (h *Handlers) GetTopAlgorithm(c *gin.Context) {
	minImpressions := util.ParseInt64(c.Query("min_impressions"), 100)

	best, err := h.tracker.TopPerforming(analyticsWindow(c), minImpressions)
	if err != nil {
		logger.ErrorWithFields("top algorithm report failed", err)
		util.RespondInternalError(c, "failed to compute top algorithm")
		return
	}
	if best == nil {
		c.JSON(http.StatusOK, gin.H{"top": nil, "reason": "no algorithm meets the impression minimum"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"top": best})
}

// GetTopPerformingMovies ranks recommended titles by click volume.
// GET /api/v1/analytics/top-movies?days=30&limit=10
func (h *Handlers) GetTopPerformingMovies(c *gin.Context) {
	limit := util.ParseInt(c.Query("limit"), 10)
	if limit < 1 || limit > maxPageSize {
		util.RespondValidationError(c, "limit", "must be between 1 and 100")
		return
	}

	movies, err := h.tracker.TopPerformingMovies(analyticsWindow(c), limit)
	if err != nil {
		logger.ErrorWithFields("top movies report failed", err)
		util.RespondInternalError(c, "failed to rank recommended movies")
		return
	}
	c.JSON(http.StatusOK, gin.H{"movies": movies})
}

// GetMostActiveUsers ranks users by recommendation interactions.
// GET /api/v1/analytics/active-users?days=7&limit=10
func (h *Handlers) GetMostActiveUsers(c *gin.Context) {
	limit := util.ParseInt(c.Query("limit"), 10)
	if limit < 1 || limit > maxPageSize {
		util.RespondValidationError(c, "limit", "must be between 1 and 100")
		return
	}

	users, err := h.tracker.MostActiveUsers(analyticsWindow(c), limit)
	if err != nil {
		logger.ErrorWithFields("active users report failed", err)
		util.RespondInternalError(c, "failed to rank active users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

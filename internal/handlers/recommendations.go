package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/recommender"
	"github.com/cinematch/backend/internal/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetRecommendations returns a personalized recommendation page for a user.
// GET /api/v1/users/:id/recommendations
// Query params: ?limit=20&offset=0&seed=12345
//
// seed pins the top-of-list shuffle; clients pass the same seed while
// paginating so pages do not overlap, and omit it to get a fresh ordering.
func (h *Handlers) GetRecommendations(c *gin.Context) {
	userID := c.Param("id")

	limit := util.ParseInt(c.Query("limit"), defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		util.RespondValidationError(c, "limit", "must be between 1 and 100")
		return
	}
	offset := util.ParseInt(c.Query("offset"), 0)
	if offset < 0 {
		util.RespondValidationError(c, "offset", "must not be negative")
		return
	}
	seed := util.ParseInt64(c.Query("seed"), time.Now().UnixNano())

	result, err := h.svc.Recommend(c.Request.Context(), userID, limit, offset, seed)
	if err != nil {
		if err == gorm.ErrRecordNotFound || isNotFound(err) {
			util.RespondNotFound(c, "user")
			return
		}
		logger.ErrorWithFields("recommendation pipeline failed", err)
		util.RespondInternalError(c, "failed to generate recommendations")
		return
	}

	h.tracker.TrackImpressions(userID, result.Candidates)

	c.JSON(http.StatusOK, gin.H{
		"strategy":        result.Strategy,
		"recommendations": candidatePayload(result.Candidates),
		"limit":           limit,
		"offset":          offset,
		"seed":            seed,
	})
}

// GetSimilarMovies returns movies similar to an anchor movie.
// GET /api/v1/movies/:id/similar?limit=10
func (h *Handlers) GetSimilarMovies(c *gin.Context) {
	movieID, err := util.ParseIntParam(c.Param("id"))
	if err != nil {
		util.RespondValidationError(c, "id", "must be an integer movie id")
		return
	}

	limit := util.ParseInt(c.Query("limit"), 10)
	if limit < 1 || limit > maxPageSize {
		util.RespondValidationError(c, "limit", "must be between 1 and 100")
		return
	}

	similar, err := h.svc.SimilarMovies(movieID, limit)
	if err != nil {
		if isNotFound(err) {
			util.RespondNotFound(c, "movie")
			return
		}
		logger.ErrorWithFields("similar movies lookup failed", err)
		util.RespondInternalError(c, "failed to find similar movies")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movie_id": movieID,
		"similar":  candidatePayload(similar),
	})
}

// candidatePayload flattens candidates into the wire shape.
func candidatePayload(candidates []recommender.Candidate) []gin.H {
	out := make([]gin.H, 0, len(candidates))
	for i, cand := range candidates {
		if cand.Movie == nil {
			continue
		}
		out = append(out, gin.H{
			"position":  i,
			"movie":     cand.Movie,
			"score":     cand.Score,
			"algorithm": cand.Algorithm,
		})
	}
	return out
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/models"
	"github.com/cinematch/backend/internal/util"
)

type ratingRequest struct {
	MovieID int     `json:"movie_id" binding:"required"`
	Value   float64 `json:"value" binding:"required"`
}

// UpsertRating creates or replaces a user's rating for a movie.
// POST /api/v1/users/:id/ratings
//
// A repeat rating for the same movie overwrites the previous value. Every
// accepted write advances the model update counter.
func (h *Handlers) UpsertRating(c *gin.Context) {
	userID := c.Param("id")

	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid rating payload")
		return
	}
	if !models.ValidRatingValue(req.Value) {
		util.RespondValidationError(c, "value", "must be between 0.5 and 5.0")
		return
	}

	db := h.svc.Store().DB()
	if err := h.requireUserAndMovie(c, db, userID, req.MovieID); err != nil {
		return
	}

	rating := models.Rating{
		UserID:    userID,
		MovieID:   req.MovieID,
		Value:     req.Value,
		Timestamp: time.Now(),
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "timestamp", "updated_at"}),
	}).Create(&rating).Error
	if err != nil {
		logger.ErrorWithFields("rating upsert failed", err)
		util.RespondInternalError(c, "failed to save rating")
		return
	}

	h.refreshInteractionCounts(db, userID)
	h.svc.Scheduler().NoteNewRating()
	if err := h.tracker.MarkRated(userID, req.MovieID, req.Value); err != nil {
		logger.WarnWithFields("failed to mark impression rated", err)
	}

	c.JSON(http.StatusOK, rating)
}

// DeleteRating removes a user's rating for a movie.
// DELETE /api/v1/users/:id/ratings/:movie_id
func (h *Handlers) DeleteRating(c *gin.Context) {
	userID := c.Param("id")
	movieID, err := util.ParseIntParam(c.Param("movie_id"))
	if err != nil {
		util.RespondValidationError(c, "movie_id", "must be an integer movie id")
		return
	}

	db := h.svc.Store().DB()
	res := db.Where("user_id = ? AND movie_id = ?", userID, movieID).Delete(&models.Rating{})
	if res.Error != nil {
		logger.ErrorWithFields("rating delete failed", res.Error)
		util.RespondInternalError(c, "failed to delete rating")
		return
	}
	if res.RowsAffected == 0 {
		util.RespondNotFound(c, "rating")
		return
	}

	h.refreshInteractionCounts(db, userID)
	c.Status(http.StatusNoContent)
}

// ListRatings returns a user's ratings, newest first.
// GET /api/v1/users/:id/ratings
func (h *Handlers) ListRatings(c *gin.Context) {
	userID := c.Param("id")

	ratings, err := h.svc.Store().UserRatings(userID)
	if err != nil {
		logger.ErrorWithFields("rating list failed", err)
		util.RespondInternalError(c, "failed to load ratings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": ratings, "count": len(ratings)})
}

type thumbsRequest struct {
	MovieID   int    `json:"movie_id" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

// SetThumbs records a thumbs up or down for a movie. Setting one direction
// replaces the other; a thumbs-down additionally feeds the disliked-genre
// inference and excludes the movie from future recommendations.
// POST /api/v1/users/:id/thumbs
func (h *Handlers) SetThumbs(c *gin.Context) {
	userID := c.Param("id")

	var req thumbsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid thumbs payload")
		return
	}
	if req.Direction != models.ThumbsUp && req.Direction != models.ThumbsDown {
		util.RespondValidationError(c, "direction", "must be up or down")
		return
	}

	db := h.svc.Store().DB()
	if err := h.requireUserAndMovie(c, db, userID, req.MovieID); err != nil {
		return
	}

	signal := models.ThumbsSignal{
		UserID:    userID,
		MovieID:   req.MovieID,
		Direction: req.Direction,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
	}).Create(&signal).Error
	if err != nil {
		logger.ErrorWithFields("thumbs upsert failed", err)
		util.RespondInternalError(c, "failed to save thumbs signal")
		return
	}

	c.JSON(http.StatusOK, signal)
}

// ClearThumbs removes any thumbs signal for a movie.
// DELETE /api/v1/users/:id/thumbs/:movie_id
func (h *Handlers) ClearThumbs(c *gin.Context) {
	userID := c.Param("id")
	movieID, err := util.ParseIntParam(c.Param("movie_id"))
	if err != nil {
		util.RespondValidationError(c, "movie_id", "must be an integer movie id")
		return
	}

	res := h.svc.Store().DB().
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Delete(&models.ThumbsSignal{})
	if res.Error != nil {
		logger.ErrorWithFields("thumbs delete failed", res.Error)
		util.RespondInternalError(c, "failed to clear thumbs signal")
		return
	}
	if res.RowsAffected == 0 {
		util.RespondNotFound(c, "thumbs signal")
		return
	}
	c.Status(http.StatusNoContent)
}

// requireUserAndMovie verifies both sides of an interaction exist, responding
// with 404 itself when one does not.
func (h *Handlers) requireUserAndMovie(c *gin.Context, db *gorm.DB, userID string, movieID int) error {
	var user models.User
	if err := db.Select("id").First(&user, "id = ?", userID).Error; err != nil {
		util.RespondNotFound(c, "user")
		return err
	}
	var movie models.Movie
	if err := db.Select("id").First(&movie, "id = ?", movieID).Error; err != nil {
		util.RespondNotFound(c, "movie")
		return err
	}
	return nil
}

// refreshInteractionCounts recomputes the denormalized per-user counters the
// cold-start check reads. Failures are logged and tolerated; the counters
// self-heal on the next write.
func (h *Handlers) refreshInteractionCounts(db *gorm.DB, userID string) {
	var ratingCount, favoriteCount, watchlistCount int64
	db.Model(&models.Rating{}).Where("user_id = ?", userID).Count(&ratingCount)
	db.Model(&models.Favorite{}).Where("user_id = ?", userID).Count(&favoriteCount)
	db.Model(&models.WatchlistItem{}).Where("user_id = ?", userID).Count(&watchlistCount)

	err := db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"rating_count":    ratingCount,
		"favorite_count":  favoriteCount,
		"watchlist_count": watchlistCount,
	}).Error
	if err != nil {
		logger.WarnWithFields("failed to refresh interaction counters", err)
	}
}

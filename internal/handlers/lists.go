package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/models"
	"github.com/cinematch/backend/internal/util"
)

type movieRef struct {
	MovieID int `json:"movie_id" binding:"required"`
}

// AddFavorite saves a movie to the user's favorites. Favorites count as an
// implicit 4.5-star signal in the collaborative models.
// POST /api/v1/users/:id/favorites
func (h *Handlers) AddFavorite(c *gin.Context) {
	userID := c.Param("id")

	var req movieRef
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid favorite payload")
		return
	}

	db := h.svc.Store().DB()
	if err := h.requireUserAndMovie(c, db, userID, req.MovieID); err != nil {
		return
	}

	favorite := models.Favorite{UserID: userID, MovieID: req.MovieID}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoNothing: true,
	}).Create(&favorite).Error
	if err != nil {
		logger.ErrorWithFields("favorite create failed", err)
		util.RespondInternalError(c, "failed to save favorite")
		return
	}

	h.refreshInteractionCounts(db, userID)
	if err := h.tracker.MarkFavorited(userID, req.MovieID); err != nil {
		logger.WarnWithFields("failed to mark impression favorited", err)
	}

	c.JSON(http.StatusCreated, favorite)
}

// RemoveFavorite deletes a favorite.
// DELETE /api/v1/users/:id/favorites/:movie_id
func (h *Handlers) RemoveFavorite(c *gin.Context) {
	h.removeListEntry(c, &models.Favorite{}, "favorite")
}

// ListFavorites returns the user's favorites.
// GET /api/v1/users/:id/favorites
func (h *Handlers) ListFavorites(c *gin.Context) {
	userID := c.Param("id")

	var favorites []models.Favorite
	err := h.svc.Store().DB().
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favorites).Error
	if err != nil {
		logger.ErrorWithFields("favorite list failed", err)
		util.RespondInternalError(c, "failed to load favorites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites, "count": len(favorites)})
}

// AddToWatchlist saves a movie to the user's watchlist. Watchlist entries
// count as an implicit 3.5-star signal in the collaborative models.
// POST /api/v1/users/:id/watchlist
func (h *Handlers) AddToWatchlist(c *gin.Context) {
	userID := c.Param("id")

	var req movieRef
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid watchlist payload")
		return
	}

	db := h.svc.Store().DB()
	if err := h.requireUserAndMovie(c, db, userID, req.MovieID); err != nil {
		return
	}

	item := models.WatchlistItem{UserID: userID, MovieID: req.MovieID}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoNothing: true,
	}).Create(&item).Error
	if err != nil {
		logger.ErrorWithFields("watchlist create failed", err)
		util.RespondInternalError(c, "failed to save watchlist entry")
		return
	}

	h.refreshInteractionCounts(db, userID)
	if err := h.tracker.MarkWatchlisted(userID, req.MovieID); err != nil {
		logger.WarnWithFields("failed to mark impression watchlisted", err)
	}

	c.JSON(http.StatusCreated, item)
}

// RemoveFromWatchlist deletes a watchlist entry.
// DELETE /api/v1/users/:id/watchlist/:movie_id
func (h *Handlers) RemoveFromWatchlist(c *gin.Context) {
	h.removeListEntry(c, &models.WatchlistItem{}, "watchlist entry")
}

// ListWatchlist returns the user's watchlist.
// GET /api/v1/users/:id/watchlist
func (h *Handlers) ListWatchlist(c *gin.Context) {
	userID := c.Param("id")

	var items []models.WatchlistItem
	err := h.svc.Store().DB().
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		logger.ErrorWithFields("watchlist list failed", err)
		util.RespondInternalError(c, "failed to load watchlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": items, "count": len(items)})
}

func (h *Handlers) removeListEntry(c *gin.Context, model interface{}, resource string) {
	userID := c.Param("id")
	movieID, err := util.ParseIntParam(c.Param("movie_id"))
	if err != nil {
		util.RespondValidationError(c, "movie_id", "must be an integer movie id")
		return
	}

	db := h.svc.Store().DB()
	res := db.Where("user_id = ? AND movie_id = ?", userID, movieID).Delete(model)
	if res.Error != nil {
		logger.ErrorWithFields("list entry delete failed", res.Error)
		util.RespondInternalError(c, "failed to delete "+resource)
		return
	}
	if res.RowsAffected == 0 {
		util.RespondNotFound(c, resource)
		return
	}

	h.refreshInteractionCounts(db, userID)
	c.Status(http.StatusNoContent)
}

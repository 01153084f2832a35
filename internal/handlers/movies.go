package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/models"
	"github.com/cinematch/backend/internal/recommender"
	"github.com/cinematch/backend/internal/util"
)

// GetMovie returns one movie by catalog ID.
// GET /api/v1/movies/:id
func (h *Handlers) GetMovie(c *gin.Context) {
	movieID, err := util.ParseIntParam(c.Param("id"))
	if err != nil {
		util.RespondValidationError(c, "id", "must be an integer movie id")
		return
	}

	var movie models.Movie
	if err := h.svc.Store().DB().First(&movie, "id = ?", movieID).Error; err != nil {
		util.RespondNotFound(c, "movie")
		return
	}
	c.JSON(http.StatusOK, movie)
}

type upsertMovieRequest struct {
	ID          int        `json:"id" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	Overview    string     `json:"overview"`
	Genres      []string   `json:"genres"`
	Embedding   []float64  `json:"embedding"`
	VoteAverage float64    `json:"vote_average"`
	VoteCount   int        `json:"vote_count"`
	Popularity  float64    `json:"popularity"`
	ReleaseDate *time.Time `json:"release_date"`
	PosterURL   string     `json:"poster_url"`
}

// UpsertMovie ingests or refreshes one catalog title. The embedding is
// optional: titles arrive without one and the ingestion pipeline backfills it
// with a second call later.
// POST /api/v1/movies
func (h *Handlers) UpsertMovie(c *gin.Context) {
	var req upsertMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid movie payload")
		return
	}

	db := h.svc.Store().DB()
	var existing int64
	if err := db.Model(&models.Movie{}).Where("id = ?", req.ID).Count(&existing).Error; err != nil {
		logger.ErrorWithFields("movie lookup failed", err)
		util.RespondInternalError(c, "failed to upsert movie")
		return
	}

	movie := models.Movie{
		ID:          req.ID,
		Title:       req.Title,
		Overview:    req.Overview,
		Genres:      models.StringArray(req.Genres),
		Embedding:   req.Embedding,
		VoteAverage: req.VoteAverage,
		VoteCount:   req.VoteCount,
		Popularity:  req.Popularity,
		ReleaseDate: req.ReleaseDate,
		PosterURL:   req.PosterURL,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&movie).Error
	if err != nil {
		logger.ErrorWithFields("movie upsert failed", err)
		util.RespondInternalError(c, "failed to upsert movie")
		return
	}

	h.svc.InvalidatePopularShelf(c.Request.Context())

	status := http.StatusCreated
	if existing > 0 {
		status = http.StatusOK
	}
	c.JSON(status, movie)
}

// ListMovies returns a catalog page, optionally filtered by genre.
// GET /api/v1/movies?genre=Drama&limit=20&offset=0
func (h *Handlers) ListMovies(c *gin.Context) {
	limit := util.ParseInt(c.Query("limit"), defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		util.RespondValidationError(c, "limit", "must be between 1 and 100")
		return
	}
	offset := util.ParseInt(c.Query("offset"), 0)

	q := h.svc.Store().DB().Model(&models.Movie{}).Order("popularity DESC, id ASC")
	if genre := c.Query("genre"); genre != "" {
		// Genres persist as a "{a,b}" literal on both drivers, so a cast plus
		// LIKE matches portably
		q = q.Where("CAST(genres AS TEXT) LIKE ?", "%"+genre+"%")
	}

	var movies []models.Movie
	if err := q.Limit(limit).Offset(offset).Find(&movies).Error; err != nil {
		logger.ErrorWithFields("movie list failed", err)
		util.RespondInternalError(c, "failed to load movies")
		return
	}
	c.JSON(http.StatusOK, gin.H{"movies": movies, "limit": limit, "offset": offset})
}

// GetPopularMovies returns the popularity fallback shelf: well-known movies
// ranked by vote average.
// GET /api/v1/movies/popular?limit=20
func (h *Handlers) GetPopularMovies(c *gin.Context) {
	limit := util.ParseInt(c.Query("limit"), defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		util.RespondValidationError(c, "limit", "must be between 1 and 100")
		return
	}

	movies, err := h.svc.Store().PopularMovies(recommender.MinVoteCountForPopular, limit)
	if err != nil {
		logger.ErrorWithFields("popular movies load failed", err)
		util.RespondInternalError(c, "failed to load popular movies")
		return
	}
	c.JSON(http.StatusOK, gin.H{"movies": movies})
}

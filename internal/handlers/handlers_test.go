package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cinematch/backend/internal/analytics"
	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/models"
	"github.com/cinematch/backend/internal/recommender"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
	logger.SugaredLog = logger.Log.Sugar()
	os.Exit(m.Run())
}

// HandlersTestSuite exercises the REST surface against an isolated database.
type HandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	handlers *Handlers
	svc      *recommender.Service
}

func (s *HandlersTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(filepath.Join(s.T().TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), db.AutoMigrate(
		&models.User{},
		&models.Movie{},
		&models.Rating{},
		&models.Favorite{},
		&models.WatchlistItem{},
		&models.ThumbsSignal{},
		&models.RecommendationEvent{},
		&models.ModelUpdateLog{},
	))
	s.db = db

	cfg := recommender.DefaultConfig()
	store := recommender.NewStore(db)
	scheduler := recommender.NewScheduler(store, cfg)
	s.svc = recommender.NewService(store, scheduler, nil, cfg)
	s.handlers = NewHandlers(s.svc, analytics.NewTracker(db))

	s.router = gin.New()
	api := s.router.Group("/api/v1")
	users := api.Group("/users")
	users.POST("", s.handlers.CreateUser)
	users.GET("/:id", s.handlers.GetUser)
	users.GET("/:id/recommendations", s.handlers.GetRecommendations)
	users.GET("/:id/preferences", s.handlers.GetPreferences)
	users.PUT("/:id/preferences", s.handlers.UpdatePreferences)
	users.GET("/:id/ratings", s.handlers.ListRatings)
	users.POST("/:id/ratings", s.handlers.UpsertRating)
	users.DELETE("/:id/ratings/:movie_id", s.handlers.DeleteRating)
	users.POST("/:id/thumbs", s.handlers.SetThumbs)
	users.DELETE("/:id/thumbs/:movie_id", s.handlers.ClearThumbs)
	users.GET("/:id/favorites", s.handlers.ListFavorites)
	users.POST("/:id/favorites", s.handlers.AddFavorite)
	users.DELETE("/:id/favorites/:movie_id", s.handlers.RemoveFavorite)
	users.GET("/:id/watchlist", s.handlers.ListWatchlist)
	users.POST("/:id/watchlist", s.handlers.AddToWatchlist)
	users.DELETE("/:id/watchlist/:movie_id", s.handlers.RemoveFromWatchlist)
	users.POST("/:id/clicks", s.handlers.TrackClick)
	movies := api.Group("/movies")
	movies.GET("", s.handlers.ListMovies)
	movies.POST("", s.handlers.UpsertMovie)
	movies.GET("/popular", s.handlers.GetPopularMovies)
	movies.GET("/:id", s.handlers.GetMovie)
	movies.GET("/:id/similar", s.handlers.GetSimilarMovies)
}

func (s *HandlersTestSuite) request(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersTestSuite) seedUser(id string) {
	require.NoError(s.T(), s.db.Create(&models.User{
		ID:       id,
		Email:    id + "@example.com",
		Username: id,
	}).Error)
}

func (s *HandlersTestSuite) seedMovie(id int, genres ...string) {
	require.NoError(s.T(), s.db.Create(&models.Movie{
		ID:          id,
		Title:       "movie",
		Genres:      models.StringArray(genres),
		VoteCount:   500,
		VoteAverage: 7.5,
	}).Error)
}

func (s *HandlersTestSuite) TestCreateUser() {
	w := s.request(http.MethodPost, "/api/v1/users", gin.H{
		"email":    "New.User@Example.COM",
		"username": "newuser",
		"genre_preferences": gin.H{
			"Action": 1.0,
			"Horror": -1.0,
		},
	})
	require.Equal(s.T(), http.StatusCreated, w.Code)

	var user models.User
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &user))
	assert.NotEmpty(s.T(), user.ID)
	assert.Equal(s.T(), "new.user@example.com", user.Email, "email is normalized")
	assert.Equal(s.T(), -1.0, user.GenrePreferences["Horror"])
}

func (s *HandlersTestSuite) TestCreateUserDuplicateEmail() {
	s.seedUser("existing")

	w := s.request(http.MethodPost, "/api/v1/users", gin.H{
		"email":    "existing@example.com",
		"username": "someone-else",
	})
	assert.Equal(s.T(), http.StatusConflict, w.Code)
}

func (s *HandlersTestSuite) TestCreateUserInvalidPayload() {
	w := s.request(http.MethodPost, "/api/v1/users", gin.H{"email": "not-an-email"})
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestGetUserNotFound() {
	w := s.request(http.MethodGet, "/api/v1/users/ghost", nil)
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestUpsertRating() {
	s.seedUser("u1")
	s.seedMovie(10, "Action")

	w := s.request(http.MethodPost, "/api/v1/users/u1/ratings", gin.H{"movie_id": 10, "value": 3.5})
	require.Equal(s.T(), http.StatusOK, w.Code)

	// Rating again replaces, never duplicates.
	w = s.request(http.MethodPost, "/api/v1/users/u1/ratings", gin.H{"movie_id": 10, "value": 5.0})
	require.Equal(s.T(), http.StatusOK, w.Code)

	var ratings []models.Rating
	require.NoError(s.T(), s.db.Find(&ratings).Error)
	require.Len(s.T(), ratings, 1)
	assert.Equal(s.T(), 5.0, ratings[0].Value)

	// The denormalized counter tracks the write.
	var user models.User
	require.NoError(s.T(), s.db.First(&user, "id = ?", "u1").Error)
	assert.Equal(s.T(), 1, user.RatingCount)

	// Each accepted write advances the model update counter.
	assert.EqualValues(s.T(), 2, s.svc.Scheduler().PendingRatings())
}

func (s *HandlersTestSuite) TestUpsertRatingValidation() {
	s.seedUser("u1")
	s.seedMovie(10)

	w := s.request(http.MethodPost, "/api/v1/users/u1/ratings", gin.H{"movie_id": 10, "value": 5.5})
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)

	w = s.request(http.MethodPost, "/api/v1/users/u1/ratings", gin.H{"movie_id": 999, "value": 3.0})
	assert.Equal(s.T(), http.StatusNotFound, w.Code)

	w = s.request(http.MethodPost, "/api/v1/users/ghost/ratings", gin.H{"movie_id": 10, "value": 3.0})
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestDeleteRating() {
	s.seedUser("u1")
	s.seedMovie(10)
	s.request(http.MethodPost, "/api/v1/users/u1/ratings", gin.H{"movie_id": 10, "value": 3.0})

	w := s.request(http.MethodDelete, "/api/v1/users/u1/ratings/10", nil)
	assert.Equal(s.T(), http.StatusNoContent, w.Code)

	w = s.request(http.MethodDelete, "/api/v1/users/u1/ratings/10", nil)
	assert.Equal(s.T(), http.StatusNotFound, w.Code)

	var user models.User
	require.NoError(s.T(), s.db.First(&user, "id = ?", "u1").Error)
	assert.Zero(s.T(), user.RatingCount)
}

func (s *HandlersTestSuite) TestThumbsReplaceDirection() {
	s.seedUser("u1")
	s.seedMovie(10, "Horror")

	w := s.request(http.MethodPost, "/api/v1/users/u1/thumbs", gin.H{"movie_id": 10, "direction": "up"})
	require.Equal(s.T(), http.StatusOK, w.Code)

	w = s.request(http.MethodPost, "/api/v1/users/u1/thumbs", gin.H{"movie_id": 10, "direction": "down"})
	require.Equal(s.T(), http.StatusOK, w.Code)

	var signals []models.ThumbsSignal
	require.NoError(s.T(), s.db.Find(&signals).Error)
	require.Len(s.T(), signals, 1, "one direction replaces the other")
	assert.Equal(s.T(), models.ThumbsDown, signals[0].Direction)
}

func (s *HandlersTestSuite) TestThumbsValidation() {
	s.seedUser("u1")
	s.seedMovie(10)

	w := s.request(http.MethodPost, "/api/v1/users/u1/thumbs", gin.H{"movie_id": 10, "direction": "sideways"})
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestClearThumbs() {
	s.seedUser("u1")
	s.seedMovie(10)
	s.request(http.MethodPost, "/api/v1/users/u1/thumbs", gin.H{"movie_id": 10, "direction": "up"})

	w := s.request(http.MethodDelete, "/api/v1/users/u1/thumbs/10", nil)
	assert.Equal(s.T(), http.StatusNoContent, w.Code)

	w = s.request(http.MethodDelete, "/api/v1/users/u1/thumbs/10", nil)
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestFavoritesLifecycle() {
	s.seedUser("u1")
	s.seedMovie(10)

	w := s.request(http.MethodPost, "/api/v1/users/u1/favorites", gin.H{"movie_id": 10})
	require.Equal(s.T(), http.StatusCreated, w.Code)

	// Saving twice is idempotent.
	w = s.request(http.MethodPost, "/api/v1/users/u1/favorites", gin.H{"movie_id": 10})
	require.Equal(s.T(), http.StatusCreated, w.Code)

	var favorites []models.Favorite
	require.NoError(s.T(), s.db.Find(&favorites).Error)
	assert.Len(s.T(), favorites, 1)

	var user models.User
	require.NoError(s.T(), s.db.First(&user, "id = ?", "u1").Error)
	assert.Equal(s.T(), 1, user.FavoriteCount)

	w = s.request(http.MethodGet, "/api/v1/users/u1/favorites", nil)
	require.Equal(s.T(), http.StatusOK, w.Code)
	var listing struct {
		Count int `json:"count"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(s.T(), 1, listing.Count)

	w = s.request(http.MethodDelete, "/api/v1/users/u1/favorites/10", nil)
	assert.Equal(s.T(), http.StatusNoContent, w.Code)
}

func (s *HandlersTestSuite) TestWatchlistLifecycle() {
	s.seedUser("u1")
	s.seedMovie(10)

	w := s.request(http.MethodPost, "/api/v1/users/u1/watchlist", gin.H{"movie_id": 10})
	require.Equal(s.T(), http.StatusCreated, w.Code)

	var user models.User
	require.NoError(s.T(), s.db.First(&user, "id = ?", "u1").Error)
	assert.Equal(s.T(), 1, user.WatchlistCount)

	w = s.request(http.MethodDelete, "/api/v1/users/u1/watchlist/10", nil)
	assert.Equal(s.T(), http.StatusNoContent, w.Code)

	w = s.request(http.MethodDelete, "/api/v1/users/u1/watchlist/10", nil)
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestUpdateAndGetPreferences() {
	s.seedUser("u1")

	w := s.request(http.MethodPut, "/api/v1/users/u1/preferences", gin.H{
		"genre_preferences":    gin.H{"Action": 1.0, "Horror": -1.0},
		"age_bracket":          30,
		"onboarding_completed": true,
	})
	require.Equal(s.T(), http.StatusOK, w.Code)

	w = s.request(http.MethodGet, "/api/v1/users/u1/preferences", nil)
	require.Equal(s.T(), http.StatusOK, w.Code)

	var payload struct {
		Stated         map[string]float64 `json:"stated"`
		DerivedScores  map[string]float64 `json:"derived_scores"`
		ExcludedGenres []string           `json:"excluded_genres"`
		OnboardingDone bool               `json:"onboarding_done"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(s.T(), 1.0, payload.Stated["Action"])
	assert.Positive(s.T(), payload.DerivedScores["Action"])
	assert.Contains(s.T(), payload.ExcludedGenres, "Horror")
	assert.True(s.T(), payload.OnboardingDone)
}

func (s *HandlersTestSuite) TestUpdatePreferencesNoFields() {
	s.seedUser("u1")
	w := s.request(http.MethodPut, "/api/v1/users/u1/preferences", gin.H{})
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestTrackClick() {
	s.seedUser("u1")
	s.seedMovie(10)
	require.NoError(s.T(), s.db.Create(&models.RecommendationEvent{
		UserID:    "u1",
		MovieID:   10,
		Algorithm: models.AlgorithmPopularity,
	}).Error)

	w := s.request(http.MethodPost, "/api/v1/users/u1/clicks", gin.H{"movie_id": 10})
	assert.Equal(s.T(), http.StatusAccepted, w.Code)

	var event models.RecommendationEvent
	require.NoError(s.T(), s.db.First(&event, "user_id = ?", "u1").Error)
	assert.True(s.T(), event.Clicked)
}

func (s *HandlersTestSuite) TestGetMovie() {
	s.seedMovie(10, "Action")

	w := s.request(http.MethodGet, "/api/v1/movies/10", nil)
	require.Equal(s.T(), http.StatusOK, w.Code)

	var movie models.Movie
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &movie))
	assert.Equal(s.T(), 10, movie.ID)

	w = s.request(http.MethodGet, "/api/v1/movies/999", nil)
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestUpsertMovie() {
	w := s.request(http.MethodPost, "/api/v1/movies", gin.H{
		"id":           42,
		"title":        "first cut",
		"genres":       []string{"Drama"},
		"vote_average": 7.1,
		"vote_count":   300,
	})
	require.Equal(s.T(), http.StatusCreated, w.Code)

	// A second push for the same catalog ID refreshes the row in place,
	// including a late-arriving embedding.
	w = s.request(http.MethodPost, "/api/v1/movies", gin.H{
		"id":        42,
		"title":     "director's cut",
		"genres":    []string{"Drama"},
		"embedding": []float64{0.1, 0.2, 0.3},
	})
	require.Equal(s.T(), http.StatusOK, w.Code)

	var count int64
	require.NoError(s.T(), s.db.Model(&models.Movie{}).Count(&count).Error)
	assert.EqualValues(s.T(), 1, count)

	var movie models.Movie
	require.NoError(s.T(), s.db.First(&movie, "id = ?", 42).Error)
	assert.Equal(s.T(), "director's cut", movie.Title)
	assert.True(s.T(), movie.HasEmbedding())
}

func (s *HandlersTestSuite) TestUpsertMovieValidation() {
	w := s.request(http.MethodPost, "/api/v1/movies", gin.H{"title": "no id"})
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestGetPreferencesUsesServiceConfig() {
	s.seedUser("u1")
	s.request(http.MethodPut, "/api/v1/users/u1/preferences", gin.H{
		"genre_preferences": gin.H{"Action": 1.0},
	})

	// A service tuned with an unreachable preference bar must surface that
	// tuning through the handler, not fall back to the defaults.
	cfg := recommender.DefaultConfig()
	cfg.PreferredThreshold = 100
	store := recommender.NewStore(s.db)
	svc := recommender.NewService(store, recommender.NewScheduler(store, cfg), nil, cfg)
	handlers := NewHandlers(svc, analytics.NewTracker(s.db))

	router := gin.New()
	router.GET("/api/v1/users/:id/preferences", handlers.GetPreferences)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/preferences", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(s.T(), http.StatusOK, w.Code)

	var payload struct {
		TopGenres []string `json:"top_genres"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Empty(s.T(), payload.TopGenres, "nothing clears a threshold of 100")
}

func (s *HandlersTestSuite) TestGetPopularMovies() {
	s.seedMovie(1)
	s.seedMovie(2)
	require.NoError(s.T(), s.db.Model(&models.Movie{}).Where("id = ?", 2).Update("vote_average", 9.5).Error)

	w := s.request(http.MethodGet, "/api/v1/movies/popular?limit=5", nil)
	require.Equal(s.T(), http.StatusOK, w.Code)

	var payload struct {
		Movies []models.Movie `json:"movies"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &payload))
	require.Len(s.T(), payload.Movies, 2)
	assert.Equal(s.T(), 2, payload.Movies[0].ID, "highest vote average first")
}

func (s *HandlersTestSuite) TestGetRecommendationsValidation() {
	s.seedUser("u1")

	w := s.request(http.MethodGet, "/api/v1/users/u1/recommendations?limit=0", nil)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)

	w = s.request(http.MethodGet, "/api/v1/users/u1/recommendations?limit=500", nil)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)

	w = s.request(http.MethodGet, "/api/v1/users/ghost/recommendations", nil)
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestGetRecommendationsServesPopularity() {
	s.seedUser("u1")
	for i := 1; i <= 5; i++ {
		s.seedMovie(i, "Action")
	}

	w := s.request(http.MethodGet, "/api/v1/users/u1/recommendations?limit=3&seed=42", nil)
	require.Equal(s.T(), http.StatusOK, w.Code)

	var payload struct {
		Strategy        string  `json:"strategy"`
		Recommendations []gin.H `json:"recommendations"`
		Seed            int64   `json:"seed"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(s.T(), "popularity", payload.Strategy)
	assert.Len(s.T(), payload.Recommendations, 3)
	assert.EqualValues(s.T(), 42, payload.Seed)

	// Impressions land asynchronously.
	require.Eventually(s.T(), func() bool {
		var n int64
		s.db.Model(&models.RecommendationEvent{}).Count(&n)
		return n == 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

package recommender

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/models"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	logger.SugaredLog = logger.Log.Sugar()
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Movie{},
		&models.Rating{},
		&models.Favorite{},
		&models.WatchlistItem{},
		&models.ThumbsSignal{},
		&models.RecommendationEvent{},
		&models.ModelUpdateLog{},
	))
	return db
}

func createMovie(t *testing.T, db *gorm.DB, id int, voteCount int, voteAverage float64, genres ...string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Movie{
		ID:          id,
		Title:       "movie",
		Genres:      models.StringArray(genres),
		VoteCount:   voteCount,
		VoteAverage: voteAverage,
	}).Error)
}

func createUser(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		ID:       id,
		Email:    id + "@example.com",
		Username: id,
	}).Error)
}

func createRating(t *testing.T, db *gorm.DB, userID string, movieID int, value float64, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.Rating{
		UserID:    userID,
		MovieID:   movieID,
		Value:     value,
		Timestamp: at,
	}).Error)
}

func TestStoreGetUser(t *testing.T) {
	store := NewStore(newTestDB(t))
	createUser(t, store.DB(), "u1")

	user, err := store.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = store.GetUser("missing")
	assert.Error(t, err)
}

func TestAllTrainingRatingsPrecedence(t *testing.T) {
	store := NewStore(newTestDB(t))
	db := store.DB()
	cfg := DefaultConfig()
	now := time.Now()

	createUser(t, db, "u1")
	// Explicit rating on movie 1 wins over the favorite on the same movie.
	createRating(t, db, "u1", 1, 2.0, now)
	require.NoError(t, db.Create(&models.Favorite{UserID: "u1", MovieID: 1}).Error)
	// Favorite-only movie becomes the implicit 4.5.
	require.NoError(t, db.Create(&models.Favorite{UserID: "u1", MovieID: 2}).Error)
	// Favorite wins over watchlist for the same movie.
	require.NoError(t, db.Create(&models.WatchlistItem{UserID: "u1", MovieID: 2}).Error)
	// Watchlist-only movie becomes the implicit 3.5.
	require.NoError(t, db.Create(&models.WatchlistItem{UserID: "u1", MovieID: 3}).Error)

	triples, err := store.AllTrainingRatings(cfg)
	require.NoError(t, err)
	require.Len(t, triples, 3)

	values := make(map[int]float64)
	for _, tr := range triples {
		values[tr.MovieID] = tr.Value
	}
	assert.Equal(t, 2.0, values[1])
	assert.Equal(t, cfg.FavoriteImplicitRating, values[2])
	assert.Equal(t, cfg.WatchlistImplicitRating, values[3])
}

func TestPopularMoviesFloorAndOrder(t *testing.T) {
	store := NewStore(newTestDB(t))
	db := store.DB()

	createMovie(t, db, 1, 500, 7.5)
	createMovie(t, db, 2, 500, 9.0)
	createMovie(t, db, 3, 3, 9.9) // three perfect scores, below the floor
	createMovie(t, db, 4, 500, 9.0)

	movies, err := store.PopularMovies(100, 10)
	require.NoError(t, err)
	require.Len(t, movies, 3)

	// Highest average first, ID breaks the tie.
	assert.Equal(t, 2, movies[0].ID)
	assert.Equal(t, 4, movies[1].ID)
	assert.Equal(t, 1, movies[2].ID)
}

func TestMoviesByIDPreservesOrder(t *testing.T) {
	store := NewStore(newTestDB(t))
	db := store.DB()

	createMovie(t, db, 1, 0, 0, "Action")
	createMovie(t, db, 2, 0, 0, "Drama")

	in := []Candidate{
		{Movie: &models.Movie{ID: 2}, Score: 0.9},
		{Movie: &models.Movie{ID: 99}, Score: 0.8}, // no longer in catalog
		{Movie: &models.Movie{ID: 1}, Score: 0.7},
	}
	out, err := store.MoviesByID(in)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 2, out[0].Movie.ID)
	assert.Equal(t, "Drama", out[0].Movie.Genres[0], "rows are fully hydrated")
	assert.Equal(t, 0.9, out[0].Score)
	assert.Equal(t, 1, out[1].Movie.ID)
}

func TestSeenMovieIDsUnion(t *testing.T) {
	store := NewStore(newTestDB(t))
	db := store.DB()

	createUser(t, db, "u1")
	createRating(t, db, "u1", 1, 4.0, time.Now())
	require.NoError(t, db.Create(&models.Favorite{UserID: "u1", MovieID: 2}).Error)
	require.NoError(t, db.Create(&models.WatchlistItem{UserID: "u1", MovieID: 3}).Error)
	// Another user's interactions are invisible.
	createUser(t, db, "u2")
	createRating(t, db, "u2", 4, 4.0, time.Now())

	seen, err := store.SeenMovieIDs("u1")
	require.NoError(t, err)

	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, seen)
}

func TestSeenMovieIDsIncludesThumbsDown(t *testing.T) {
	store := NewStore(newTestDB(t))
	db := store.DB()
	createUser(t, db, "u1")

	// A down-voted movie with no genres gives the genre inference nothing to
	// work from; the per-movie exclusion is what keeps it out.
	require.NoError(t, db.Create(&models.ThumbsSignal{UserID: "u1", MovieID: 9, Direction: models.ThumbsDown}).Error)
	require.NoError(t, db.Create(&models.ThumbsSignal{UserID: "u1", MovieID: 8, Direction: models.ThumbsUp}).Error)

	seen, err := store.SeenMovieIDs("u1")
	require.NoError(t, err)

	assert.True(t, seen[9])
	assert.False(t, seen[8], "thumbs-up is a positive signal, not an exclusion")
}

func TestPreferenceSignalsFor(t *testing.T) {
	store := NewStore(newTestDB(t))
	db := store.DB()

	createMovie(t, db, 1, 0, 0, "Action", "Thriller")
	createMovie(t, db, 2, 0, 0, "Action")
	createMovie(t, db, 3, 0, 0, "Horror")

	user := &models.User{
		ID:       "u1",
		Email:    "u1@example.com",
		Username: "u1",
		GenrePreferences: map[string]float64{
			"Drama":  1.0,
			"Sci-Fi": -1.0,
		},
	}
	require.NoError(t, db.Create(user).Error)

	require.NoError(t, db.Create(&models.ThumbsSignal{UserID: "u1", MovieID: 1, Direction: models.ThumbsUp}).Error)
	require.NoError(t, db.Create(&models.ThumbsSignal{UserID: "u1", MovieID: 3, Direction: models.ThumbsDown}).Error)
	createRating(t, db, "u1", 2, 4.5, time.Now())

	sig, err := store.PreferenceSignalsFor(user)
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"Drama": 1.0}, sig.StatedLikes)
	assert.Equal(t, map[string]bool{"Sci-Fi": true}, sig.StatedDislikes)
	assert.Equal(t, map[string]int{"Action": 1, "Thriller": 1}, sig.ThumbsUp)
	assert.Equal(t, map[string]bool{"Horror": true}, sig.ThumbsDown)
	assert.Equal(t, map[string]int{"Action": 1}, sig.RatingCounts)
}

func TestProfileInputsWeightsAndOrder(t *testing.T) {
	store := NewStore(newTestDB(t))
	db := store.DB()
	cfg := DefaultConfig()
	now := time.Now()

	createUser(t, db, "u1")
	createRating(t, db, "u1", 1, 5.0, now.Add(-3*time.Hour))
	createRating(t, db, "u1", 2, 1.5, now.Add(-1*time.Minute)) // low rating, excluded
	require.NoError(t, db.Create(&models.Favorite{UserID: "u1", MovieID: 3, CreatedAt: now.Add(-2 * time.Hour)}).Error)
	require.NoError(t, db.Create(&models.WatchlistItem{UserID: "u1", MovieID: 4, CreatedAt: now.Add(-1 * time.Hour)}).Error)

	inputs, err := store.ProfileInputs("u1", cfg)
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	// Newest first: watchlist add, then favorite, then the old rating.
	assert.Equal(t, 4, inputs[0].MovieID)
	assert.InDelta(t, 0.7, inputs[0].Weight, 1e-9)
	assert.Equal(t, 3, inputs[1].MovieID)
	assert.InDelta(t, 1.0, inputs[1].Weight, 1e-9)
	assert.Equal(t, 1, inputs[2].MovieID)
	assert.InDelta(t, 1.0, inputs[2].Weight, 1e-9) // 5.0 / 5.0
}

func TestCohortRatings(t *testing.T) {
	store := NewStore(newTestDB(t))
	db := store.DB()
	cfg := DefaultConfig()

	age30, age35, age70 := 30, 35, 70
	berlin := "Berlin"
	tokyo := "Tokyo"

	me := &models.User{ID: "me", Email: "me@example.com", Username: "me", AgeBracket: &age30}
	require.NoError(t, db.Create(me).Error)
	require.NoError(t, db.Create(&models.User{ID: "peer", Email: "p@example.com", Username: "peer", AgeBracket: &age35}).Error)
	require.NoError(t, db.Create(&models.User{ID: "elder", Email: "e@example.com", Username: "elder", AgeBracket: &age70}).Error)

	createRating(t, db, "peer", 1, 5.0, time.Now())
	createRating(t, db, "elder", 2, 5.0, time.Now())
	createRating(t, db, "me", 3, 5.0, time.Now()) // own ratings never count

	out, err := store.CohortRatings(me, cfg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "peer", out[0].UserID)

	// Location-only matching.
	loc := &models.User{ID: "loc", Email: "l@example.com", Username: "loc", Location: &berlin}
	require.NoError(t, db.Create(loc).Error)
	require.NoError(t, db.Create(&models.User{ID: "near", Email: "n@example.com", Username: "near", Location: &berlin}).Error)
	require.NoError(t, db.Create(&models.User{ID: "far", Email: "f@example.com", Username: "far", Location: &tokyo}).Error)
	createRating(t, db, "near", 4, 5.0, time.Now())
	createRating(t, db, "far", 5, 5.0, time.Now())

	out, err = store.CohortRatings(loc, cfg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "near", out[0].UserID)

	// No demographics at all: nothing to match on.
	anon := &models.User{ID: "anon", Email: "a@example.com", Username: "anon"}
	require.NoError(t, db.Create(anon).Error)
	out, err = store.CohortRatings(anon, cfg)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRatingsSinceWindow(t *testing.T) {
	store := NewStore(newTestDB(t))
	db := store.DB()

	createUser(t, db, "u1")
	createRating(t, db, "u1", 1, 4.0, time.Now())

	recent, err := store.RatingsSince(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	none, err := store.RatingsSince(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := store.RatingCountSince(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestLogModelUpdate(t *testing.T) {
	store := NewStore(newTestDB(t))

	entry := &models.ModelUpdateLog{
		ModelType:        models.ModelTypeLatentFactor,
		UpdateType:       models.UpdateTypeFullRetrain,
		Trigger:          models.TriggerManual,
		RatingsProcessed: 42,
		Success:          true,
		Metrics:          map[string]float64{"explained_variance": 0.8},
	}
	require.NoError(t, store.LogModelUpdate(entry))

	var rows []models.ModelUpdateLog
	require.NoError(t, store.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 42, rows[0].RatingsProcessed)
	assert.InDelta(t, 0.8, rows[0].Metrics["explained_variance"], 1e-9)
}

package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"gorm.io/gorm"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/models"
)

// catalogGenres is the working genre vocabulary for generated movies.
var catalogGenres = []string{
	"Action", "Adventure", "Animation", "Comedy", "Crime", "Documentary",
	"Drama", "Family", "Fantasy", "History", "Horror", "Music", "Mystery",
	"Romance", "Science Fiction", "Thriller", "War", "Western",
}

const embeddingDim = 64

// Seeder handles database seeding operations
type Seeder struct {
	db  *gorm.DB
	rng *rand.Rand
}

// NewSeeder creates a new seeder instance. The fixed seed keeps generated
// data stable across runs so local recommendation results are comparable.
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(42)
	return &Seeder{db: db, rng: rand.New(rand.NewSource(42))}
}

// SeedDev seeds the development database with enough interaction data for
// every recommendation strategy to have something to work with.
func (s *Seeder) SeedDev() error {
	logger.Log.Info("Creating movies...")
	movies, err := s.seedMovies(2000)
	if err != nil {
		return fmt.Errorf("failed to seed movies: %w", err)
	}

	logger.Log.Info("Creating users...")
	users, err := s.seedUsers(200)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("Creating ratings...")
	if err := s.seedRatings(users, movies, 8000); err != nil {
		return fmt.Errorf("failed to seed ratings: %w", err)
	}

	logger.Log.Info("Creating favorites and watchlists...")
	if err := s.seedLists(users, movies); err != nil {
		return fmt.Errorf("failed to seed lists: %w", err)
	}

	logger.Log.Info("Creating thumbs signals...")
	if err := s.seedThumbs(users, movies, 1500); err != nil {
		return fmt.Errorf("failed to seed thumbs signals: %w", err)
	}

	return nil
}

// SeedTest seeds the test database with minimal data.
func (s *Seeder) SeedTest() error {
	movies, err := s.seedMovies(50)
	if err != nil {
		return err
	}
	users, err := s.seedUsers(5)
	if err != nil {
		return err
	}
	return s.seedRatings(users, movies, 100)
}

// Clean removes all seeded rows.
func (s *Seeder) Clean() error {
	tables := []interface{}{
		&models.RecommendationEvent{},
		&models.ModelUpdateLog{},
		&models.ThumbsSignal{},
		&models.WatchlistItem{},
		&models.Favorite{},
		&models.Rating{},
		&models.User{},
		&models.Movie{},
	}
	for _, table := range tables {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(table).Error; err != nil {
			return fmt.Errorf("failed to clean table %T: %w", table, err)
		}
	}
	return nil
}

// seedMovies generates catalog titles with genre-correlated embeddings: each
// genre contributes a stable direction so movies sharing genres land near
// each other in embedding space, the property the similarity engine needs.
func (s *Seeder) seedMovies(count int) ([]models.Movie, error) {
	genreDirections := make(map[string][]float64, len(catalogGenres))
	dirRng := rand.New(rand.NewSource(7))
	for _, g := range catalogGenres {
		dir := make([]float64, embeddingDim)
		for d := range dir {
			dir[d] = dirRng.NormFloat64()
		}
		genreDirections[g] = dir
	}

	movies := make([]models.Movie, 0, count)
	for i := 0; i < count; i++ {
		genres := s.pickGenres()

		embedding := make([]float64, embeddingDim)
		for _, g := range genres {
			for d, v := range genreDirections[g] {
				embedding[d] += v
			}
		}
		for d := range embedding {
			embedding[d] += s.rng.NormFloat64() * 0.3
		}

		voteCount := s.rng.Intn(20000)
		release := gofakeit.DateRange(
			time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Now(),
		)

		movies = append(movies, models.Movie{
			ID:          100000 + i,
			Title:       gofakeit.MovieName(),
			Overview:    gofakeit.Paragraph(1, 3, 12, " "),
			Genres:      genres,
			Embedding:   embedding,
			VoteAverage: 3.0 + s.rng.Float64()*7.0,
			VoteCount:   voteCount,
			Popularity:  s.rng.Float64() * 500,
			ReleaseDate: &release,
			PosterURL:   gofakeit.URL(),
		})
	}

	if err := s.db.CreateInBatches(&movies, 200).Error; err != nil {
		return nil, err
	}
	return movies, nil
}

func (s *Seeder) pickGenres() models.StringArray {
	n := 1 + s.rng.Intn(3)
	picked := make(models.StringArray, 0, n)
	for len(picked) < n {
		g := catalogGenres[s.rng.Intn(len(catalogGenres))]
		if !picked.Contains(g) {
			picked = append(picked, g)
		}
	}
	return picked
}

func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		prefs := make(map[string]float64)
		for _, g := range s.pickGenres() {
			prefs[g] = 1
		}
		// Roughly a fifth of users state a dislike too
		if s.rng.Intn(5) == 0 {
			prefs[catalogGenres[s.rng.Intn(len(catalogGenres))]] = -1
		}

		age := 10 * (1 + s.rng.Intn(6))
		location := fmt.Sprintf("%s, %s", gofakeit.City(), gofakeit.Country())

		users = append(users, models.User{
			ID:                  gofakeit.UUID(),
			Email:               fmt.Sprintf("%d.%s", i, gofakeit.Email()),
			Username:            fmt.Sprintf("%s%d", gofakeit.Username(), i),
			AgeBracket:          &age,
			Location:            &location,
			GenrePreferences:    prefs,
			OnboardingCompleted: true,
		})
	}

	if err := s.db.CreateInBatches(&users, 100).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// seedRatings generates taste-consistent ratings: users rate movies in their
// stated genres higher on average, giving the collaborative models real
// structure to recover instead of noise.
func (s *Seeder) seedRatings(users []models.User, movies []models.Movie, count int) error {
	type pair struct {
		user  int
		movie int
	}
	used := make(map[pair]bool)

	ratings := make([]models.Rating, 0, count)
	for len(ratings) < count {
		u := s.rng.Intn(len(users))
		m := s.rng.Intn(len(movies))
		if used[pair{u, m}] {
			continue
		}
		used[pair{u, m}] = true

		base := 2.5
		for _, g := range movies[m].Genres {
			if users[u].GenrePreferences[g] > 0 {
				base += 1.0
			}
		}
		value := base + s.rng.NormFloat64()*0.8
		value = float64(int(value*2+0.5)) / 2 // snap to half stars
		if value < models.MinRatingValue {
			value = models.MinRatingValue
		}
		if value > models.MaxRatingValue {
			value = models.MaxRatingValue
		}

		ratings = append(ratings, models.Rating{
			UserID:    users[u].ID,
			MovieID:   movies[m].ID,
			Value:     value,
			Timestamp: gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now()),
		})
	}

	if err := s.db.CreateInBatches(&ratings, 200).Error; err != nil {
		return err
	}
	return s.refreshCounters()
}

func (s *Seeder) seedLists(users []models.User, movies []models.Movie) error {
	var favorites []models.Favorite
	var watchlist []models.WatchlistItem

	for _, u := range users {
		for i, n := 0, s.rng.Intn(6); i < n; i++ {
			favorites = append(favorites, models.Favorite{
				UserID:  u.ID,
				MovieID: movies[s.rng.Intn(len(movies))].ID,
			})
		}
		for i, n := 0, s.rng.Intn(8); i < n; i++ {
			watchlist = append(watchlist, models.WatchlistItem{
				UserID:  u.ID,
				MovieID: movies[s.rng.Intn(len(movies))].ID,
			})
		}
	}

	if len(favorites) > 0 {
		if err := s.db.CreateInBatches(&favorites, 200).Error; err != nil {
			return err
		}
	}
	if len(watchlist) > 0 {
		if err := s.db.CreateInBatches(&watchlist, 200).Error; err != nil {
			return err
		}
	}
	return s.refreshCounters()
}

func (s *Seeder) seedThumbs(users []models.User, movies []models.Movie, count int) error {
	type pair struct {
		user  int
		movie int
	}
	used := make(map[pair]bool)

	signals := make([]models.ThumbsSignal, 0, count)
	for len(signals) < count {
		u := s.rng.Intn(len(users))
		m := s.rng.Intn(len(movies))
		if used[pair{u, m}] {
			continue
		}
		used[pair{u, m}] = true

		direction := models.ThumbsUp
		if s.rng.Intn(4) == 0 {
			direction = models.ThumbsDown
		}
		signals = append(signals, models.ThumbsSignal{
			UserID:    users[u].ID,
			MovieID:   movies[m].ID,
			Direction: direction,
		})
	}
	return s.db.CreateInBatches(&signals, 200).Error
}

// refreshCounters recomputes the denormalized per-user interaction counts.
func (s *Seeder) refreshCounters() error {
	return s.db.Exec(`
		UPDATE users SET
			rating_count = (SELECT COUNT(*) FROM ratings WHERE ratings.user_id = users.id),
			favorite_count = (SELECT COUNT(*) FROM favorites WHERE favorites.user_id = users.id),
			watchlist_count = (SELECT COUNT(*) FROM watchlist_items WHERE watchlist_items.user_id = users.id)
	`).Error
}

package recommender

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/cinematch/backend/internal/models"
)

// Store wraps the database queries the recommendation pipeline needs. Every
// method takes the pipeline no further than plain rows; scoring stays in the
// pure packages above it.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store bound to the given connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for callers that need transactions.
func (s *Store) DB() *gorm.DB { return s.db }

// GetUser loads a user by ID.
func (s *Store) GetUser(userID string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return &user, nil
}

// AllMovies loads the full catalog, embeddings included.
func (s *Store) AllMovies() ([]*models.Movie, error) {
	var movies []*models.Movie
	if err := s.db.Find(&movies).Error; err != nil {
		return nil, fmt.Errorf("load movies: %w", err)
	}
	return movies, nil
}

// MoviesByID hydrates candidates that carry only movie IDs with full rows,
// preserving the input order and dropping IDs that no longer exist.
func (s *Store) MoviesByID(candidates []Candidate) ([]Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	ids := make([]int, 0, len(candidates))
	for _, c := range candidates {
		if c.Movie != nil {
			ids = append(ids, c.Movie.ID)
		}
	}

	var movies []*models.Movie
	if err := s.db.Where("id IN ?", ids).Find(&movies).Error; err != nil {
		return nil, fmt.Errorf("hydrate movies: %w", err)
	}
	byID := make(map[int]*models.Movie, len(movies))
	for _, m := range movies {
		byID[m.ID] = m
	}

	out := candidates[:0]
	for _, c := range candidates {
		if c.Movie == nil {
			continue
		}
		if m, ok := byID[c.Movie.ID]; ok {
			c.Movie = m
			out = append(out, c)
		}
	}
	return out, nil
}

// PopularMovies returns well-known titles ordered by vote average. The vote
// count floor keeps obscure movies with three perfect scores out of the
// fallback shelf.
func (s *Store) PopularMovies(minVoteCount, limit int) ([]*models.Movie, error) {
	var movies []*models.Movie
	err := s.db.
		Where("vote_count >= ?", minVoteCount).
		Order("vote_average DESC, id ASC").
		Limit(limit).
		Find(&movies).Error
	if err != nil {
		return nil, fmt.Errorf("load popular movies: %w", err)
	}
	return movies, nil
}

// AllTrainingRatings loads every explicit rating plus implicit signals
// converted to surrogate values: favorites become cfg.FavoriteImplicitRating,
// watchlist adds become cfg.WatchlistImplicitRating. An explicit rating for
// the same user/movie wins over any implicit signal.
func (s *Store) AllTrainingRatings(cfg Config) ([]RatingTriple, error) {
	var ratings []models.Rating
	if err := s.db.Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}

	type pair struct {
		user  string
		movie int
	}
	explicit := make(map[pair]bool, len(ratings))
	out := make([]RatingTriple, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, RatingTriple{UserID: r.UserID, MovieID: r.MovieID, Value: r.Value})
		explicit[pair{r.UserID, r.MovieID}] = true
	}

	var favorites []models.Favorite
	if err := s.db.Find(&favorites).Error; err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	for _, f := range favorites {
		if !explicit[pair{f.UserID, f.MovieID}] {
			out = append(out, RatingTriple{UserID: f.UserID, MovieID: f.MovieID, Value: cfg.FavoriteImplicitRating})
			explicit[pair{f.UserID, f.MovieID}] = true
		}
	}

	var watchlist []models.WatchlistItem
	if err := s.db.Find(&watchlist).Error; err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	for _, w := range watchlist {
		if !explicit[pair{w.UserID, w.MovieID}] {
			out = append(out, RatingTriple{UserID: w.UserID, MovieID: w.MovieID, Value: cfg.WatchlistImplicitRating})
		}
	}
	return out, nil
}

// UserRatings loads one user's explicit ratings, newest first.
func (s *Store) UserRatings(userID string) ([]models.Rating, error) {
	var ratings []models.Rating
	err := s.db.
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("load ratings for user %s: %w", userID, err)
	}
	return ratings, nil
}

// SeenMovieIDs collects every movie the user has rated, favorited,
// watchlisted, or thumbed down, for exclusion from recommendations. The
// thumbs-down entry excludes the movie itself even when the movie carries no
// genres for the disliked-genre inference to work from.
func (s *Store) SeenMovieIDs(userID string) (map[int]bool, error) {
	seen := make(map[int]bool)

	var ids []int
	if err := s.db.Model(&models.Rating{}).Where("user_id = ?", userID).Pluck("movie_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("load rated movie ids: %w", err)
	}
	for _, id := range ids {
		seen[id] = true
	}

	ids = ids[:0]
	if err := s.db.Model(&models.Favorite{}).Where("user_id = ?", userID).Pluck("movie_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("load favorite movie ids: %w", err)
	}
	for _, id := range ids {
		seen[id] = true
	}

	ids = ids[:0]
	if err := s.db.Model(&models.WatchlistItem{}).Where("user_id = ?", userID).Pluck("movie_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("load watchlist movie ids: %w", err)
	}
	for _, id := range ids {
		seen[id] = true
	}

	ids = ids[:0]
	err := s.db.Model(&models.ThumbsSignal{}).
		Where("user_id = ? AND direction = ?", userID, models.ThumbsDown).
		Pluck("movie_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load thumbs-down movie ids: %w", err)
	}
	for _, id := range ids {
		seen[id] = true
	}
	return seen, nil
}

// PreferenceSignalsFor assembles the raw genre signal maps for the
// preference aggregator: stated likes and dislikes from the user profile,
// thumbs signals joined to movie genres, and rating counts per genre.
func (s *Store) PreferenceSignalsFor(user *models.User) (PreferenceSignals, error) {
	sig := PreferenceSignals{
		StatedLikes:    user.StatedLikes(),
		StatedDislikes: user.StatedDislikes(),
		ThumbsUp:       make(map[string]int),
		ThumbsDown:     make(map[string]bool),
		RatingCounts:   make(map[string]int),
	}

	var thumbs []models.ThumbsSignal
	if err := s.db.Where("user_id = ?", user.ID).Find(&thumbs).Error; err != nil {
		return sig, fmt.Errorf("load thumbs signals: %w", err)
	}
	thumbIDs := make([]int, 0, len(thumbs))
	for _, t := range thumbs {
		thumbIDs = append(thumbIDs, t.MovieID)
	}

	ratings, err := s.UserRatings(user.ID)
	if err != nil {
		return sig, err
	}
	ratingIDs := make([]int, 0, len(ratings))
	for _, r := range ratings {
		ratingIDs = append(ratingIDs, r.MovieID)
	}

	genres, err := s.movieGenres(append(append([]int(nil), thumbIDs...), ratingIDs...))
	if err != nil {
		return sig, err
	}

	for _, t := range thumbs {
		for _, g := range genres[t.MovieID] {
			if t.Direction == models.ThumbsUp {
				sig.ThumbsUp[g]++
			} else {
				sig.ThumbsDown[g] = true
			}
		}
	}
	for _, r := range ratings {
		for _, g := range genres[r.MovieID] {
			sig.RatingCounts[g]++
		}
	}
	return sig, nil
}

func (s *Store) movieGenres(ids []int) (map[int][]string, error) {
	out := make(map[int][]string)
	if len(ids) == 0 {
		return out, nil
	}
	var movies []models.Movie
	if err := s.db.Select("id", "genres").Where("id IN ?", ids).Find(&movies).Error; err != nil {
		return nil, fmt.Errorf("load movie genres: %w", err)
	}
	for _, m := range movies {
		out[m.ID] = m.Genres
	}
	return out, nil
}

// ProfileInputs builds the recency-ordered interaction list for the user
// taste centroid: high ratings weighted rating/5, favorites 1.0, watchlist
// 0.7, newest first, low ratings excluded.
func (s *Store) ProfileInputs(userID string, cfg Config) ([]ProfileInput, error) {
	type timedInput struct {
		in ProfileInput
		at time.Time
	}
	var inputs []timedInput

	ratings, err := s.UserRatings(userID)
	if err != nil {
		return nil, err
	}
	for _, r := range ratings {
		if r.Value <= cfg.LowRatingCeiling {
			continue
		}
		inputs = append(inputs, timedInput{
			in: ProfileInput{MovieID: r.MovieID, Weight: r.Value / models.MaxRatingValue},
			at: r.Timestamp,
		})
	}

	var favorites []models.Favorite
	if err := s.db.Where("user_id = ?", userID).Find(&favorites).Error; err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	for _, f := range favorites {
		inputs = append(inputs, timedInput{
			in: ProfileInput{MovieID: f.MovieID, Weight: 1.0},
			at: f.CreatedAt,
		})
	}

	var watchlist []models.WatchlistItem
	if err := s.db.Where("user_id = ?", userID).Find(&watchlist).Error; err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	for _, w := range watchlist {
		inputs = append(inputs, timedInput{
			in: ProfileInput{MovieID: w.MovieID, Weight: 0.7},
			at: w.CreatedAt,
		})
	}

	sort.SliceStable(inputs, func(i, j int) bool { return inputs[i].at.After(inputs[j].at) })

	out := make([]ProfileInput, len(inputs))
	for i, t := range inputs {
		out[i] = t.in
	}
	return out, nil
}

// CohortRatings loads high-signal ratings from users demographically close to
// the given user: same location, or age bracket within cfg.AgeBracketWindow.
func (s *Store) CohortRatings(user *models.User, cfg Config) ([]RatingTriple, error) {
	q := s.db.Model(&models.User{}).Where("id != ?", user.ID)

	switch {
	case user.AgeBracket != nil && user.Location != nil:
		q = q.Where("(age_bracket BETWEEN ? AND ?) OR location = ?",
			*user.AgeBracket-cfg.AgeBracketWindow, *user.AgeBracket+cfg.AgeBracketWindow, *user.Location)
	case user.AgeBracket != nil:
		q = q.Where("age_bracket BETWEEN ? AND ?",
			*user.AgeBracket-cfg.AgeBracketWindow, *user.AgeBracket+cfg.AgeBracketWindow)
	case user.Location != nil:
		q = q.Where("location = ?", *user.Location)
	default:
		return nil, nil
	}

	var cohortIDs []string
	if err := q.Pluck("id", &cohortIDs).Error; err != nil {
		return nil, fmt.Errorf("load cohort users: %w", err)
	}
	if len(cohortIDs) == 0 {
		return nil, nil
	}

	var ratings []models.Rating
	if err := s.db.Where("user_id IN ?", cohortIDs).Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("load cohort ratings: %w", err)
	}
	out := make([]RatingTriple, len(ratings))
	for i, r := range ratings {
		out[i] = RatingTriple{UserID: r.UserID, MovieID: r.MovieID, Value: r.Value}
	}
	return out, nil
}

// RatingCountSince counts ratings created after the given time, the signal
// the update scheduler polls.
func (s *Store) RatingCountSince(t time.Time) (int64, error) {
	var n int64
	if err := s.db.Model(&models.Rating{}).Where("created_at > ?", t).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count recent ratings: %w", err)
	}
	return n, nil
}

// RatingsSince loads ratings created after the given time, for warm starts.
func (s *Store) RatingsSince(t time.Time) ([]RatingTriple, error) {
	var ratings []models.Rating
	if err := s.db.Where("created_at > ?", t).Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("load recent ratings: %w", err)
	}
	out := make([]RatingTriple, len(ratings))
	for i, r := range ratings {
		out[i] = RatingTriple{UserID: r.UserID, MovieID: r.MovieID, Value: r.Value}
	}
	return out, nil
}

// LogModelUpdate records a rebuild attempt, success or failure.
func (s *Store) LogModelUpdate(log *models.ModelUpdateLog) error {
	if err := s.db.Create(log).Error; err != nil {
		return fmt.Errorf("log model update: %w", err)
	}
	return nil
}

package recommender

import (
	"context"
	"time"

	"github.com/cinematch/backend/internal/cache"
	"github.com/cinematch/backend/internal/errors"
	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/metrics"
	"github.com/cinematch/backend/internal/models"
)

// MinVoteCountForPopular is the vote floor for the popularity fallback shelf.
const MinVoteCountForPopular = 100

// maxServeWindow is the deepest page boundary the API can request
// (offset + limit). Candidate pools are sized from this fixed horizon rather
// than from the requested page, so one seed yields one full ordering and
// pages at different offsets never overlap.
const maxServeWindow = 100

// Service is the request-facing recommendation pipeline. It selects a serving
// strategy per request, runs it, and walks down the fallback chain whenever a
// strategy cannot produce results.
type Service struct {
	store     *Store
	scheduler *Scheduler
	popCache  *cache.PopularityCache
	cfg       Config
}

// NewService wires the pipeline together. popCache may be nil when Redis is
// unavailable; the popularity shelf then hits the database every time.
func NewService(store *Store, scheduler *Scheduler, popCache *cache.PopularityCache, cfg Config) *Service {
	return &Service{store: store, scheduler: scheduler, popCache: popCache, cfg: cfg}
}

// Store exposes the underlying store for handlers that need direct reads.
func (s *Service) Store() *Store { return s.store }

// Scheduler exposes the model scheduler for the admin surface.
func (s *Service) Scheduler() *Scheduler { return s.scheduler }

// Config returns the configuration the pipeline is serving with.
func (s *Service) Config() Config { return s.cfg }

// InvalidatePopularShelf drops the cached popularity shelf. Called after
// catalog writes so new titles do not wait out the TTL.
func (s *Service) InvalidatePopularShelf(ctx context.Context) {
	s.popCache.Invalidate(ctx, MinVoteCountForPopular, maxServeWindow*s.cfg.CandidateMultiple)
}

// Result is one served recommendation page.
type Result struct {
	Strategy   Strategy
	Candidates []Candidate
}

// Recommend produces a page of recommendations for the user. seed controls
// the reproducible top-of-list shuffle; passing the same seed returns the
// same ordering, which pagination across requests depends on.
func (s *Service) Recommend(ctx context.Context, userID string, limit, offset int, seed int64) (*Result, error) {
	start := time.Now()

	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}

	signals, err := s.store.PreferenceSignalsFor(user)
	if err != nil {
		return nil, err
	}
	profile := AggregatePreferences(signals, s.cfg)

	seen, err := s.store.SeenMovieIDs(userID)
	if err != nil {
		return nil, err
	}

	strategy := SelectStrategy(user, s.cfg)
	result, err := s.run(ctx, strategy, user, profile, seen, limit, offset, seed)
	if err != nil {
		return nil, err
	}

	served := make(map[string]int)
	for _, c := range result.Candidates {
		served[c.Algorithm]++
	}
	metrics.RecordRecommendation(string(result.Strategy), served, time.Since(start))
	return result, nil
}

// run executes a strategy and, when it yields nothing, drops to the next one
// in the chain. Popularity is terminal: whatever survives its filters is the
// answer, even an empty page.
func (s *Service) run(ctx context.Context, strategy Strategy, user *models.User, profile GenreProfile, seen map[int]bool, limit, offset int, seed int64) (*Result, error) {
	pool := maxServeWindow * s.cfg.CandidateMultiple

	for {
		var (
			candidates []Candidate
			err        error
		)
		switch strategy {
		case StrategyPersonalized:
			candidates, err = s.personalized(user, profile, seen, pool, limit, offset, seed)
		case StrategyGenrePreference:
			candidates, err = s.byGenrePreference(user, profile, seen, pool)
		case StrategyDemographic:
			candidates, err = s.byDemographics(user, profile, seen, pool)
		case StrategyPopularity:
			candidates, err = s.byPopularity(ctx, profile, seen, pool)
		}
		if err != nil && !errors.IsInsufficientData(err) {
			return nil, err
		}

		if strategy != StrategyPersonalized {
			candidates = Paginate(candidates, offset, limit)
		}
		if len(candidates) > 0 || strategy == StrategyPopularity {
			return &Result{Strategy: strategy, Candidates: candidates}, nil
		}

		next := nextStrategy(strategy, user)
		metrics.RecordFallback(string(strategy), string(next))
		logger.Log.Debug("strategy produced nothing, falling back",
			logger.WithUserID(user.ID),
			logger.WithAlgorithm(string(strategy)))
		strategy = next
	}
}

// nextStrategy is the fallback chain: personalized drops into the cold-start
// chain at the highest rung the user's profile supports.
func nextStrategy(current Strategy, user *models.User) Strategy {
	switch current {
	case StrategyPersonalized:
		if len(user.StatedLikes()) > 0 {
			return StrategyGenrePreference
		}
		if user.HasDemographics() {
			return StrategyDemographic
		}
		return StrategyPopularity
	case StrategyGenrePreference:
		if user.HasDemographics() {
			return StrategyDemographic
		}
		return StrategyPopularity
	default:
		return StrategyPopularity
	}
}

// personalized merges the three model-backed sources with weighted
// round-robin interleaving, then applies the reproducible shuffle and
// pagination. Returns no candidates when no model generation is published
// yet.
func (s *Service) personalized(user *models.User, profile GenreProfile, seen map[int]bool, pool, limit, offset int, seed int64) ([]Candidate, error) {
	set := s.scheduler.Current()
	if set == nil {
		return nil, nil
	}
	userID := user.ID

	var sources []SourceList

	if set.Latent != nil && set.Latent.HasUser(userID) {
		latent, err := set.Latent.Recommend(userID, pool, seen)
		if err == nil {
			latent, err = s.hydrateFiltered(latent, profile.Disliked)
			if err != nil {
				return nil, err
			}
			sources = append(sources, SourceList{Algorithm: models.AlgorithmLatentFactor, Candidates: latent})
		}
	}

	if set.ItemCF != nil {
		userRatings, err := s.store.UserRatings(userID)
		if err != nil {
			return nil, err
		}
		triples := make([]RatingTriple, len(userRatings))
		for i, r := range userRatings {
			triples[i] = RatingTriple{UserID: r.UserID, MovieID: r.MovieID, Value: r.Value}
		}
		itemCF, err := set.ItemCF.Recommend(triples, pool, seen)
		if err == nil {
			itemCF, err = s.hydrateFiltered(itemCF, profile.Disliked)
			if err != nil {
				return nil, err
			}
			sources = append(sources, SourceList{Algorithm: models.AlgorithmItemCF, Candidates: itemCF})
		}
	}

	if set.Embeddings != nil && set.Embeddings.Size() > 0 {
		embedding, err := s.embeddingSource(set.Embeddings, userID, profile, seen, pool)
		if err != nil {
			return nil, err
		}
		if len(embedding) > 0 {
			sources = append(sources, SourceList{Algorithm: models.AlgorithmEmbedding, Candidates: embedding})
		}
	}

	merged := MergeWeighted(sources, s.cfg.SourceWeights, pool)
	// Every source already filters, but the merged list is re-filtered so a
	// stale or hydration-skipping source can never leak an excluded genre.
	merged = FilterDisliked(merged, profile.Disliked)
	merged = ShuffleTop(merged, 3, seed)
	return Paginate(merged, offset, limit), nil
}

// embeddingSource builds the taste-centroid similarity list with diversity
// re-ranking. The pool fed to the re-ranker is oversized so it has room to
// trade raw similarity for genre breadth.
func (s *Service) embeddingSource(idx *EmbeddingIndex, userID string, profile GenreProfile, seen map[int]bool, pool int) ([]Candidate, error) {
	inputs, err := s.store.ProfileInputs(userID, s.cfg)
	if err != nil {
		return nil, err
	}
	vec := idx.UserProfileVector(inputs)
	if vec == nil {
		return nil, nil
	}

	similar := idx.SimilarToVector(vec, pool*s.cfg.CandidateMultiple)
	similar = FilterSeen(similar, seen)
	similar = FilterDisliked(similar, profile.Disliked)
	return RerankDiverse(similar, pool, s.cfg.DiversityWeight), nil
}

func (s *Service) byGenrePreference(user *models.User, profile GenreProfile, seen map[int]bool, pool int) ([]Candidate, error) {
	liked := profile.Preferred(s.cfg)
	if len(liked) == 0 {
		liked = user.StatedLikes()
	}
	if len(liked) == 0 {
		return nil, nil
	}

	movies, err := s.store.AllMovies()
	if err != nil {
		return nil, err
	}
	candidates := ScoreByGenrePreference(movies, liked, pool, s.cfg)
	candidates = FilterSeen(candidates, seen)
	return FilterDisliked(candidates, profile.Disliked), nil
}

func (s *Service) byDemographics(user *models.User, profile GenreProfile, seen map[int]bool, pool int) ([]Candidate, error) {
	cohort, err := s.store.CohortRatings(user, s.cfg)
	if err != nil {
		return nil, err
	}
	if len(cohort) == 0 {
		return nil, nil
	}
	candidates := ScoreByCohort(cohort, pool, s.cfg)
	candidates = FilterSeen(candidates, seen)
	return s.hydrateFiltered(candidates, profile.Disliked)
}

func (s *Service) byPopularity(ctx context.Context, profile GenreProfile, seen map[int]bool, pool int) ([]Candidate, error) {
	movies := s.popCache.Get(ctx, MinVoteCountForPopular, pool)
	if movies == nil {
		var err error
		movies, err = s.store.PopularMovies(MinVoteCountForPopular, pool)
		if err != nil {
			return nil, err
		}
		s.popCache.Set(ctx, MinVoteCountForPopular, pool, movies)
	}
	candidates := PopularityCandidates(movies, pool)
	candidates = FilterSeen(candidates, seen)
	return FilterDisliked(candidates, profile.Disliked), nil
}

// hydrateFiltered attaches full movie rows to ID-only candidates and applies
// the disliked-genre filter, which needs genres and therefore full rows.
func (s *Service) hydrateFiltered(candidates []Candidate, disliked map[string]bool) ([]Candidate, error) {
	hydrated, err := s.store.MoviesByID(candidates)
	if err != nil {
		return nil, err
	}
	return FilterDisliked(hydrated, disliked), nil
}

// SimilarMovies serves the "more like this" surface for one anchor movie:
// embedding neighbors first, co-rating neighbors when the anchor has no
// embedding, genre-overlap ranking when it has neither.
func (s *Service) SimilarMovies(movieID, limit int) ([]Candidate, error) {
	set := s.scheduler.Current()

	if set != nil && set.Embeddings != nil && set.Embeddings.Has(movieID) {
		similar, err := set.Embeddings.SimilarToMovie(movieID, limit*s.cfg.CandidateMultiple)
		if err == nil && len(similar) > 0 {
			return RerankDiverse(similar, limit, s.cfg.DiversityWeight), nil
		}
	}

	if set != nil && set.ItemCF != nil {
		if similar := set.ItemCF.SimilarMovies(movieID, limit); len(similar) > 0 {
			return s.store.MoviesByID(similar)
		}
	}

	anchor, err := s.anchorMovie(movieID)
	if err != nil {
		return nil, err
	}
	liked := make(map[string]float64, len(anchor.Genres))
	for _, g := range anchor.Genres {
		liked[g] = 1
	}
	movies, err := s.store.AllMovies()
	if err != nil {
		return nil, err
	}
	candidates := ScoreByGenrePreference(movies, liked, limit+1, s.cfg)
	out := candidates[:0]
	for _, c := range candidates {
		if c.Movie.ID != movieID {
			out = append(out, c)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) anchorMovie(movieID int) (*models.Movie, error) {
	var movie models.Movie
	if err := s.store.DB().First(&movie, "id = ?", movieID).Error; err != nil {
		return nil, errors.NotFound("movie")
	}
	return &movie, nil
}

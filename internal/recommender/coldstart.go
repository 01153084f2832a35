package recommender

import (
	"sort"

	"github.com/cinematch/backend/internal/models"
)

// Strategy identifies how a request will be served, chosen from the user's
// interaction count and available profile data.
type Strategy string

const (
	// StrategyPersonalized - enough history for the collaborative models.
	StrategyPersonalized Strategy = "personalized"
	// StrategyGenrePreference - cold user with stated genre likes.
	StrategyGenrePreference Strategy = "genre_preference"
	// StrategyDemographic - cold user, no stated likes, but age or location.
	StrategyDemographic Strategy = "demographic"
	// StrategyPopularity - nothing known about the user at all.
	StrategyPopularity Strategy = "popularity"
)

// SelectStrategy picks the serving strategy. Users with interaction counts at
// or above cfg.ColdStartThreshold are personalized; below it the fallback
// chain is stated genres, then demographics, then popularity.
func SelectStrategy(user *models.User, cfg Config) Strategy {
	if user.InteractionCount() >= cfg.ColdStartThreshold {
		return StrategyPersonalized
	}
	if len(user.StatedLikes()) > 0 {
		return StrategyGenrePreference
	}
	if user.HasDemographics() {
		return StrategyDemographic
	}
	return StrategyPopularity
}

// ScoreByGenrePreference ranks candidate movies for a cold user by how well
// they match the liked genres, with quality and catalog popularity behind it:
//
//	score = overlapFraction * cfg.GenreOverlapWeight
//	      + (voteAverage / 10) * cfg.VoteAverageWeight
//	      + popularity * cfg.PopularityWeight
//
// where overlapFraction is the preference-weighted share of the movie's
// genres the user likes, normalized by the strongest liked genre. Uniform
// weights reduce it to the plain share; mixed weights rank a stated genre's
// titles above a merely habitual genre's. Movies with no liked genre still
// receive their quality and popularity terms, keeping the list full when
// likes are narrow.
func ScoreByGenrePreference(movies []*models.Movie, liked map[string]float64, limit int, cfg Config) []Candidate {
	var maxWeight float64
	for _, w := range liked {
		if w > maxWeight {
			maxWeight = w
		}
	}

	out := make([]Candidate, 0, len(movies))
	for _, m := range movies {
		overlap := 0.0
		for _, g := range m.Genres {
			overlap += liked[g]
		}
		score := (m.VoteAverage/10.0)*cfg.VoteAverageWeight + m.Popularity*cfg.PopularityWeight
		if len(m.Genres) > 0 && maxWeight > 0 {
			score += overlap / (maxWeight * float64(len(m.Genres))) * cfg.GenreOverlapWeight
		}
		out = append(out, Candidate{Movie: m, Score: score, Algorithm: models.AlgorithmGenrePref})
	}
	sortCandidates(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type cohortStat struct {
	count int
	sum   float64
}

// ScoreByCohort turns ratings from a demographic cohort into ranked
// candidates. Only ratings at or above cfg.HighRatingFloor count as
// endorsements, and each movie's score is its endorsement count weighted by
// the mean endorsement so widely loved titles rank above single enthusiasms.
func ScoreByCohort(cohortRatings []RatingTriple, limit int, cfg Config) []Candidate {
	stats := make(map[int]*cohortStat)
	for _, r := range cohortRatings {
		if r.Value < cfg.HighRatingFloor {
			continue
		}
		s, ok := stats[r.MovieID]
		if !ok {
			s = &cohortStat{}
			stats[r.MovieID] = s
		}
		s.count++
		s.sum += r.Value
	}

	scored := make([]scoredID, 0, len(stats))
	for movieID, s := range stats {
		mean := s.sum / float64(s.count)
		scored = append(scored, scoredID{movieID, float64(s.count) * mean / models.MaxRatingValue})
	}
	return topCandidates(scored, limit, models.AlgorithmDemographic)
}

// PopularityCandidates wraps already-ordered popular movies as candidates,
// preserving the store's ordering via a descending synthetic score.
func PopularityCandidates(movies []*models.Movie, limit int) []Candidate {
	if limit > 0 && len(movies) > limit {
		movies = movies[:limit]
	}
	out := make([]Candidate, len(movies))
	for i, m := range movies {
		out[i] = Candidate{Movie: m, Score: float64(len(movies) - i), Algorithm: models.AlgorithmPopularity}
	}
	return out
}

func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].Movie.ID < cs[j].Movie.ID
	})
}

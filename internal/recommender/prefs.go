package recommender

import (
	"math"
	"sort"
)

// PreferenceSignals are the raw per-genre inputs to the aggregator, collected
// from the user's stated onboarding likes, thumbs signals, and rating history.
type PreferenceSignals struct {
	StatedLikes    map[string]float64 // genre -> positive stated weight
	StatedDislikes map[string]bool    // genre -> stated negative weight
	ThumbsUp       map[string]int     // genre -> thumbs-up count
	ThumbsDown     map[string]bool    // genres of thumbs-downed movies
	RatingCounts   map[string]int     // genre -> number of rated movies
}

// GenreProfile is the aggregated output: one combined score per genre plus
// the hard exclusion set. It is recomputed from current data on every request
// and never cached beyond the request lifetime.
type GenreProfile struct {
	Scores   map[string]float64
	Disliked map[string]bool
}

// AggregatePreferences combines stated and inferred genre signals into one
// scored mapping:
//
//	score(g) = statedWeight*statedLike(g) + thumbsWeight*thumbsUp(g)
//	         + min(sqrt(ratingCount(g))*ratingWeight, cap)
//
// The square root dampens habitual-volume genres so a heavily-watched genre
// cannot drown out explicit stated taste, and the dampened term is capped at
// the stated-like weight so it can never outrank it either. Genres the user
// has thumbed down or stated a dislike for are excluded outright, not merely
// down-weighted.
func AggregatePreferences(sig PreferenceSignals, cfg Config) GenreProfile {
	disliked := make(map[string]bool)
	for g := range sig.StatedDislikes {
		disliked[g] = true
	}
	for g := range sig.ThumbsDown {
		disliked[g] = true
	}

	scores := make(map[string]float64)

	add := func(g string, v float64) {
		if disliked[g] {
			return
		}
		scores[g] += v
	}

	for g, w := range sig.StatedLikes {
		if w > 0 {
			add(g, cfg.StatedLikeWeight)
		}
	}
	for g, n := range sig.ThumbsUp {
		if n > 0 {
			add(g, float64(n)*cfg.ThumbsUpWeight)
		}
	}
	for g, n := range sig.RatingCounts {
		if n > 0 {
			term := math.Sqrt(float64(n)) * cfg.RatingCountWeight
			if term > cfg.RatingCountCap {
				term = cfg.RatingCountCap
			}
			add(g, term)
		}
	}

	return GenreProfile{Scores: scores, Disliked: disliked}
}

// Preferred returns every genre whose combined score clears the threshold.
// The bar is deliberately low - a single rating already marks a genre as
// preferred - because downstream ranking by score keeps the dominant genres
// ahead while broad inclusion widens the candidate pool.
func (p GenreProfile) Preferred(cfg Config) map[string]float64 {
	preferred := make(map[string]float64)
	for g, s := range p.Scores {
		if s > cfg.PreferredThreshold {
			preferred[g] = s
		}
	}
	return preferred
}

// TopGenres returns the highest-scoring genres in descending score order,
// at most cfg.TopGenreCount of them. Ties break alphabetically so the result
// is stable across requests.
func (p GenreProfile) TopGenres(cfg Config) []string {
	type genreScore struct {
		genre string
		score float64
	}

	ranked := make([]genreScore, 0, len(p.Scores))
	for g, s := range p.Scores {
		if s > cfg.PreferredThreshold {
			ranked = append(ranked, genreScore{g, s})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].genre < ranked[j].genre
	})

	n := cfg.TopGenreCount
	if n > len(ranked) {
		n = len(ranked)
	}

	top := make([]string, 0, n)
	for _, gs := range ranked[:n] {
		top = append(top, gs.genre)
	}
	return top
}

// Empty reports whether the profile carries no positive signal at all, in
// which case the caller must use the popularity fallback.
func (p GenreProfile) Empty() bool {
	return len(p.Scores) == 0
}

package recommender

import "github.com/cinematch/backend/internal/models"

// A Candidate is one scored movie flowing through the pipeline, tagged with
// the source algorithm that produced it so analytics can attribute outcomes.
type Candidate struct {
	Movie     *models.Movie
	Score     float64
	Algorithm string
}

// FilterDisliked removes every candidate that shares at least one genre with
// the exclusion set. It is a hard filter: a 9.8-rated masterpiece in a
// disliked genre is still dropped. Empty input yields empty output - the
// filter never substitutes fallback content, that is the caller's job.
func FilterDisliked(candidates []Candidate, disliked map[string]bool) []Candidate {
	if len(disliked) == 0 {
		return candidates
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Movie != nil && c.Movie.HasAnyGenre(disliked) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// FilterSeen drops candidates the user has already rated, favorited, or
// watchlisted.
func FilterSeen(candidates []Candidate, seen map[int]bool) []Candidate {
	if len(seen) == 0 {
		return candidates
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Movie != nil && seen[c.Movie.ID] {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

package recommender

import (
	"math/rand"
	"sort"
)

// SourceList is one algorithm's ranked contribution to the hybrid merge.
type SourceList struct {
	Algorithm  string
	Candidates []Candidate
}

// MergeWeighted interleaves ranked lists from multiple sources with a
// weighted round-robin: a source with weight 3 contributes three candidates
// per cycle to a weight-1 source's one. Duplicate movies keep their first
// (highest-priority) occurrence. Sources missing from weights default to
// weight 1; weight 0 drops the source entirely.
func MergeWeighted(sources []SourceList, weights map[string]int, limit int) []Candidate {
	type cursor struct {
		list []Candidate
		pos  int
		take int
	}

	cursors := make([]*cursor, 0, len(sources))
	for _, s := range sources {
		w, ok := weights[s.Algorithm]
		if !ok {
			w = 1
		}
		if w <= 0 || len(s.Candidates) == 0 {
			continue
		}
		cursors = append(cursors, &cursor{list: s.Candidates, take: w})
	}

	seen := make(map[int]bool)
	merged := make([]Candidate, 0, limit)

	for len(cursors) > 0 {
		if limit > 0 && len(merged) >= limit {
			break
		}
		alive := cursors[:0]
		for _, c := range cursors {
			for n := 0; n < c.take && c.pos < len(c.list); c.pos++ {
				cand := c.list[c.pos]
				if cand.Movie == nil || seen[cand.Movie.ID] {
					continue
				}
				seen[cand.Movie.ID] = true
				merged = append(merged, cand)
				n++
				if limit > 0 && len(merged) >= limit {
					break
				}
			}
			if c.pos < len(c.list) {
				alive = append(alive, c)
			}
		}
		cursors = alive
	}

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// ShuffleTop lightly perturbs the merged order so repeat requests do not show
// an identical wall: each candidate's rank gets uniform jitter of up to
// jitterRanks positions, then the list is re-sorted. A fixed seed reproduces
// the exact ordering, which the tests and the A/B experiment bucketing rely
// on.
func ShuffleTop(candidates []Candidate, jitterRanks int, seed int64) []Candidate {
	if jitterRanks <= 0 || len(candidates) < 2 {
		return candidates
	}
	rng := rand.New(rand.NewSource(seed))

	type jittered struct {
		c    Candidate
		rank float64
	}
	js := make([]jittered, len(candidates))
	for i, c := range candidates {
		js[i] = jittered{c, float64(i) + rng.Float64()*float64(jitterRanks)}
	}
	sort.SliceStable(js, func(i, j int) bool { return js[i].rank < js[j].rank })

	out := make([]Candidate, len(js))
	for i, j := range js {
		out[i] = j.c
	}
	return out
}

// Paginate applies offset/limit to a final list. Offsets past the end return
// an empty slice, not an error.
func Paginate(candidates []Candidate, offset, limit int) []Candidate {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(candidates) {
		return nil
	}
	candidates = candidates[offset:]
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

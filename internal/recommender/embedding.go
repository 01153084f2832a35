package recommender

import (
	"math"
	"sort"

	"github.com/cinematch/backend/internal/errors"
	"github.com/cinematch/backend/internal/models"
)

// EmbeddingIndex holds the dense movie vectors in memory for brute-force
// cosine search. At catalog scale (tens of thousands of titles, a few hundred
// dimensions) a linear scan is single-digit milliseconds, so there is no
// approximate-nearest-neighbor structure here.
type EmbeddingIndex struct {
	movies []*models.Movie
	norms  []float64
	byID   map[int]int
	dim    int
}

// NewEmbeddingIndex builds an index over every movie that carries an
// embedding. Movies without one are skipped; they can still be recommended
// by the genre and popularity paths.
func NewEmbeddingIndex(movies []*models.Movie) *EmbeddingIndex {
	idx := &EmbeddingIndex{byID: make(map[int]int)}
	for _, m := range movies {
		if !m.HasEmbedding() {
			continue
		}
		if idx.dim == 0 {
			idx.dim = len(m.Embedding)
		}
		if len(m.Embedding) != idx.dim {
			continue
		}
		idx.byID[m.ID] = len(idx.movies)
		idx.movies = append(idx.movies, m)
		idx.norms = append(idx.norms, vectorNorm(m.Embedding))
	}
	return idx
}

// Size returns the number of indexed movies.
func (idx *EmbeddingIndex) Size() int { return len(idx.movies) }

// Has reports whether the given movie has an indexed embedding.
func (idx *EmbeddingIndex) Has(movieID int) bool {
	_, ok := idx.byID[movieID]
	return ok
}

// SimilarToMovie returns up to limit movies ranked by cosine similarity to
// the anchor movie, excluding the anchor itself. It returns
// ErrNoEmbedding when the anchor is not indexed.
func (idx *EmbeddingIndex) SimilarToMovie(movieID, limit int) ([]Candidate, error) {
	pos, ok := idx.byID[movieID]
	if !ok {
		return nil, errors.ErrNoEmbedding
	}
	return idx.search(idx.movies[pos].Embedding, limit, func(m *models.Movie) bool {
		return m.ID == movieID
	}), nil
}

// SimilarToVector returns up to limit movies ranked by cosine similarity to
// an arbitrary query vector, typically a user profile centroid.
func (idx *EmbeddingIndex) SimilarToVector(query []float64, limit int) []Candidate {
	if len(query) != idx.dim || vectorNorm(query) == 0 {
		return nil
	}
	return idx.search(query, limit, nil)
}

func (idx *EmbeddingIndex) search(query []float64, limit int, skip func(*models.Movie) bool) []Candidate {
	qnorm := vectorNorm(query)
	if qnorm == 0 {
		return nil
	}

	out := make([]Candidate, 0, len(idx.movies))
	for i, m := range idx.movies {
		if skip != nil && skip(m) {
			continue
		}
		if idx.norms[i] == 0 {
			continue
		}
		sim := dot(query, m.Embedding) / (qnorm * idx.norms[i])
		out = append(out, Candidate{Movie: m, Score: sim, Algorithm: models.AlgorithmEmbedding})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Movie.ID < out[j].Movie.ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ProfileInput is one interaction contributing to a user's taste centroid,
// ordered most recent first by the caller.
type ProfileInput struct {
	MovieID int
	Weight  float64 // rating/5 for ratings, 1.0 favorites, 0.7 watchlist
}

// UserProfileVector computes the user's taste centroid as a weighted mean of
// the embeddings of movies they interacted with. Each input's weight is
// multiplied by a recency decay 1/(1+i/10) over its position, so the first
// ten or so interactions dominate and old taste fades rather than vanishing.
// Returns nil when no input movie has an embedding.
func (idx *EmbeddingIndex) UserProfileVector(inputs []ProfileInput) []float64 {
	if idx.dim == 0 {
		return nil
	}

	centroid := make([]float64, idx.dim)
	total := 0.0
	for i, in := range inputs {
		pos, ok := idx.byID[in.MovieID]
		if !ok {
			continue
		}
		w := in.Weight / (1.0 + float64(i)/10.0)
		if w <= 0 {
			continue
		}
		emb := idx.movies[pos].Embedding
		for d := range centroid {
			centroid[d] += emb[d] * w
		}
		total += w
	}
	if total == 0 {
		return nil
	}
	for d := range centroid {
		centroid[d] /= total
	}
	return centroid
}

// RerankDiverse greedily re-orders similarity-ranked candidates, penalizing
// each candidate by its genre overlap with everything already selected:
//
//	adjusted = similarity - diversityWeight * overlapRatio(candidate, picked)
//
// With weight zero this is a no-op ordering; raising it trades raw relevance
// for breadth. The candidate pool should be a few times larger than limit so
// the re-ranker has room to diversify.
func RerankDiverse(candidates []Candidate, limit int, diversityWeight float64) []Candidate {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}
	if diversityWeight == 0 || len(candidates) <= 1 {
		if len(candidates) > limit {
			return candidates[:limit]
		}
		return candidates
	}

	pool := make([]Candidate, len(candidates))
	copy(pool, candidates)

	pickedGenres := make(map[string]int)
	picked := make([]Candidate, 0, limit)

	for len(picked) < limit && len(pool) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, c := range pool {
			adjusted := c.Score - diversityWeight*genreOverlapRatio(c.Movie, pickedGenres)
			if adjusted > bestScore {
				bestScore = adjusted
				bestIdx = i
			}
		}
		chosen := pool[bestIdx]
		picked = append(picked, chosen)
		for _, g := range chosen.Movie.Genres {
			pickedGenres[g]++
		}
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}
	return picked
}

// genreOverlapRatio is the fraction of the movie's genres already present in
// the picked set.
func genreOverlapRatio(m *models.Movie, pickedGenres map[string]int) float64 {
	if m == nil || len(m.Genres) == 0 || len(pickedGenres) == 0 {
		return 0
	}
	overlap := 0
	for _, g := range m.Genres {
		if pickedGenres[g] > 0 {
			overlap++
		}
	}
	return float64(overlap) / float64(len(m.Genres))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func vectorNorm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

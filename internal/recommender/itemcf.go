package recommender

import (
	"math"
	"sort"

	"github.com/cinematch/backend/internal/errors"
	"github.com/cinematch/backend/internal/models"
)

// ItemCFModel holds mean-centered item-item cosine similarities computed from
// co-rating patterns. Only pairs with at least cfg.MinCoRatings overlapping
// raters get a similarity entry; everything else is treated as zero.
type ItemCFModel struct {
	// sims[a][b] = similarity, stored once per unordered pair under both keys
	sims      map[int]map[int]float64
	trainedOn int
}

// TrainItemCF builds the item similarity matrix. Ratings are mean-centered
// per user first so a generous rater and a harsh rater contribute comparable
// signal. Returns ErrInsufficientData below cfg.MinRatingsForModel.
func TrainItemCF(ratings []RatingTriple, cfg Config) (*ItemCFModel, error) {
	if len(ratings) < cfg.MinRatingsForModel {
		return nil, errors.InsufficientData("item similarity model needs %d ratings, have %d", cfg.MinRatingsForModel, len(ratings))
	}

	// Per-user mean centering.
	userSum := make(map[string]float64)
	userCount := make(map[string]int)
	for _, r := range ratings {
		userSum[r.UserID] += r.Value
		userCount[r.UserID]++
	}

	// movie -> user -> centered rating
	byMovie := make(map[int]map[string]float64)
	for _, r := range ratings {
		centered := r.Value - userSum[r.UserID]/float64(userCount[r.UserID])
		col, ok := byMovie[r.MovieID]
		if !ok {
			col = make(map[string]float64)
			byMovie[r.MovieID] = col
		}
		col[r.UserID] = centered
	}

	movieIDs := make([]int, 0, len(byMovie))
	for id := range byMovie {
		movieIDs = append(movieIDs, id)
	}
	sort.Ints(movieIDs)

	m := &ItemCFModel{sims: make(map[int]map[int]float64), trainedOn: len(ratings)}
	for i := 0; i < len(movieIDs); i++ {
		a := movieIDs[i]
		for j := i + 1; j < len(movieIDs); j++ {
			b := movieIDs[j]
			sim, coCount := centeredCosine(byMovie[a], byMovie[b])
			if coCount < cfg.MinCoRatings || sim == 0 {
				continue
			}
			m.setSim(a, b, sim)
			m.setSim(b, a, sim)
		}
	}
	return m, nil
}

func (m *ItemCFModel) setSim(a, b int, sim float64) {
	row, ok := m.sims[a]
	if !ok {
		row = make(map[int]float64)
		m.sims[a] = row
	}
	row[b] = sim
}

// centeredCosine computes cosine over the users both columns share, returning
// the similarity and the co-rating count.
func centeredCosine(a, b map[string]float64) (float64, int) {
	if len(b) < len(a) {
		a, b = b, a
	}
	dotSum, co := 0.0, 0
	for user, av := range a {
		bv, ok := b[user]
		if !ok {
			continue
		}
		dotSum += av * bv
		co++
	}
	if co == 0 {
		return 0, 0
	}
	na, nb := 0.0, 0.0
	for _, v := range a {
		na += v * v
	}
	for _, v := range b {
		nb += v * v
	}
	if na == 0 || nb == 0 {
		return 0, co
	}
	return dotSum / (math.Sqrt(na) * math.Sqrt(nb)), co
}

// Recommend scores unseen movies for a user by aggregating the similarities
// of each candidate to the movies the user rated highly:
//
//	score(c) = sum over rated r of sim(c, r) * (rating(r) - 2.75)
//
// The 2.75 midpoint makes low ratings push similar movies down instead of up.
// Returns ErrInsufficientData when none of the user's rated movies appear in
// the similarity matrix.
func (m *ItemCFModel) Recommend(userRatings []RatingTriple, limit int, exclude map[int]bool) ([]Candidate, error) {
	const midpoint = (models.MinRatingValue + models.MaxRatingValue) / 2

	scores := make(map[int]float64)
	anchored := false
	for _, r := range userRatings {
		row, ok := m.sims[r.MovieID]
		if !ok {
			continue
		}
		anchored = true
		weight := r.Value - midpoint
		for movieID, sim := range row {
			if exclude[movieID] {
				continue
			}
			scores[movieID] += sim * weight
		}
	}
	if !anchored {
		return nil, errors.InsufficientData("no rated movie has similarity data")
	}

	scored := make([]scoredID, 0, len(scores))
	for movieID, s := range scores {
		if s <= 0 {
			continue
		}
		scored = append(scored, scoredID{movieID, s})
	}
	return topCandidates(scored, limit, models.AlgorithmItemCF), nil
}

// SimilarMovies returns the movies most similar to the given one by co-rating
// pattern, for the "because you watched X" surface.
func (m *ItemCFModel) SimilarMovies(movieID, limit int) []Candidate {
	row := m.sims[movieID]
	scored := make([]scoredID, 0, len(row))
	for id, sim := range row {
		if sim <= 0 {
			continue
		}
		scored = append(scored, scoredID{id, sim})
	}
	return topCandidates(scored, limit, models.AlgorithmItemCF)
}

// TrainedOn reports how many rating observations built the matrix.
func (m *ItemCFModel) TrainedOn() int { return m.trainedOn }

// PairCount returns the number of stored similarity entries, for metrics.
func (m *ItemCFModel) PairCount() int {
	n := 0
	for _, row := range m.sims {
		n += len(row)
	}
	return n / 2
}

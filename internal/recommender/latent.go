package recommender

import (
	"math"
	"math/rand"
	"sort"

	"github.com/cinematch/backend/internal/errors"
	"github.com/cinematch/backend/internal/models"
)

// RatingTriple is one (user, movie, value) observation fed to the
// collaborative models. Implicit signals (favorites, watchlist adds) arrive
// here already converted to their surrogate rating values.
type RatingTriple struct {
	UserID  string
	MovieID int
	Value   float64
}

// LatentFactorModel is a plain biased matrix factorization trained with SGD:
//
//	predict(u, m) = mean + userBias[u] + movieBias[m] + dot(P[u], Q[m])
//
// Factor matrices are dense [n][k] float64; at the scale this serves
// (thousands of users, tens of thousands of movies, k=16) the whole model is
// a few hundred MB at worst and rebuild takes seconds, not minutes.
type LatentFactorModel struct {
	userIndex  map[string]int
	movieIndex map[int]int
	movieIDs   []int

	userFactors  [][]float64
	movieFactors [][]float64
	userBias     []float64
	movieBias    []float64
	globalMean   float64

	factors           int
	explainedVariance float64
	trainedOn         int
}

// TrainLatentFactor fits a fresh model over the given ratings. Returns
// ErrInsufficientData below cfg.MinRatingsForModel observations. When the
// user-by-movie matrix would exceed cfg.MaxMatrixCells, the ratings are
// subsampled to the most active users first so training stays bounded.
func TrainLatentFactor(ratings []RatingTriple, cfg Config, seed int64) (*LatentFactorModel, error) {
	if len(ratings) < cfg.MinRatingsForModel {
		return nil, errors.InsufficientData("latent factor model needs %d ratings, have %d", cfg.MinRatingsForModel, len(ratings))
	}

	rng := rand.New(rand.NewSource(seed))
	ratings = capMatrixSize(ratings, cfg.MaxMatrixCells)

	m := &LatentFactorModel{
		userIndex:  make(map[string]int),
		movieIndex: make(map[int]int),
		factors:    cfg.LatentFactors,
		trainedOn:  len(ratings),
	}

	sum := 0.0
	for _, r := range ratings {
		if _, ok := m.userIndex[r.UserID]; !ok {
			m.userIndex[r.UserID] = len(m.userIndex)
		}
		if _, ok := m.movieIndex[r.MovieID]; !ok {
			m.movieIndex[r.MovieID] = len(m.movieIndex)
			m.movieIDs = append(m.movieIDs, r.MovieID)
		}
		sum += r.Value
	}
	m.globalMean = sum / float64(len(ratings))

	nu, nm := len(m.userIndex), len(m.movieIndex)
	m.userFactors = randomFactors(rng, nu, m.factors)
	m.movieFactors = randomFactors(rng, nm, m.factors)
	m.userBias = make([]float64, nu)
	m.movieBias = make([]float64, nm)

	m.fit(ratings, cfg, rng)
	return m, nil
}

// WarmStart continues training from the previous model's parameters instead
// of random initialization, folding in only the new ratings. Users and movies
// unseen by the previous model get fresh random rows.
func (prev *LatentFactorModel) WarmStart(newRatings []RatingTriple, cfg Config, seed int64) (*LatentFactorModel, error) {
	if prev == nil {
		return TrainLatentFactor(newRatings, cfg, seed)
	}
	if len(newRatings) == 0 {
		return prev, nil
	}

	rng := rand.New(rand.NewSource(seed))

	m := &LatentFactorModel{
		userIndex:  make(map[string]int, len(prev.userIndex)),
		movieIndex: make(map[int]int, len(prev.movieIndex)),
		movieIDs:   append([]int(nil), prev.movieIDs...),
		userBias:   append([]float64(nil), prev.userBias...),
		movieBias:  append([]float64(nil), prev.movieBias...),
		globalMean: prev.globalMean,
		factors:    prev.factors,
		trainedOn:  prev.trainedOn + len(newRatings),
	}
	for u, i := range prev.userIndex {
		m.userIndex[u] = i
	}
	for mv, i := range prev.movieIndex {
		m.movieIndex[mv] = i
	}
	m.userFactors = copyFactors(prev.userFactors)
	m.movieFactors = copyFactors(prev.movieFactors)

	for _, r := range newRatings {
		if _, ok := m.userIndex[r.UserID]; !ok {
			m.userIndex[r.UserID] = len(m.userIndex)
			m.userFactors = append(m.userFactors, randomRow(rng, m.factors))
			m.userBias = append(m.userBias, 0)
		}
		if _, ok := m.movieIndex[r.MovieID]; !ok {
			m.movieIndex[r.MovieID] = len(m.movieIndex)
			m.movieIDs = append(m.movieIDs, r.MovieID)
			m.movieFactors = append(m.movieFactors, randomRow(rng, m.factors))
			m.movieBias = append(m.movieBias, 0)
		}
	}

	// A short pass over the new observations only; a full retrain happens on
	// the next scheduled rebuild.
	warmCfg := cfg
	warmCfg.LatentEpochs = cfg.LatentEpochs / 3
	if warmCfg.LatentEpochs < 1 {
		warmCfg.LatentEpochs = 1
	}
	m.fit(newRatings, warmCfg, rng)
	return m, nil
}

func (m *LatentFactorModel) fit(ratings []RatingTriple, cfg Config, rng *rand.Rand) {
	lr, reg := cfg.LatentLearningRate, cfg.LatentRegularization
	order := rng.Perm(len(ratings))

	for epoch := 0; epoch < cfg.LatentEpochs; epoch++ {
		for _, i := range order {
			r := ratings[i]
			u := m.userIndex[r.UserID]
			v := m.movieIndex[r.MovieID]
			pu, qv := m.userFactors[u], m.movieFactors[v]

			err := r.Value - (m.globalMean + m.userBias[u] + m.movieBias[v] + dot(pu, qv))

			m.userBias[u] += lr * (err - reg*m.userBias[u])
			m.movieBias[v] += lr * (err - reg*m.movieBias[v])
			for f := 0; f < m.factors; f++ {
				puf, qvf := pu[f], qv[f]
				pu[f] += lr * (err*qvf - reg*puf)
				qv[f] += lr * (err*puf - reg*qvf)
			}
		}
	}

	m.explainedVariance = m.computeExplainedVariance(ratings)
}

// computeExplainedVariance is 1 - SSE/SST over the training set, the quality
// figure logged with every rebuild.
func (m *LatentFactorModel) computeExplainedVariance(ratings []RatingTriple) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sse, sst := 0.0, 0.0
	for _, r := range ratings {
		pred, _ := m.Predict(r.UserID, r.MovieID)
		sse += (r.Value - pred) * (r.Value - pred)
		sst += (r.Value - m.globalMean) * (r.Value - m.globalMean)
	}
	if sst == 0 {
		return 0
	}
	return 1 - sse/sst
}

// Predict returns the model's estimated rating for a user/movie pair. The
// second return is false when the user is unknown to the model.
func (m *LatentFactorModel) Predict(userID string, movieID int) (float64, bool) {
	u, uok := m.userIndex[userID]
	v, vok := m.movieIndex[movieID]
	if !uok {
		return 0, false
	}
	if !vok {
		return m.globalMean + m.userBias[u], true
	}
	return m.globalMean + m.userBias[u] + m.movieBias[v] + dot(m.userFactors[u], m.movieFactors[v]), true
}

// Recommend scores every movie the model knows for the user and returns the
// top results by predicted rating, skipping movies in the exclude set.
// Returns ErrInsufficientData for users absent from the training data.
func (m *LatentFactorModel) Recommend(userID string, limit int, exclude map[int]bool) ([]Candidate, error) {
	if _, ok := m.userIndex[userID]; !ok {
		return nil, errors.InsufficientData("user %s not in latent factor model", userID)
	}

	scored := make([]scoredID, 0, len(m.movieIDs))
	for _, movieID := range m.movieIDs {
		if exclude[movieID] {
			continue
		}
		pred, _ := m.Predict(userID, movieID)
		scored = append(scored, scoredID{movieID, pred})
	}
	return topCandidates(scored, limit, models.AlgorithmLatentFactor), nil
}

// ExplainedVariance reports the training-set fit quality of the last fit.
func (m *LatentFactorModel) ExplainedVariance() float64 { return m.explainedVariance }

// TrainedOn reports how many rating observations the model was fit on.
func (m *LatentFactorModel) TrainedOn() int { return m.trainedOn }

// HasUser reports whether the user was present in the training data.
func (m *LatentFactorModel) HasUser(userID string) bool {
	_, ok := m.userIndex[userID]
	return ok
}

type scoredID struct {
	movieID int
	score   float64
}

// topCandidates sorts by score descending, movie ID ascending on ties, and
// converts to Candidates without movie rows attached (the store hydrates them).
func topCandidates(scored []scoredID, limit int, algorithm string) []Candidate {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].movieID < scored[j].movieID
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]Candidate, len(scored))
	for i, s := range scored {
		out[i] = Candidate{
			Movie:     &models.Movie{ID: s.movieID},
			Score:     s.score,
			Algorithm: algorithm,
		}
	}
	return out
}

// capMatrixSize keeps the interaction matrix under maxCells by dropping the
// least active users until users*movies fits. Ratings stay grouped per user
// so retained users keep their full history.
func capMatrixSize(ratings []RatingTriple, maxCells int) []RatingTriple {
	if maxCells <= 0 {
		return ratings
	}

	byUser := make(map[string][]RatingTriple)
	movies := make(map[int]bool)
	for _, r := range ratings {
		byUser[r.UserID] = append(byUser[r.UserID], r)
		movies[r.MovieID] = true
	}
	if len(byUser)*len(movies) <= maxCells {
		return ratings
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if len(byUser[users[i]]) != len(byUser[users[j]]) {
			return len(byUser[users[i]]) > len(byUser[users[j]])
		}
		return users[i] < users[j]
	})

	budget := maxCells / len(movies)
	if budget < 1 {
		budget = 1
	}
	if budget > len(users) {
		budget = len(users)
	}

	kept := make([]RatingTriple, 0, len(ratings))
	for _, u := range users[:budget] {
		kept = append(kept, byUser[u]...)
	}
	return kept
}

func randomFactors(rng *rand.Rand, n, k int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = randomRow(rng, k)
	}
	return out
}

func randomRow(rng *rand.Rand, k int) []float64 {
	row := make([]float64, k)
	scale := 1.0 / math.Sqrt(float64(k))
	for f := range row {
		row[f] = rng.NormFloat64() * scale
	}
	return row
}

func copyFactors(src [][]float64) [][]float64 {
	out := make([][]float64, len(src))
	for i, row := range src {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

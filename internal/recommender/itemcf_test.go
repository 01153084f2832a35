package recommender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinematch/backend/internal/errors"
)

func TestTrainItemCFInsufficientData(t *testing.T) {
	cfg := DefaultConfig()

	_, err := TrainItemCF([]RatingTriple{{UserID: "u", MovieID: 1, Value: 4}}, cfg)
	assert.True(t, errors.IsInsufficientData(err))
}

func TestTrainItemCFSimilaritySigns(t *testing.T) {
	cfg := DefaultConfig()

	m, err := TrainItemCF(blockRatings(), cfg)
	require.NoError(t, err)

	// Movies in the same cluster are co-liked, across clusters co-disliked.
	within := m.SimilarMovies(1, 10)
	require.NotEmpty(t, within)
	for _, c := range within {
		assert.Contains(t, []int{2, 3}, c.Movie.ID)
		assert.Greater(t, c.Score, 0.0)
	}

	assert.Equal(t, 36, m.TrainedOn())
	// 3 positive pairs per cluster plus 9 negative cross-cluster pairs.
	assert.Equal(t, 15, m.PairCount())
}

func TestTrainItemCFCoRatingGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRatingsForModel = 1
	cfg.MinCoRatings = 2

	// Every pair here shares exactly one rater, below the gate.
	ratings := []RatingTriple{
		{UserID: "u1", MovieID: 1, Value: 5},
		{UserID: "u1", MovieID: 2, Value: 5},
		{UserID: "u2", MovieID: 2, Value: 5},
		{UserID: "u2", MovieID: 3, Value: 5},
	}
	m, err := TrainItemCF(ratings, cfg)
	require.NoError(t, err)

	assert.Empty(t, m.SimilarMovies(1, 10))
	assert.Zero(t, m.PairCount())
}

func TestItemCFRecommendHighRatingPullsSimilar(t *testing.T) {
	m, err := TrainItemCF(blockRatings(), DefaultConfig())
	require.NoError(t, err)

	out, err := m.Recommend([]RatingTriple{{UserID: "x", MovieID: 1, Value: 5}}, 10, nil)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.ElementsMatch(t, []int{2, 3}, mergedIDs(out))
}

func TestItemCFRecommendLowRatingPushesAway(t *testing.T) {
	m, err := TrainItemCF(blockRatings(), DefaultConfig())
	require.NoError(t, err)

	// A half-star-scale low rating sits below the 2.75 midpoint, so movies
	// similar to the hated one score negative and the dissimilar cluster
	// scores positive.
	out, err := m.Recommend([]RatingTriple{{UserID: "x", MovieID: 1, Value: 1}}, 10, nil)
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.ElementsMatch(t, []int{4, 5, 6}, mergedIDs(out))
}

func TestItemCFRecommendExcludes(t *testing.T) {
	m, err := TrainItemCF(blockRatings(), DefaultConfig())
	require.NoError(t, err)

	out, err := m.Recommend([]RatingTriple{{UserID: "x", MovieID: 1, Value: 5}}, 10, map[int]bool{2: true})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, mergedIDs(out))
}

func TestItemCFRecommendNoAnchor(t *testing.T) {
	m, err := TrainItemCF(blockRatings(), DefaultConfig())
	require.NoError(t, err)

	_, err = m.Recommend([]RatingTriple{{UserID: "x", MovieID: 999, Value: 5}}, 10, nil)
	assert.True(t, errors.IsInsufficientData(err))
}

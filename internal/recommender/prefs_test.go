package recommender

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregatePreferencesCombinesSignals(t *testing.T) {
	cfg := DefaultConfig()

	sig := PreferenceSignals{
		StatedLikes:  map[string]float64{"Action": 1.0},
		ThumbsUp:     map[string]int{"Action": 2, "Comedy": 1},
		RatingCounts: map[string]int{"Action": 4, "Drama": 9},
	}

	profile := AggregatePreferences(sig, cfg)

	// Action: stated 5.0 + 2 thumbs * 3.0 + sqrt(4)*0.5
	assert.InDelta(t, 5.0+6.0+1.0, profile.Scores["Action"], 1e-9)
	// Comedy: one thumbs up only
	assert.InDelta(t, 3.0, profile.Scores["Comedy"], 1e-9)
	// Drama: sqrt(9)*0.5 from ratings only
	assert.InDelta(t, 1.5, profile.Scores["Drama"], 1e-9)
}

func TestAggregatePreferencesCapsRatingVolume(t *testing.T) {
	cfg := DefaultConfig()

	// 400 rated horror movies: sqrt(400)*0.5 = 10, capped at 5.0 so volume
	// alone can never outrank a stated like.
	sig := PreferenceSignals{
		RatingCounts: map[string]int{"Horror": 400},
		StatedLikes:  map[string]float64{"Romance": 1.0},
	}

	profile := AggregatePreferences(sig, cfg)

	assert.InDelta(t, cfg.RatingCountCap, profile.Scores["Horror"], 1e-9)
	assert.GreaterOrEqual(t, profile.Scores["Romance"], profile.Scores["Horror"])
}

func TestAggregatePreferencesExcludesDislikedOutright(t *testing.T) {
	cfg := DefaultConfig()

	sig := PreferenceSignals{
		StatedLikes:    map[string]float64{"Action": 1.0},
		StatedDislikes: map[string]bool{"Horror": true},
		ThumbsDown:     map[string]bool{"War": true},
		// Heavy positive signal in a disliked genre must not resurrect it.
		ThumbsUp:     map[string]int{"Horror": 10},
		RatingCounts: map[string]int{"War": 50},
	}

	profile := AggregatePreferences(sig, cfg)

	assert.True(t, profile.Disliked["Horror"])
	assert.True(t, profile.Disliked["War"])
	_, hasHorror := profile.Scores["Horror"]
	_, hasWar := profile.Scores["War"]
	assert.False(t, hasHorror, "disliked genre must carry no score")
	assert.False(t, hasWar, "thumbs-down genre must carry no score")
}

func TestPreferredThreshold(t *testing.T) {
	cfg := DefaultConfig()

	// A single rating in a genre gives sqrt(1)*0.5 = 0.5 > 0.2, so one
	// rating is already enough to mark the genre preferred.
	sig := PreferenceSignals{RatingCounts: map[string]int{"Thriller": 1}}
	profile := AggregatePreferences(sig, cfg)

	preferred := profile.Preferred(cfg)
	assert.Contains(t, preferred, "Thriller")
	assert.InDelta(t, math.Sqrt(1)*cfg.RatingCountWeight, preferred["Thriller"], 1e-9)
}

func TestTopGenresOrderAndTies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopGenreCount = 3

	profile := GenreProfile{Scores: map[string]float64{
		"Drama":    4.0,
		"Comedy":   2.0,
		"Action":   2.0, // ties with Comedy, alphabetical first
		"Romance":  1.0,
		"Westerns": 0.1, // below threshold, never listed
	}}

	assert.Equal(t, []string{"Drama", "Action", "Comedy"}, profile.TopGenres(cfg))
}

func TestTopGenresShorterThanCount(t *testing.T) {
	cfg := DefaultConfig()
	profile := GenreProfile{Scores: map[string]float64{"Drama": 4.0}}
	assert.Equal(t, []string{"Drama"}, profile.TopGenres(cfg))
}

func TestEmptyProfile(t *testing.T) {
	cfg := DefaultConfig()

	profile := AggregatePreferences(PreferenceSignals{}, cfg)
	assert.True(t, profile.Empty())

	// Dislikes alone still count as an empty positive profile.
	profile = AggregatePreferences(PreferenceSignals{
		StatedDislikes: map[string]bool{"Horror": true},
	}, cfg)
	assert.True(t, profile.Empty())
	assert.True(t, profile.Disliked["Horror"])
}

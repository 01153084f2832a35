package analytics

import (
	"time"

	"gorm.io/gorm"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/metrics"
	"github.com/cinematch/backend/internal/models"
	"github.com/cinematch/backend/internal/recommender"
)

// Tracker records recommendation impressions and the interactions that
// follow them. Impressions are written asynchronously so the serving path
// never waits on analytics; interaction updates are forward-only and
// idempotent, so replayed client events cannot corrupt the record.
type Tracker struct {
	db *gorm.DB
}

// NewTracker returns a Tracker writing to the given connection.
func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// TrackImpressions records one impression row per served candidate, batch
// inserted off the request path. A dropped batch costs analytics data, never
// a recommendation.
func (t *Tracker) TrackImpressions(userID string, candidates []recommender.Candidate) {
	if len(candidates) == 0 {
		return
	}

	events := make([]models.RecommendationEvent, 0, len(candidates))
	perAlgorithm := make(map[string]int)
	for i, c := range candidates {
		if c.Movie == nil {
			continue
		}
		events = append(events, models.RecommendationEvent{
			UserID:    userID,
			MovieID:   c.Movie.ID,
			Algorithm: c.Algorithm,
			Position:  i,
			Score:     c.Score,
		})
		perAlgorithm[c.Algorithm]++
	}

	// Async batch insert - don't block the request
	go func() {
		if err := t.db.CreateInBatches(&events, 100).Error; err != nil {
			logger.WarnWithFields("failed to track impressions", err)
			return
		}
		for algorithm, n := range perAlgorithm {
			metrics.RecordImpressions(algorithm, n)
		}
	}()
}

// MarkClicked flags the most recent impression of the movie for this user as
// clicked. Already-clicked impressions are left untouched, so repeated clicks
// keep the first click time.
func (t *Tracker) MarkClicked(userID string, movieID int) error {
	return t.markInteraction(userID, movieID, map[string]interface{}{
		"clicked":    true,
		"clicked_at": time.Now(),
	}, "clicked = ?", false)
}

// MarkRated flags the most recent impression as rated with the given value.
func (t *Tracker) MarkRated(userID string, movieID int, value float64) error {
	return t.markInteraction(userID, movieID, map[string]interface{}{
		"rated":        true,
		"rated_at":     time.Now(),
		"rating_value": value,
	}, "rated = ?", false)
}

// MarkFavorited flags the most recent impression as favorited.
func (t *Tracker) MarkFavorited(userID string, movieID int) error {
	return t.markInteraction(userID, movieID, map[string]interface{}{
		"favorited":    true,
		"favorited_at": time.Now(),
	}, "favorited = ?", false)
}

// MarkWatchlisted flags the most recent impression as watchlisted.
func (t *Tracker) MarkWatchlisted(userID string, movieID int) error {
	return t.markInteraction(userID, movieID, map[string]interface{}{
		"watchlisted":    true,
		"watchlisted_at": time.Now(),
	}, "watchlisted = ?", false)
}

// markInteraction updates the newest un-flagged impression of (user, movie).
// No matching impression is not an error: the interaction simply did not
// originate from a recommendation.
func (t *Tracker) markInteraction(userID string, movieID int, updates map[string]interface{}, guard string, guardVal bool) error {
	var event models.RecommendationEvent
	err := t.db.
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Where(guard, guardVal).
		Order("created_at DESC").
		First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	return t.db.Model(&event).Updates(updates).Error
}

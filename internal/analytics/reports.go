package analytics

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/cinematch/backend/internal/models"
)

// AlgorithmPerformance aggregates outcomes for one recommendation algorithm
// over a time window.
type AlgorithmPerformance struct {
	Algorithm    string  `json:"algorithm"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	CTR          float64 `json:"ctr"` // clicks/impressions * 100
	Ratings      int64   `json:"ratings"`
	AvgRating    float64 `json:"avg_rating"`
	Favorites    int64   `json:"favorites"`
	Watchlists   int64   `json:"watchlists"`
	EngagementPC float64 `json:"engagement_pct"` // any interaction / impressions * 100
}

var trackedAlgorithms = []string{
	models.AlgorithmLatentFactor,
	models.AlgorithmItemCF,
	models.AlgorithmEmbedding,
	models.AlgorithmGenrePref,
	models.AlgorithmDemographic,
	models.AlgorithmPopularity,
}

// CalculatePerformance computes per-algorithm performance since the given
// time. Algorithms with zero impressions still appear, with zeroed rates.
func (t *Tracker) CalculatePerformance(since time.Time) ([]AlgorithmPerformance, error) {
	out := make([]AlgorithmPerformance, 0, len(trackedAlgorithms))

	for _, algorithm := range trackedAlgorithms {
		base := t.db.Model(&models.RecommendationEvent{}).
			Where("algorithm = ? AND created_at >= ?", algorithm, since)

		p := AlgorithmPerformance{Algorithm: algorithm}
		if err := base.Session(&gorm.Session{}).Count(&p.Impressions).Error; err != nil {
			return nil, fmt.Errorf("count impressions for %s: %w", algorithm, err)
		}
		if err := base.Session(&gorm.Session{}).Where("clicked = ?", true).Count(&p.Clicks).Error; err != nil {
			return nil, fmt.Errorf("count clicks for %s: %w", algorithm, err)
		}
		if err := base.Session(&gorm.Session{}).Where("rated = ?", true).Count(&p.Ratings).Error; err != nil {
			return nil, fmt.Errorf("count ratings for %s: %w", algorithm, err)
		}
		if err := base.Session(&gorm.Session{}).Where("favorited = ?", true).Count(&p.Favorites).Error; err != nil {
			return nil, fmt.Errorf("count favorites for %s: %w", algorithm, err)
		}
		if err := base.Session(&gorm.Session{}).Where("watchlisted = ?", true).Count(&p.Watchlists).Error; err != nil {
			return nil, fmt.Errorf("count watchlists for %s: %w", algorithm, err)
		}

		if p.Ratings > 0 {
			var avg *float64
			err := base.Session(&gorm.Session{}).Where("rated = ?", true).
				Select("AVG(rating_value)").Scan(&avg).Error
			if err != nil {
				return nil, fmt.Errorf("avg rating for %s: %w", algorithm, err)
			}
			if avg != nil {
				p.AvgRating = *avg
			}
		}

		if p.Impressions > 0 {
			p.CTR = float64(p.Clicks) / float64(p.Impressions) * 100

			var engaged int64
			err := base.Session(&gorm.Session{}).
				Where("clicked OR rated OR favorited OR watchlisted").
				Count(&engaged).Error
			if err != nil {
				return nil, fmt.Errorf("count engaged for %s: %w", algorithm, err)
			}
			p.EngagementPC = float64(engaged) / float64(p.Impressions) * 100
		}

		out = append(out, p)
	}
	return out, nil
}

// TopPerforming returns the algorithm with the highest CTR over the window,
// requiring a minimum impression volume so a two-impression fluke cannot win.
func (t *Tracker) TopPerforming(since time.Time, minImpressions int64) (*AlgorithmPerformance, error) {
	perf, err := t.CalculatePerformance(since)
	if err != nil {
		return nil, err
	}

	var best *AlgorithmPerformance
	for i := range perf {
		p := &perf[i]
		if p.Impressions < minImpressions {
			continue
		}
		if best == nil || p.CTR > best.CTR {
			best = p
		}
	}
	return best, nil
}

// MoviePerformance aggregates recommendation outcomes for one catalog title.
type MoviePerformance struct {
	MovieID          int     `json:"movie_id"`
	Title            string  `json:"title"`
	TimesRecommended int64   `json:"times_recommended"`
	Clicks           int64   `json:"clicks"`
	CTR              float64 `json:"ctr"` // clicks/times_recommended * 100
	Ratings          int64   `json:"ratings"`
	AvgRating        float64 `json:"avg_rating"`
}

// TopPerformingMovies ranks recommended titles by click volume over the
// window: how often each movie was served, how often it was clicked, and how
// users who rated it afterward scored it.
func (t *Tracker) TopPerformingMovies(since time.Time, limit int) ([]MoviePerformance, error) {
	type row struct {
		MovieID          int
		Title            string
		TimesRecommended int64
		Clicks           int64
		Ratings          int64
		AvgRating        *float64
	}
	var rows []row
	err := t.db.Model(&models.RecommendationEvent{}).
		Select("recommendation_events.movie_id, movies.title, " +
			"COUNT(*) AS times_recommended, " +
			"SUM(CASE WHEN clicked THEN 1 ELSE 0 END) AS clicks, " +
			"SUM(CASE WHEN rated THEN 1 ELSE 0 END) AS ratings, " +
			"AVG(rating_value) AS avg_rating").
		Joins("JOIN movies ON movies.id = recommendation_events.movie_id").
		Where("recommendation_events.created_at >= ?", since).
		Group("recommendation_events.movie_id, movies.title").
		Order("clicks DESC, times_recommended DESC, recommendation_events.movie_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rank recommended movies: %w", err)
	}

	out := make([]MoviePerformance, len(rows))
	for i, r := range rows {
		p := MoviePerformance{
			MovieID:          r.MovieID,
			Title:            r.Title,
			TimesRecommended: r.TimesRecommended,
			Clicks:           r.Clicks,
			Ratings:          r.Ratings,
		}
		if r.AvgRating != nil {
			p.AvgRating = *r.AvgRating
		}
		if r.TimesRecommended > 0 {
			p.CTR = float64(r.Clicks) / float64(r.TimesRecommended) * 100
		}
		out[i] = p
	}
	return out, nil
}

// Stats is the overall analytics snapshot for the admin surface.
type Stats struct {
	TotalImpressions int64                  `json:"total_impressions"`
	TotalClicks      int64                  `json:"total_clicks"`
	OverallCTR       float64                `json:"overall_ctr"`
	Algorithms       []AlgorithmPerformance `json:"algorithms"`
	Since            time.Time              `json:"since"`
}

// OverallStats assembles the combined snapshot since the given time.
func (t *Tracker) OverallStats(since time.Time) (*Stats, error) {
	perf, err := t.CalculatePerformance(since)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Algorithms: perf, Since: since}
	for _, p := range perf {
		stats.TotalImpressions += p.Impressions
		stats.TotalClicks += p.Clicks
	}
	if stats.TotalImpressions > 0 {
		stats.OverallCTR = float64(stats.TotalClicks) / float64(stats.TotalImpressions) * 100
	}
	return stats, nil
}

// ActiveUser is one row of the most-active-users report.
type ActiveUser struct {
	UserID       string `json:"user_id"`
	Interactions int64  `json:"interactions"`
}

// MostActiveUsers ranks users by recommendation interactions (clicks plus
// ratings plus saves) over the window.
func (t *Tracker) MostActiveUsers(since time.Time, limit int) ([]ActiveUser, error) {
	var rows []ActiveUser
	err := t.db.Model(&models.RecommendationEvent{}).
		Select("user_id, COUNT(*) as interactions").
		Where("created_at >= ?", since).
		Where("clicked OR rated OR favorited OR watchlisted").
		Group("user_id").
		Order("interactions DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rank active users: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Interactions > rows[j].Interactions })
	return rows, nil
}

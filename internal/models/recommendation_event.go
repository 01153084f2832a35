package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Algorithm tags recorded on every impression, used for A/B analytics
const (
	AlgorithmLatentFactor = "latent_factor"
	AlgorithmItemCF       = "item_cf"
	AlgorithmEmbedding    = "embedding"
	AlgorithmGenrePref    = "genre_preference"
	AlgorithmDemographic  = "demographic"
	AlgorithmPopularity   = "popularity"
)

// RecommendationEvent is one impression: a movie shown to a user at a
// position by an algorithm. The row is append-only; interaction fields are
// forward-only - once a click/rating/favorite/watchlist flag is set it is
// never cleared and its timestamp is never rewritten.
type RecommendationEvent struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string `gorm:"not null;index" json:"user_id"`
	MovieID int    `gorm:"not null;index" json:"movie_id"`

	// Recommendation context
	Algorithm string  `gorm:"type:varchar(32);not null;index" json:"algorithm"`
	Position  int     `gorm:"not null" json:"position"` // 0-based position in the served list
	Score     float64 `json:"score"`

	// Interaction tracking (forward-only)
	Clicked   bool       `gorm:"default:false;index" json:"clicked"`
	ClickedAt *time.Time `json:"clicked_at,omitempty"`

	Rated       bool       `gorm:"default:false" json:"rated"`
	RatedAt     *time.Time `json:"rated_at,omitempty"`
	RatingValue *float64   `json:"rating_value,omitempty"`

	Favorited   bool       `gorm:"default:false" json:"favorited"`
	FavoritedAt *time.Time `json:"favorited_at,omitempty"`

	Watchlisted   bool       `gorm:"default:false" json:"watchlisted"`
	WatchlistedAt *time.Time `json:"watchlisted_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *RecommendationEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

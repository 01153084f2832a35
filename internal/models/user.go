package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents one account of the catalog-browsing application.
//
// GenrePreferences is the stated onboarding signal: genre -> signed weight,
// positive means liked, negative means disliked. The derived genre profile
// (stated + thumbs + rating history) is recomputed per request by the
// preference aggregator and never persisted.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`

	// Optional demographics for the cold-start cohort strategy
	AgeBracket *int    `json:"age_bracket,omitempty"` // lower bound of 10-year bracket, e.g. 20, 30
	Location   *string `gorm:"type:text" json:"location,omitempty"`

	// Stated genre taste collected at onboarding, genre -> signed weight
	GenrePreferences map[string]float64 `gorm:"type:jsonb;serializer:json" json:"genre_preferences,omitempty"`

	OnboardingCompleted bool `gorm:"default:false" json:"onboarding_completed"`

	// Denormalized interaction counters, maintained by the write paths and
	// used for the cold-start check without counting rows per request
	RatingCount    int `gorm:"default:0" json:"rating_count"`
	FavoriteCount  int `gorm:"default:0" json:"favorite_count"`
	WatchlistCount int `gorm:"default:0" json:"watchlist_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID primary key when none was provided. Generating
// client-side keeps sqlite development databases working without server-side
// uuid functions.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// InteractionCount is the total signal the collaborative models can draw on
func (u *User) InteractionCount() int {
	return u.RatingCount + u.FavoriteCount + u.WatchlistCount
}

// HasDemographics reports whether the cohort strategy has anything to work with
func (u *User) HasDemographics() bool {
	return u.AgeBracket != nil || (u.Location != nil && *u.Location != "")
}

// StatedLikes returns the genres with positive stated weight
func (u *User) StatedLikes() map[string]float64 {
	likes := make(map[string]float64)
	for g, w := range u.GenrePreferences {
		if w > 0 {
			likes[g] = w
		}
	}
	return likes
}

// StatedDislikes returns the genres with negative stated weight
func (u *User) StatedDislikes() map[string]bool {
	disliked := make(map[string]bool)
	for g, w := range u.GenrePreferences {
		if w < 0 {
			disliked[g] = true
		}
	}
	return disliked
}

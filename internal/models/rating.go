package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rating value bounds, matching the half-star UI scale
const (
	MinRatingValue = 0.5
	MaxRatingValue = 5.0
)

// Rating is one explicit star rating, unique per (user, movie) and upsertable.
// Every write bumps the scheduler's new-rating counter.
type Rating struct {
	ID      string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string  `gorm:"not null;uniqueIndex:idx_ratings_user_movie;index" json:"user_id"`
	MovieID int     `gorm:"not null;uniqueIndex:idx_ratings_user_movie;index" json:"movie_id"`
	Value   float64 `gorm:"not null" json:"value"`

	Timestamp time.Time `gorm:"index" json:"timestamp"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Rating) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ValidRatingValue reports whether v is inside the allowed rating scale
func ValidRatingValue(v float64) bool {
	return v >= MinRatingValue && v <= MaxRatingValue
}

// Favorite marks a movie the user explicitly saved. Favorites act as an
// implicit 4.5-star signal in the collaborative models.
type Favorite struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string `gorm:"not null;uniqueIndex:idx_favorites_user_movie;index" json:"user_id"`
	MovieID int    `gorm:"not null;uniqueIndex:idx_favorites_user_movie;index" json:"movie_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (f *Favorite) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// WatchlistItem marks intent to watch. Acts as an implicit 3.5-star signal.
type WatchlistItem struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string `gorm:"not null;uniqueIndex:idx_watchlist_user_movie;index" json:"user_id"`
	MovieID int    `gorm:"not null;uniqueIndex:idx_watchlist_user_movie;index" json:"movie_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (w *WatchlistItem) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// Thumbs directions
const (
	ThumbsUp   = "up"
	ThumbsDown = "down"
)

// ThumbsSignal is a lightweight like/dislike toggle, unique per (user, movie).
// Setting one direction clears the opposite. Down-votes feed the disliked-genre
// inference and exclude the movie itself from all strategies.
type ThumbsSignal struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string `gorm:"not null;uniqueIndex:idx_thumbs_user_movie;index" json:"user_id"`
	MovieID   int    `gorm:"not null;uniqueIndex:idx_thumbs_user_movie;index" json:"movie_id"`
	Direction string `gorm:"type:varchar(8);not null" json:"direction"` // "up" or "down"

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *ThumbsSignal) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

package models

import (
	"database/sql/driver"
	"strings"
	"time"
)

// StringArray is a custom type for PostgreSQL text[] that implements Scanner and Valuer
type StringArray []string

// Scan implements the sql.Scanner interface for reading from database
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	// PostgreSQL returns text[] as a string like "{value1,value2,value3}"
	str, ok := value.(string)
	if !ok {
		// Try []byte
		if bytes, ok := value.([]byte); ok {
			str = string(bytes)
		} else {
			*a = nil
			return nil
		}
	}

	// Remove the curly braces
	str = strings.TrimPrefix(str, "{")
	str = strings.TrimSuffix(str, "}")

	if str == "" {
		*a = []string{}
		return nil
	}

	// Split by comma (simple case - doesn't handle quoted values with commas)
	*a = strings.Split(str, ",")
	return nil
}

// Value implements the driver.Valuer interface for writing to database
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	if len(a) == 0 {
		return "{}", nil
	}
	return "{" + strings.Join(a, ",") + "}", nil
}

// Contains reports whether the array holds the given value
func (a StringArray) Contains(s string) bool {
	for _, v := range a {
		if v == s {
			return true
		}
	}
	return false
}

// Movie is one catalog title. IDs come from the external ingestion pipeline
// (TMDB-style integer ids), which also backfills the content embedding
// asynchronously - a nil Embedding means "not yet embedded" and excludes the
// movie from embedding-based strategies, never errors.
type Movie struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"type:varchar(500);not null" json:"title"`
	Overview string `gorm:"type:text" json:"overview"`

	Genres StringArray `gorm:"type:text[]" json:"genres"`

	// Metadata-derived content vector, fixed dimension across the catalog
	Embedding []float64 `gorm:"type:jsonb;serializer:json" json:"embedding,omitempty"`

	// Aggregate catalog signals
	VoteAverage float64 `gorm:"default:0" json:"vote_average"`
	VoteCount   int     `gorm:"default:0;index" json:"vote_count"`
	Popularity  float64 `gorm:"default:0;index" json:"popularity"`

	ReleaseDate *time.Time `json:"release_date,omitempty"`
	PosterURL   string     `gorm:"type:varchar(500)" json:"poster_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmbedding reports whether the movie can participate in embedding-based
// similarity queries
func (m *Movie) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// HasAnyGenre reports whether the movie carries at least one genre from the set
func (m *Movie) HasAnyGenre(genres map[string]bool) bool {
	for _, g := range m.Genres {
		if genres[g] {
			return true
		}
	}
	return false
}

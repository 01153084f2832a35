package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model types and update modes recorded in the update log
const (
	ModelTypeLatentFactor = "latent_factor"
	ModelTypeItemCF       = "item_cf"

	UpdateTypeFullRetrain = "full_retrain"
	UpdateTypeWarmStart   = "warm_start"

	TriggerThreshold = "rating_threshold"
	TriggerManual    = "manual"
	TriggerStartup   = "startup"
)

// ModelUpdateLog is the append-only audit trail for model rebuilds. One row
// per attempt, success or not; on failure the previous model stays live.
type ModelUpdateLog struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	ModelType  string `gorm:"type:varchar(32);not null;index" json:"model_type"`
	UpdateType string `gorm:"type:varchar(32);not null" json:"update_type"`
	Trigger    string `gorm:"type:varchar(32);not null" json:"trigger"`

	RatingsProcessed int `json:"ratings_processed"`

	// Health metrics from the build, e.g. explained_variance_ratio, factors
	Metrics map[string]float64 `gorm:"type:jsonb;serializer:json" json:"metrics,omitempty"`

	DurationSeconds float64 `json:"duration_seconds"`
	Success         bool    `gorm:"index" json:"success"`
	Error           string  `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (l *ModelUpdateLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

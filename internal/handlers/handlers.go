package handlers

import (
	"github.com/cinematch/backend/internal/analytics"
	"github.com/cinematch/backend/internal/recommender"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	svc     *recommender.Service
	tracker *analytics.Tracker
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *recommender.Service, tracker *analytics.Tracker) *Handlers {
	return &Handlers{svc: svc, tracker: tracker}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/models"
	"github.com/cinematch/backend/internal/recommender"
	"github.com/cinematch/backend/internal/util"
)

// GetPreferences returns the user's stated preferences plus the derived
// genre profile the recommender is currently working from.
// GET /api/v1/users/:id/preferences
func (h *Handlers) GetPreferences(c *gin.Context) {
	userID := c.Param("id")

	user, err := h.svc.Store().GetUser(userID)
	if err != nil {
		util.RespondNotFound(c, "user")
		return
	}

	signals, err := h.svc.Store().PreferenceSignalsFor(user)
	if err != nil {
		logger.ErrorWithFields("preference signal load failed", err)
		util.RespondInternalError(c, "failed to load preferences")
		return
	}
	cfg := h.svc.Config()
	profile := recommender.AggregatePreferences(signals, cfg)

	c.JSON(http.StatusOK, gin.H{
		"stated":            user.GenrePreferences,
		"derived_scores":    profile.Scores,
		"excluded_genres":   keys(profile.Disliked),
		"top_genres":        profile.TopGenres(cfg),
		"onboarding_done":   user.OnboardingCompleted,
		"age_bracket":       user.AgeBracket,
		"location":          user.Location,
		"interaction_count": user.InteractionCount(),
	})
}

type preferencesRequest struct {
	GenrePreferences map[string]float64 `json:"genre_preferences"`
	AgeBracket       *int               `json:"age_bracket"`
	Location         *string            `json:"location"`
	CompleteOnboard  *bool              `json:"onboarding_completed"`
}

// UpdatePreferences replaces the user's stated genre weights and optional
// demographics. Positive weights are likes, negative are dislikes; disliked
// genres are excluded from every recommendation strategy.
// PUT /api/v1/users/:id/preferences
func (h *Handlers) UpdatePreferences(c *gin.Context) {
	userID := c.Param("id")

	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid preferences payload")
		return
	}

	db := h.svc.Store().DB()
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		util.RespondNotFound(c, "user")
		return
	}

	changed := false
	if req.GenrePreferences != nil {
		user.GenrePreferences = req.GenrePreferences
		changed = true
	}
	if req.AgeBracket != nil {
		user.AgeBracket = req.AgeBracket
		changed = true
	}
	if req.Location != nil {
		user.Location = req.Location
		changed = true
	}
	if req.CompleteOnboard != nil {
		user.OnboardingCompleted = *req.CompleteOnboard
		changed = true
	}
	if !changed {
		util.RespondBadRequest(c, "no fields to update")
		return
	}

	if err := db.Save(&user).Error; err != nil {
		logger.ErrorWithFields("preferences update failed", err)
		util.RespondInternalError(c, "failed to update preferences")
		return
	}

	c.JSON(http.StatusOK, user)
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

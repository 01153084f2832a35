package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinematch/backend/internal/models"
)

func (s *HandlersTestSuite) adminRouter() {
	admin := s.router.Group("/api/v1/admin")
	admin.POST("/models/update", s.handlers.ForceModelUpdate)
	admin.GET("/models/status", s.handlers.GetModelStatus)
}

func (s *HandlersTestSuite) TestForceModelUpdateValidation() {
	s.adminRouter()

	w := s.request(http.MethodPost, "/api/v1/admin/models/update", gin.H{"update_type": "sideways"})
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)

	w = s.request(http.MethodPost, "/api/v1/admin/models/update", gin.H{})
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestForceModelUpdateWithoutData() {
	s.adminRouter()

	// An empty database cannot train anything; the conflict is reported, not
	// swallowed.
	w := s.request(http.MethodPost, "/api/v1/admin/models/update", gin.H{"update_type": "full_retrain"})
	assert.Equal(s.T(), http.StatusConflict, w.Code)
}

func (s *HandlersTestSuite) TestGetModelStatusPublished() {
	s.adminRouter()

	for m := 1; m <= 6; m++ {
		s.seedMovie(m, "Action")
	}
	for u := 0; u < 4; u++ {
		id := fmt.Sprintf("u%d", u)
		s.seedUser(id)
		for m := 1; m <= 6; m++ {
			require.NoError(s.T(), s.db.Create(&models.Rating{
				UserID:    id,
				MovieID:   m,
				Value:     3.0 + float64((u+m)%4)*0.5,
				CreatedAt: time.Now().Add(-time.Hour),
			}).Error)
		}
	}

	w := s.request(http.MethodPost, "/api/v1/admin/models/update", gin.H{"update_type": "full_retrain"})
	require.Equal(s.T(), http.StatusOK, w.Code)

	w = s.request(http.MethodGet, "/api/v1/admin/models/status", nil)
	require.Equal(s.T(), http.StatusOK, w.Code)

	var status struct {
		ModelPublished    bool  `json:"model_published"`
		RatingsSinceBuild int64 `json:"ratings_since_build"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(s.T(), status.ModelPublished)
	assert.Zero(s.T(), status.RatingsSinceBuild)

	// A rating landing after the build shows up in the drift counter.
	s.seedMovie(7, "Action")
	require.NoError(s.T(), s.db.Create(&models.Rating{
		UserID:  "u0",
		MovieID: 7,
		Value:   5.0,
	}).Error)

	w = s.request(http.MethodGet, "/api/v1/admin/models/status", nil)
	require.Equal(s.T(), http.StatusOK, w.Code)
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &status))
	assert.EqualValues(s.T(), 1, status.RatingsSinceBuild)
}

func (s *HandlersTestSuite) TestGetModelStatusUnpublished() {
	s.adminRouter()

	w := s.request(http.MethodGet, "/api/v1/admin/models/status", nil)
	require.Equal(s.T(), http.StatusOK, w.Code)

	var status struct {
		ModelPublished bool  `json:"model_published"`
		PendingRatings int64 `json:"pending_ratings"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(s.T(), status.ModelPublished)
	assert.Zero(s.T(), status.PendingRatings)
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/models"
	"github.com/cinematch/backend/internal/util"
)

type createUserRequest struct {
	Email            string             `json:"email" binding:"required,email"`
	Username         string             `json:"username" binding:"required"`
	AgeBracket       *int               `json:"age_bracket"`
	Location         *string            `json:"location"`
	GenrePreferences map[string]float64 `json:"genre_preferences"`
}

// CreateUser registers a new account, optionally with the onboarding genre
// survey already filled in.
// POST /api/v1/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid user payload")
		return
	}

	user := models.User{
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		Username:         strings.TrimSpace(req.Username),
		AgeBracket:       req.AgeBracket,
		Location:         req.Location,
		GenrePreferences: req.GenrePreferences,
	}
	if user.Username == "" {
		util.RespondValidationError(c, "username", "must not be blank")
		return
	}

	if err := h.svc.Store().DB().Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			util.RespondConflict(c, "user")
			return
		}
		logger.ErrorWithFields("user create failed", err)
		util.RespondInternalError(c, "failed to create user")
		return
	}

	c.JSON(http.StatusCreated, user)
}

// GetUser returns one user profile.
// GET /api/v1/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	user, err := h.svc.Store().GetUser(c.Param("id"))
	if err != nil {
		util.RespondNotFound(c, "user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// isDuplicateKey detects unique-constraint violations on both drivers.
func isDuplicateKey(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

package handlers

import (
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/cinematch/backend/internal/errors"
)

// isNotFound unwraps both gorm's record-not-found and our API not-found.
func isNotFound(err error) bool {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code == errors.ErrNotFound
	}
	return false
}

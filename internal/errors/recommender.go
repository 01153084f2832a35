package errors

import (
	"errors"
	"fmt"
)

// Recommendation pipeline error taxonomy. These are control-flow signals for
// the fallback chain, not user-facing failures: each strategy is caught at
// its boundary and the next strategy in priority order is attempted.
var (
	// ErrInsufficientData - a model cannot be built or queried because the
	// rating matrix is below its data threshold. Triggers fallback.
	ErrInsufficientData = errors.New("insufficient interaction data")

	// ErrModelBuild - a model rebuild failed. The previous model is retained.
	ErrModelBuild = errors.New("model build failed")

	// ErrNoEmbedding - the reference movie or user profile has no usable
	// content vector. Excludes the embedding strategy, nothing else.
	ErrNoEmbedding = errors.New("no embedding available")
)

// InsufficientData wraps ErrInsufficientData with context about what was missing
func InsufficientData(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, fmt.Sprintf(format, args...))
}

// ModelBuild wraps ErrModelBuild with the underlying failure
func ModelBuild(err error) error {
	return fmt.Errorf("%w: %v", ErrModelBuild, err)
}

// IsInsufficientData reports whether err is a data-threshold failure
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

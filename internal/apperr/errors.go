// Package apperr holds the sentinel errors shared across layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrInvalidNote      = errors.New("invalid note")
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotesGone means every note a citation points at has been deleted.
	ErrNotesGone = fmt.Errorf("%w: cited notes deleted", ErrNotFound)
)

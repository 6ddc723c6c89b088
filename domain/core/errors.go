package core

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	ErrArtifactNotFound = fmt.Errorf("%w: artifact", ErrNotFound)

	ErrInvalidSequence = errors.New("invalid protein sequence")
	ErrEmptyTable      = errors.New("observation table has no sample columns")
	ErrFitFailed       = errors.New("curve fit did not converge")
)

// NewNotFoundError builds a not-found error for a resource id
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// IsNotFoundError reports whether err is any not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

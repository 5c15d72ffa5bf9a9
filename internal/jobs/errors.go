package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCareer is returned for career keys missing from the catalog.
	ErrUnknownCareer = errors.New("unknown career")
	// ErrInvalidListing is returned when a listing lacks a title or a usable link.
	ErrInvalidListing = errors.New("invalid listing")
)

// ValidationError marks caller mistakes that must not be retried.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

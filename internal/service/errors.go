package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/charge-slot-reservation/internal/repository"
)

// Store sentinels are re-exported so callers only need this package to
// classify failures.
var (
	ErrNotFound = repository.ErrNotFound
	ErrConflict = repository.ErrConflict
)

// ConflictError reports how many active reservations blocked an admission.
type ConflictError = repository.ConflictError

var (
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrExpired          = errors.New("payment deadline passed")
	ErrInvalidToken     = errors.New("invalid payment token")
	ErrAlreadyProcessed = errors.New("reservation already processed")
	ErrInvalidState     = errors.New("operation not allowed in current state")
	ErrValidation       = errors.New("validation failed")
	ErrPaymentDeclined  = errors.New("payment declined")
)

// ValidationError names the offending input field.  It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

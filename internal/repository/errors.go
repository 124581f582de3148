// Package repository defines error types that are reused across the
// reservation stores.  These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without depending on a particular storage driver.  Every
// store (MySQL here, BoltDB in boltstore) reports missing rows with
// ErrNotFound and rejected admissions with a *ConflictError.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a station, connector or reservation does
// not exist.  Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert cannot be performed because an
// active reservation already occupies an overlapping interval on the same
// connector.  Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ConflictError carries the number of active reservations that blocked an
// admission.  It matches ErrConflict under errors.Is.
type ConflictError struct {
	Count int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot unavailable: %d overlapping reservation(s)", e.Count)
}

// Is lets errors.Is(err, ErrConflict) succeed for a *ConflictError.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

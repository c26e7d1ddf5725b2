package storage

import "errors"

// ErrNotFound is returned when a lookup by ID finds no matching row.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicateResponse is returned when a response is submitted for an
// item that the run has already answered.
var ErrDuplicateResponse = errors.New("storage: duplicate response")

// ErrRunAlreadyComplete is returned when a mutation is attempted against
// a run that is no longer in_progress.
var ErrRunAlreadyComplete = errors.New("storage: run already complete")

package session

import "errors"

// ErrActiveRunExists is returned by StartRun when the subject already
// has a run in_progress (at most one per subject).
var ErrActiveRunExists = errors.New("session: subject already has an active run")

// ErrInvalidConfig is returned when a RunConfig fails validation
// (unknown exam version, epsilon above 1, or no active axes). A
// non-positive items_per_axis or epsilon is replaced by its default, not
// rejected.
var ErrInvalidConfig = errors.New("session: invalid run configuration")

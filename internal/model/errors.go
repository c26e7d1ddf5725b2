package model

// ErrCode is a stable, client-facing error classification carried in the
// {error:{code,message,details?}} response envelope.
type ErrCode string

const (
	ErrCodeValidation         ErrCode = "validation_error"
	ErrCodeNotFound           ErrCode = "not_found"
	ErrCodeConflict           ErrCode = "conflict"
	ErrCodeRunAlreadyComplete ErrCode = "run_already_complete"
	ErrCodeInternal           ErrCode = "internal_error"
	ErrCodeUnauthorized       ErrCode = "unauthorized"
)

// GamingDetectedAnnotation is not an error kind; it is annotated on a Snapshot and
// optionally surfaced by GET /evaluations/{id}.
const GamingDetectedAnnotation = "gaming_detected"

package mtask

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("mtask: no store configured")
	ErrNoPool          = errors.New("mtask: no worker pool wired")
	ErrStoreClosed     = errors.New("mtask: store closed")
	ErrMigrationFailed = errors.New("mtask: migration failed")

	// Not found errors.
	ErrTaskNotFound = errors.New("mtask: task not found")
	ErrDLQNotFound  = errors.New("mtask: dlq entry not found")

	// Conflict errors.
	ErrTaskAlreadyExists = errors.New("mtask: task already exists")

	// Admission errors.
	ErrOverQuota = errors.New("mtask: tenant over quota")

	// State errors.
	ErrInvalidState        = errors.New("mtask: invalid state transition")
	ErrMaxAttemptsExceeded = errors.New("mtask: max attempts exceeded")
)

package scheduler

import "errors"

// Validation and lookup error kinds surfaced to the presentation layer.
// Dispatch failures are never surfaced here; they are logged and swallowed.
var (
	// ErrNotFound reports an unknown schedule id.
	ErrNotFound = errors.New("schedule not found")

	// ErrMissingCron reports a fixed schedule without a cron expression.
	ErrMissingCron = errors.New("fixed schedule requires a cron expression")

	// ErrInvalidCron reports a cron expression outside the supported subset.
	ErrInvalidCron = errors.New("invalid cron expression")

	// ErrMissingTime reports a manual/event schedule without a scheduled time.
	ErrMissingTime = errors.New("manual and event schedules require a scheduled time")

	// ErrPastTime reports a manual schedule whose time is not strictly in the
	// future at create, update or re-enable.
	ErrPastTime = errors.New("scheduled time must be in the future")

	// ErrMissingField reports an empty required field (name, message, type).
	ErrMissingField = errors.New("missing required field")
)

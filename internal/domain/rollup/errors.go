package rollup

import "errors"

var (
	// ErrInvalidScope is returned for unknown ranking views or negative limits.
	ErrInvalidScope = errors.New("invalid ranking scope")
	// ErrInvalidSubject is returned for a blank subject id.
	ErrInvalidSubject = errors.New("invalid subject")
	// ErrLock is returned when the per-subject rollup lock cannot be taken.
	ErrLock = errors.New("rollup lock")
)

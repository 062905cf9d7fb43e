package loadtest

import "errors"

// Sentinel errors.
var (
	ErrConfig       = errors.New("invalid load test config")
	ErrUnhealthy    = errors.New("service is not healthy")
	ErrDrainTimeout = errors.New("server did not record every outcome in time")
	ErrMismatch     = errors.New("stored aggregates differ from the generated history")
	ErrRanking      = errors.New("ranking is inconsistent")
)

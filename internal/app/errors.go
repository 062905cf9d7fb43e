package service

import "errors"

var (
	// ErrNotStarted is returned by Ingest before Start or after Stop.
	ErrNotStarted = errors.New("service not started")
	// ErrDuplicate is returned by Ingest for an outcome id seen before.
	ErrDuplicate = errors.New("duplicate outcome")
	// ErrBackpressure is returned by Ingest when the queue is full.
	ErrBackpressure = errors.New("outcome queue full")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("service stopped")
)

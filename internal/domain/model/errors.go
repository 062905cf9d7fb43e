package model

import "errors"

// Sentinel errors for model validation.
var (
	ErrInvalidKey      = errors.New("subject and topic must not be empty")
	ErrInvalidCounts   = errors.New("correct answers exceed total questions")
	ErrBrokenInvariant = errors.New("performance record invariant violated")
	ErrInvalidRange    = errors.New("invalid date range")
	ErrInvalidOutcome  = errors.New("invalid outcome")
)

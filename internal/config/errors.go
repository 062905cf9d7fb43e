package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks a configuration that loaded but cannot be used.
// ErrLoadConfig marks a file or environment layer that could not be read.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Narrower kinds; each also matches ErrInvalidConfig.
var (
	ErrUnknownDriver   = fmt.Errorf("%w: unknown store_driver", ErrInvalidConfig)
	ErrInvalidTimezone = fmt.Errorf("%w: unknown timezone", ErrInvalidConfig)
)

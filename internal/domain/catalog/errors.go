package catalog

import "errors"

// Sentinel errors for catalog construction.
var (
	ErrInvalidCatalog = errors.New("invalid topic catalog")
	ErrLoadCatalog    = errors.New("load topic catalog failed")
)

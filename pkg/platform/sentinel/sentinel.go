package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, guards and provider adapters
// return these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: a uniqueness rule rejected the write (e.g. a second in-flight record)
//   - ErrInvalidState: entity is not in the state a conditional update expected
//   - ErrUnavailable: backing service or lock temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

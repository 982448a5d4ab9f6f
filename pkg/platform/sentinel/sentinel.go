package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, queues and channels return
// these (optionally wrapped) so services can translate them into domain errors:
//   - ErrNotFound: row does not exist
//   - ErrConflict: a unique key already exists
//   - ErrInvalidState: the row is in the wrong state for the requested transition
//   - ErrUnavailable: a downstream channel or broker is refusing work
//
// Validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

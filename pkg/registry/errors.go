package registry

import "fmt"

// ValidationError reports a malformed persona field. The originating action
// is blocked before any local or remote mutation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("persona validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// SyncError reports an optimistic local change that could not be confirmed
// remotely and has been rolled back.
type SyncError struct {
	Op       string
	UniqueID string
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("could not sync %s of persona %s: %v", e.Op, e.UniqueID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

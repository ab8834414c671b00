package contest

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a submission id does not exist.
var ErrNotFound = errors.New("submission not found")

// ValidationError reports user input that failed a precondition. No network
// or storage work happens once one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransferError wraps a failed upload to object storage.
type TransferError struct {
	Err error
}

func (e *TransferError) Error() string {
	return "upload failed: " + e.Err.Error()
}

func (e *TransferError) Unwrap() error { return e.Err }

// StoreError wraps a failed datastore operation. Op is one of "record",
// "list", "count", "get", "delete", "clear" or "participant".
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema marks an invalid declaration. Fatal, raised before any store access.
	ErrSchema = errors.New("schema error")
	// ErrConnection marks a transport failure of a single store call.
	ErrConnection = errors.New("connection error")
	// ErrStoreUnavailable marks a store that stayed unreachable after retries.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrAlreadyExists is returned when creating a collection that exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is returned for missing collections and indexes.
	ErrNotFound = errors.New("not found")
	// ErrIndexConflict is returned when an index cannot be built because of a
	// name or key collision, or a uniqueness violation in existing data.
	ErrIndexConflict = errors.New("index conflict")
	// ErrInvalidSpec is returned when the store rejects an index definition.
	ErrInvalidSpec = errors.New("invalid index spec")
	// ErrPlanUnavailable is returned when no usable query plan could be obtained.
	ErrPlanUnavailable = errors.New("plan unavailable")
	// ErrTimeout is returned when a schema change did not finish within the
	// call timeout. It fails that action only and is never retried.
	ErrTimeout = errors.New("timed out")
)

// SchemaError describes one problem in the declared schema.
type SchemaError struct {
	Collection string
	Index      string
	Reason     string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Collection == "":
		return fmt.Sprintf("schema error: %s", e.Reason)
	case e.Index == "":
		return fmt.Sprintf("schema error: collection %s: %s", e.Collection, e.Reason)
	}
	return fmt.Sprintf("schema error: index %s.%s: %s", e.Collection, e.Index, e.Reason)
}

// Is makes errors.Is(err, ErrSchema) hold for every SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// OpError carries the store operation and target of a failed call.
type OpError struct {
	Op         string
	Collection string
	Index      string
	Err        error
}

func (e *OpError) Error() string {
	target := e.Collection
	if e.Index != "" {
		target += "." + e.Index
	}
	if target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transport failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConnection) && !errors.Is(err, ErrStoreUnavailable)
}

// IsFatal reports whether err must abort a run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrSchema)
}

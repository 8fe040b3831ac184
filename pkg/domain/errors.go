package domain

import (
	"errors"
	"fmt"
)

// Protocol violations. They are returned synchronously at the mutation or
// declaration site and leave the store untouched.
var (
	// ErrOutsideAction is returned when a write goes through a read-only view.
	ErrOutsideAction = errors.New("modify data outside action")

	// ErrComputedWrite is returned when a computed-backed property is assigned or deleted.
	ErrComputedWrite = errors.New("computed props are not assignable")

	// ErrInvalidKey is returned for empty, dotted or private (#-prefixed) keys,
	// and for array keys that are neither an index nor "length".
	ErrInvalidKey = errors.New("invalid property key")

	// ErrInvalidValue is returned when a value cannot be stored at the given key
	// (e.g. a non-integer array length).
	ErrInvalidValue = errors.New("invalid property value")

	// ErrConflictingDeclaration is returned when one key is declared as more than
	// one of state, computed or action.
	ErrConflictingDeclaration = errors.New("conflicting declaration")

	// ErrNotContainer is returned when an array-only or object-only operation is
	// used on the wrong kind of node.
	ErrNotContainer = errors.New("node is not a container of the expected kind")
)

// Collaborator errors.
var (
	// ErrUnknownAction is returned when a store has no action with the given name.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNotFound is returned by Storage implementations when a key does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidEnvelope is returned when persisted data is not a store envelope.
	ErrInvalidEnvelope = errors.New("invalid store data envelope")
)

// ViolationError describes a protocol violation against a store.
type ViolationError struct {
	Store string
	Path  string
	Op    string
	Err   error
}

func (e *ViolationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("[vine] [%s] %s %s: %v", e.Store, e.Op, e.Path, e.Err)
}

func (e *ViolationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Violation builds a ViolationError.
func Violation(store, op, path string, err error) error {
	return &ViolationError{Store: store, Op: op, Path: path, Err: err}
}

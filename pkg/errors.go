package pkg

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that a referenced record does not exist (or belongs to another tenant).
	ErrNotFound = errors.New("record not found")
	// ErrConfig reports missing external configuration such as an absent tenant context.
	ErrConfig = errors.New("missing configuration")
	// ErrVersionConflict reports a lost compare-and-set against the record store.
	ErrVersionConflict = errors.New("version conflict")
)

// StoreError wraps a failure reported by the record store collaborator.
type StoreError struct {
	Collection string
	Op         string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Collection, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError builds a StoreError unless err is nil or already part of the taxonomy.
func NewStoreError(collection, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionConflict) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Collection: collection, Op: op, Err: err}
}

// IsStoreError reports whether err carries a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

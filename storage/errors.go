package storage

import (
	"fmt"
)

// StoreError wraps a failure of a config store backend.
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Backend: backend, Op: op, Err: err}
}

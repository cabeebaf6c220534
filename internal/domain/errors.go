package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an unknown content hash.
	ErrNotFound = errors.New("image not found")
	// ErrStorageUnavailable reports a content store I/O failure, distinct
	// from a missing object.
	ErrStorageUnavailable = errors.New("content store unavailable")
)

// InvalidParamError reports a request parameter outside its declared range.
type InvalidParamError struct {
	Name  string
	Value string
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%q", e.Name, e.Value)
}

// StageError carries the pipeline stage that failed. Partial results behind
// a StageError are discarded and never cached.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

package models

import (
	"errors"
	"fmt"
)

// Error kinds returned by the embedder, store, index and engine.
// Callers match them with errors.Is.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidDocument     = errors.New("invalid document")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInternalConsistency = errors.New("internal consistency violation")
)

// Error wraps errors with operation context.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with operation context.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// DimensionError reports an embedding whose length does not match the expected dimension.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: got %d, expected %d", e.Got, e.Expected)
}

// Is lets errors.Is(err, ErrDimensionMismatch) match.
func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// CheckDimension returns a *DimensionError when len(vec) != expected.
func CheckDimension(vec []float32, expected int) error {
	if len(vec) != expected {
		return &DimensionError{Expected: expected, Got: len(vec)}
	}
	return nil
}

// NotFoundError returns ErrNotFound annotated with the missing id.
func NotFoundError(id string) error {
	return fmt.Errorf("document %q: %w", id, ErrNotFound)
}

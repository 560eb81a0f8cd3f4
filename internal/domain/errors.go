package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyInput indicates the caller supplied no transactions.
var ErrEmptyInput = errors.New("no transactions supplied")

// ErrInputTooLarge indicates the batch exceeds the configured account bound.
var ErrInputTooLarge = errors.New("transaction batch exceeds account limit")

// ErrGraphUnavailable indicates an export was requested without a graph database.
var ErrGraphUnavailable = errors.New("graph database is not configured")

// DetectionError is the single opaque failure surfaced when the pipeline breaks.
// No partial result accompanies it.
type DetectionError struct {
	Stage string
	Err   error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection failed during %s: %v", e.Stage, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// ExportError wraps a failure while writing a run to the graph database.
type ExportError struct {
	RunID string
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export run %s: %v", e.RunID, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

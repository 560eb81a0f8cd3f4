package ingest

import (
	"fmt"
	"strings"
)

// RowError describes why a single data row was rejected. Row numbers count the
// header as row 1.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// ValidationError reports a malformed upload: either a structural problem
// (Reason) or a list of rejected rows.
type ValidationError struct {
	Reason string
	// Rows holds at most MaxReportedRowErrors entries in row order.
	Rows []RowError
	// Total counts every rejected row, including unreported ones.
	Total int
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	parts := make([]string, 0, len(e.Rows))
	for _, row := range e.Rows {
		parts = append(parts, row.Error())
	}
	msg := "csv parsing errors: " + strings.Join(parts, "; ")
	if hidden := e.Total - len(e.Rows); hidden > 0 {
		msg += fmt.Sprintf(" (and %d more)", hidden)
	}
	return msg
}

func (e *ValidationError) add(row RowError) {
	e.Total++
	if len(e.Rows) < MaxReportedRowErrors {
		e.Rows = append(e.Rows, row)
	}
}

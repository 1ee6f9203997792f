package merge

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by Merge and Run wraps exactly one of these.
var (
	ErrInputShape         = errors.New("input shape")
	ErrSeriesLength       = errors.New("series length")
	ErrTargetFieldMissing = errors.New("target field missing")
	ErrDateFormat         = errors.New("date format")
	ErrOrdering           = errors.New("ordering")
	ErrIntervalInference  = errors.New("interval inference")
)

var kindNames = map[error]string{
	ErrInputShape:         "input_shape",
	ErrSeriesLength:       "series_length",
	ErrTargetFieldMissing: "target_field_missing",
	ErrDateFormat:         "date_format",
	ErrOrdering:           "ordering",
	ErrIntervalInference:  "interval_inference",
}

// Error describes a rejected input. Index is the record position inside the
// sequence, or -1 when the failure is not tied to a single record.
type Error struct {
	Kind     error
	Sequence string
	Index    int
	Detail   string
}

func (e *Error) Error() string {
	switch {
	case e.Sequence == "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	case e.Index < 0:
		return fmt.Sprintf("%v: sequence %q: %s", e.Kind, e.Sequence, e.Detail)
	default:
		return fmt.Sprintf("%v: sequence %q record %d: %s", e.Kind, e.Sequence, e.Index, e.Detail)
	}
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, seq string, idx int, format string, args ...any) *Error {
	return &Error{Kind: kind, Sequence: seq, Index: idx, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns a stable snake_case name for the error kind wrapped by err,
// or "internal" if err is not a merge error.
func KindOf(err error) string {
	for kind, name := range kindNames {
		if errors.Is(err, kind) {
			return name
		}
	}
	return "internal"
}

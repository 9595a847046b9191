package identification

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks setup problems; the run never starts.
	ErrConfiguration = errors.New("identification configuration error")
	// ErrMissingReference marks a truth timestamp absent from a hypothesis reference index.
	ErrMissingReference = errors.New("missing reference measurement")
	// ErrEmptyTrace is returned for a truth trace without rows.
	ErrEmptyTrace = errors.New("empty truth trace")
	// ErrUnorderedTrace is returned when truth timestamps decrease.
	ErrUnorderedTrace = errors.New("truth timestamps are not non-decreasing")
)

// MissingReferenceError identifies the hypothesis and timestamp of a failed lookup.
type MissingReferenceError struct {
	Hypothesis string
	Time       int64
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("%v: hypothesis %q has no expected measurement at %d ns", ErrMissingReference, e.Hypothesis, e.Time)
}

func (e *MissingReferenceError) Unwrap() error {
	return ErrMissingReference
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

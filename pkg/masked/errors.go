package masked

import "fmt"

// ConsistencyError reports a contradiction between two values that must
// agree, such as a mask whose shape differs from the data it covers, or a
// flat storage slice whose length does not match the declared shape. It
// signals a defect in the calling code rather than a data condition, so it
// is always surfaced synchronously and never coerced away.
type ConsistencyError struct {
	Reason string
	Want   string
	Got    string
}

func (e *ConsistencyError) Error() string {
	if e.Want == "" && e.Got == "" {
		return fmt.Sprintf("consistency error: %s", e.Reason)
	}
	return fmt.Sprintf("consistency error: %s (want %s, got %s)", e.Reason, e.Want, e.Got)
}

func consistencyf(reason string, want, got any) *ConsistencyError {
	return &ConsistencyError{
		Reason: reason,
		Want:   fmt.Sprintf("%v", want),
		Got:    fmt.Sprintf("%v", got),
	}
}

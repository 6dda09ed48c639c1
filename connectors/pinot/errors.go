package pinot

import "errors"

// ErrInvalidSplit matches any *InvalidSplitError with errors.Is.
var ErrInvalidSplit = errors.New("invalid pinot split")

// InvalidSplitError is returned when a split is constructed without the fields
// its kind requires. It indicates a planning defect and is never retried.
type InvalidSplitError struct {
	Reason string
}

func (e *InvalidSplitError) Error() string {
	return "invalid pinot split: " + e.Reason
}

func (e *InvalidSplitError) Is(target error) bool {
	return target == ErrInvalidSplit
}

func invalidSplit(reason string) error {
	return &InvalidSplitError{Reason: reason}
}

package series

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned by Run when the task list is not a list.
	ErrInvalidInput = errors.New("series: functions list expected")

	// ErrMissingFunction is reported when a slot holds no callable task.
	ErrMissingFunction = errors.New("series: function expected")
)

// StepError is reported to the handler when the task at Index fails.
// Error returns the wrapped message unchanged.
type StepError struct {
	Index int
	Err   error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("series: step %d failed", e.Index)
	}
	return e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IndexOf returns the index of the step that produced err.
func IndexOf(err error) (int, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Index, true
	}
	return -1, false
}

func invalidInput(tasks any) error {
	return fmt.Errorf("%w: got %T", ErrInvalidInput, tasks)
}

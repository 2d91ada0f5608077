package collective

import (
	"errors"
	"fmt"
)

// TaskError reports the task a batch failed on. Index is the position of the task's
// argument set in the batch.
//
// Besides execution failures, TaskError also tags precondition failures that belong to
// one task: an invalid branch element (ErrConfiguration) or, in process mode, a function
// that is not a registered procedure (ErrSerialization). Such batches fail before
// anything is dispatched. Use errors.Is with those sentinels to tell them apart from
// failures raised while the task ran.
type TaskError struct {
	Index int
	Err   error
}

func newTaskError(index int, err error) error {
	if err == nil {
		return nil
	}
	var te *TaskError
	if errors.As(err, &te) && te.Index == index {
		return err
	}
	return &TaskError{Index: index, Err: err}
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: task %d: %v", Namespace, e.Index, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

func (e *TaskError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "task(index=%d): %+v", e.Index, e.Err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractTaskIndex returns the index of the failed task if err carries one.
func ExtractTaskIndex(err error) (int, bool) {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Index, true
	}
	return 0, false
}

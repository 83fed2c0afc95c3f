package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors of the form-filling engine. Everything the engine can fail
// with wraps one of these, so callers classify with errors.Is.
var (
	// ErrFieldNotFound means every selector candidate of a FieldSpec was
	// exhausted. This is a configuration defect and is never retried.
	ErrFieldNotFound = errors.New("field not found")

	// ErrWaitTimeout means a control never became interactable within the
	// wait gate's bound. Retryable up to the controller's policy.
	ErrWaitTimeout = errors.New("control not interactable before timeout")

	// ErrPopupTimeout means a popup trigger was clicked but the modal never
	// became visible.
	ErrPopupTimeout = errors.New("popup did not open before timeout")

	// ErrPopupCloseTimeout means the confirm control was clicked but the
	// modal never disappeared. Never retried; the run aborts.
	ErrPopupCloseTimeout = errors.New("popup did not close before timeout")

	// ErrPrerequisiteCycle means no pending field's prerequisites can ever be
	// satisfied. Configuration defect, never retried.
	ErrPrerequisiteCycle = errors.New("unsatisfiable field prerequisites")
)

// CommitError reports that an interaction ran but did not produce the
// intended control state. Transient failures (stale element, race with a
// re-render) are retried; the rest escalate immediately.
type CommitError struct {
	Field     string
	Reason    string
	Transient bool
	Err       error
}

func (e *CommitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("commit failed for field %q: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("commit failed for field %q: %s", e.Field, e.Reason)
}

func (e *CommitError) Unwrap() error { return e.Err }

// PopupFieldError scopes an inner commit failure to its popup so the outcome
// identifies both the dialog and the offending field.
type PopupFieldError struct {
	Popup string
	Err   error
}

func (e *PopupFieldError) Error() string {
	return fmt.Sprintf("popup %q: %v", e.Popup, e.Err)
}

func (e *PopupFieldError) Unwrap() error { return e.Err }

// StepError ties a section fill failure to the step that caused it, so run
// outcomes name the field structurally instead of parsing it out of the
// message.
type StepError struct {
	Section Section
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("section %s: step %q: %v", e.Section, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// retryable reports whether the controller may re-attempt a step after err.
// ErrFieldNotFound and popup close failures always escalate.
func retryable(err error) bool {
	if errors.Is(err, ErrWaitTimeout) || errors.Is(err, ErrPopupTimeout) {
		return true
	}
	var ce *CommitError
	if errors.As(err, &ce) {
		return ce.Transient
	}
	return false
}

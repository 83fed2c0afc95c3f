package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FieldState is the per-step lifecycle inside one section fill.
type FieldState int

const (
	StatePending FieldState = iota
	StateWaiting
	StateCommitted
	StateFailed
)

func (s FieldState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateWaiting:
		return "waiting"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Transition is one observed state change, delivered to the OnTransition hook
// for progress reporting.
type Transition struct {
	Section Section
	Step    string
	From    FieldState
	To      FieldState
	Attempt int
	Err     error
}

// FormController fills one section of the declaration: it schedules steps by
// prerequisite, drives each through the executor or popup handler, and
// retries transient failures up to its policy. A section fill either commits
// every applicable step or fails; the controller never leaves a step silently
// unattempted.
type FormController struct {
	executor *StepExecutor
	popups   *PopupHandler
	// maxRetries is re-attempts after the first try; total attempts per step
	// are maxRetries+1.
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger

	// OnTransition, when set, observes every state change. Called
	// synchronously from the fill goroutine.
	OnTransition func(Transition)
}

// NewFormController creates a controller with the given retry policy.
func NewFormController(executor *StepExecutor, popups *PopupHandler, maxRetries int, backoff time.Duration, logger *zap.Logger) *FormController {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &FormController{
		executor:   executor,
		popups:     popups,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger.Named("controller"),
	}
}

// FillSection commits every step of the section in dependency order. Steps
// whose prerequisites are committed run first; after each commit the pending
// list is re-scanned, so a field revealed by an earlier commit is picked up
// in the same pass. Optional steps with no source value are skipped and do
// not count as committed.
func (c *FormController) FillSection(ctx context.Context, sess *FormSession, section Section, steps []Step, values *SourceValues) error {
	sess.setSection(section)
	log := c.logger.With(zap.String("section", string(section)))

	pending := make([]Step, len(steps))
	copy(pending, steps)

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		idx := c.nextReady(sess, pending)
		if idx < 0 {
			names := make([]string, len(pending))
			for i, s := range pending {
				names[i] = s.Name()
			}
			return fmt.Errorf("section %s: steps %v: %w", section, names, ErrPrerequisiteCycle)
		}

		step := pending[idx]
		pending = append(pending[:idx], pending[idx+1:]...)

		skipped, err := c.runStep(ctx, sess, section, step, values)
		if err != nil {
			return err
		}
		if skipped {
			log.Debug("Step skipped, no source value.", zap.String("step", step.Name()))
		}
	}
	return nil
}

// nextReady returns the index of the first pending step whose prerequisites
// are all committed, or -1 when none is ready.
func (c *FormController) nextReady(sess *FormSession, pending []Step) int {
	for i, step := range pending {
		ready := true
		for _, req := range step.requires() {
			if !sess.Committed(req) {
				ready = false
				break
			}
		}
		if ready {
			return i
		}
	}
	return -1
}

// runStep drives one step through its attempts. The returned bool reports an
// optional step skipped for lack of a source value.
func (c *FormController) runStep(ctx context.Context, sess *FormSession, section Section, step Step, values *SourceValues) (bool, error) {
	name := step.Name()

	var text string
	if step.Field != nil && step.Field.Kind != KindAction {
		val, ok := values.Get(name)
		if !ok {
			if step.Field.Optional {
				return true, nil
			}
			c.transition(section, name, StatePending, StateFailed, 1,
				fmt.Errorf("no source value for required field %q", name))
			return false, &StepError{Section: section, Step: name, Err: fmt.Errorf("no source value for required field")}
		}
		text = val.commitText()
	}

	state := StatePending
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		c.transition(section, name, state, StateWaiting, attempt, nil)
		state = StateWaiting

		var err error
		if step.Popup != nil {
			err = c.popups.Run(ctx, sess, *step.Popup, values)
		} else {
			err = c.executor.Commit(ctx, sess, *step.Field, text)
		}
		if err == nil {
			c.transition(section, name, state, StateCommitted, attempt, nil)
			return false, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if !retryable(err) || attempt == c.maxRetries+1 {
			break
		}

		c.logger.Warn("Step failed, retrying.",
			zap.String("section", string(section)),
			zap.String("step", name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		c.transition(section, name, state, StatePending, attempt, err)
		state = StatePending

		if c.backoff > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(c.backoff):
			}
		}
	}

	c.transition(section, name, state, StateFailed, c.maxRetries+1, lastErr)
	if errors.Is(lastErr, ErrFieldNotFound) {
		c.logger.Error("Step failed, selector chain exhausted.",
			zap.String("section", string(section)),
			zap.String("step", name),
			zap.Error(lastErr))
	}
	return false, &StepError{Section: section, Step: name, Err: lastErr}
}

func (c *FormController) transition(section Section, step string, from, to FieldState, attempt int, err error) {
	if c.OnTransition == nil {
		return
	}
	c.OnTransition(Transition{
		Section: section,
		Step:    step,
		From:    from,
		To:      to,
		Attempt: attempt,
		Err:     err,
	})
}

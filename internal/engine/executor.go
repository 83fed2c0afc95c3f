package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// StepExecutor performs one atomic form action against a resolved control:
// fill, select, attach or click, with value-kind-specific formatting and a
// post-interaction verification where the control state is readable.
type StepExecutor struct {
	gate    *WaitGate
	timeout time.Duration
	logger  *zap.Logger
}

// NewStepExecutor creates an executor whose waits are bounded by timeout.
func NewStepExecutor(gate *WaitGate, timeout time.Duration, logger *zap.Logger) *StepExecutor {
	return &StepExecutor{gate: gate, timeout: timeout, logger: logger.Named("executor")}
}

// Commit writes value to the field described by spec and records it in the
// session's committed set. It waits for interactability first, so callers
// may commit a dependent field immediately after its prerequisites.
//
// Failure modes: ErrFieldNotFound / ErrWaitTimeout from resolution, or a
// CommitError when the interaction ran but verification read back a
// different value.
func (e *StepExecutor) Commit(ctx context.Context, sess *FormSession, spec FieldSpec, value string) error {
	ctl, err := e.gate.Await(ctx, sess.Page(), spec, e.timeout)
	if err != nil {
		return err
	}

	text := value
	if spec.Kind == KindNumeric {
		amount, perr := ParseAmount(value)
		if perr != nil {
			return &CommitError{Field: spec.Name, Reason: "value is not numeric", Err: perr}
		}
		text = FormatAmount(amount)
	}

	if err := e.interact(ctx, sess.Page(), ctl, spec.Kind, text); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Interaction errors are overwhelmingly stale-element races with the
		// portal re-rendering after a dependent field appeared.
		return &CommitError{Field: spec.Name, Reason: "interaction failed", Transient: true, Err: err}
	}

	if err := e.verify(ctx, sess.Page(), ctl, spec.Kind, text); err != nil {
		return err
	}

	sess.markCommitted(spec.Name, text)
	e.logger.Debug("Field committed.",
		zap.String("section", string(sess.Section())),
		zap.String("field", spec.Name),
		zap.String("selector", ctl.Selector))
	return nil
}

func (e *StepExecutor) interact(ctx context.Context, page Page, ctl Control, kind ValueKind, text string) error {
	switch kind {
	case KindChoice:
		return page.SelectOption(ctx, ctl.Selector, text)
	case KindFile:
		return page.SetFiles(ctx, ctl.Selector, text)
	case KindAction:
		return page.Click(ctx, ctl.Selector)
	default:
		return page.Fill(ctx, ctl.Selector, text)
	}
}

// verify re-reads the control where its state is readable. Clicks and file
// attachments have no readable committed state; selects are verified against
// either the option value or its label.
func (e *StepExecutor) verify(ctx context.Context, page Page, ctl Control, kind ValueKind, want string) error {
	switch kind {
	case KindAction, KindFile:
		return nil
	}
	got, err := page.Value(ctx, ctl.Selector)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &CommitError{Field: ctl.Field, Reason: "verification read failed", Transient: true, Err: err}
	}
	if kind == KindNumeric {
		if !amountsEqual(got, want) {
			return &CommitError{Field: ctl.Field, Reason: "numeric value mismatch after fill: got " + got + ", want " + want}
		}
		return nil
	}
	if strings.TrimSpace(got) != strings.TrimSpace(want) {
		if kind == KindChoice {
			// Selects report the option value attribute; the caller may have
			// matched by label instead. Confirm against the selected option's
			// label, so a wrong pre-selected option never passes.
			label, lerr := page.Text(ctx, ctl.Selector+" option:checked")
			if lerr == nil && strings.TrimSpace(label) == strings.TrimSpace(want) {
				return nil
			}
			return &CommitError{Field: ctl.Field, Reason: "selected option mismatch: got " + got + ", want " + want}
		}
		return &CommitError{Field: ctl.Field, Reason: "value mismatch after fill: got " + got + ", want " + want}
	}
	return nil
}

package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PopupState tracks the lifecycle of a modal capture dialog.
type PopupState int

const (
	PopupClosed PopupState = iota
	PopupOpening
	PopupOpen
	PopupConfirming
)

func (s PopupState) String() string {
	switch s {
	case PopupClosed:
		return "closed"
	case PopupOpening:
		return "opening"
	case PopupOpen:
		return "open"
	case PopupConfirming:
		return "confirming"
	}
	return "unknown"
}

// PopupHandler runs the capture dialog protocol: trigger, wait for the modal
// scope to render, optionally create the capture row, fill the inner fields
// in order, save, acknowledge, and wait for the scope to disappear. The
// protocol either completes or fails as a unit; there is no partially open
// state left behind on success.
type PopupHandler struct {
	executor *StepExecutor
	gate     *WaitGate
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewPopupHandler creates a handler whose open and close waits are bounded by
// timeout, polling at interval.
func NewPopupHandler(executor *StepExecutor, gate *WaitGate, interval, timeout time.Duration, logger *zap.Logger) *PopupHandler {
	if interval <= 0 {
		interval = 150 * time.Millisecond
	}
	return &PopupHandler{
		executor: executor,
		gate:     gate,
		interval: interval,
		timeout:  timeout,
		logger:   logger.Named("popup"),
	}
}

// Run executes the whole protocol for one popup. values supplies the inner
// field data by logical name; optional inner fields with no value are skipped.
// On success the trigger field is recorded as committed in the session.
func (p *PopupHandler) Run(ctx context.Context, sess *FormSession, spec PopupSpec, values *SourceValues) error {
	log := p.logger.With(zap.String("popup", spec.Name))

	log.Debug("Popup state transition.", zap.String("state", PopupOpening.String()))
	if err := p.executor.Commit(ctx, sess, spec.Trigger, ""); err != nil {
		return &PopupFieldError{Popup: spec.Name, Err: err}
	}
	if err := p.awaitVisible(ctx, sess.Page(), spec.Scope, true); err != nil {
		return fmt.Errorf("popup %q: %w", spec.Name, err)
	}
	log.Debug("Popup state transition.", zap.String("state", PopupOpen.String()))

	if spec.Add != nil {
		if err := p.executor.Commit(ctx, sess, spec.Add.Scoped(spec.Scope), ""); err != nil {
			return &PopupFieldError{Popup: spec.Name, Err: err}
		}
	}

	for _, field := range spec.Fields {
		val, ok := values.Get(field.Name)
		if !ok {
			if field.Optional {
				continue
			}
			return &PopupFieldError{Popup: spec.Name,
				Err: fmt.Errorf("no source value for required field %q", field.Name)}
		}
		if err := p.executor.Commit(ctx, sess, field.Scoped(spec.Scope), val.commitText()); err != nil {
			return &PopupFieldError{Popup: spec.Name, Err: err}
		}
	}

	log.Debug("Popup state transition.", zap.String("state", PopupConfirming.String()))
	if spec.Accept != nil {
		if err := p.executor.Commit(ctx, sess, *spec.Accept, ""); err != nil {
			return &PopupFieldError{Popup: spec.Name, Err: err}
		}
	}
	if err := p.executor.Commit(ctx, sess, spec.Confirm, ""); err != nil {
		return &PopupFieldError{Popup: spec.Name, Err: err}
	}

	if err := p.awaitVisible(ctx, sess.Page(), spec.Scope, false); err != nil {
		return fmt.Errorf("popup %q: %w", spec.Name, err)
	}
	log.Debug("Popup state transition.", zap.String("state", PopupClosed.String()))

	sess.markCommitted(spec.Name, "")
	return nil
}

// awaitVisible polls the modal scope until its visibility matches want.
// Opening failures map to ErrPopupTimeout, closing failures to
// ErrPopupCloseTimeout.
func (p *PopupHandler) awaitVisible(ctx context.Context, page Page, scope string, want bool) error {
	deadline := time.Now().Add(p.timeout)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		visible, err := p.visibleQuiet(ctx, page, scope)
		if err != nil {
			return err
		}
		if visible == want {
			return nil
		}
		if time.Now().After(deadline) {
			if want {
				return fmt.Errorf("scope %q after %v: %w", scope, p.timeout, ErrPopupTimeout)
			}
			return fmt.Errorf("scope %q after %v: %w", scope, p.timeout, ErrPopupCloseTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// visibleQuiet treats probe errors as "not visible": while the portal swaps
// the modal in and out of the DOM the node can vanish mid-read.
func (p *PopupHandler) visibleQuiet(ctx context.Context, page Page, scope string) (bool, error) {
	n, err := page.Count(ctx, scope)
	if err != nil || n == 0 {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	visible, err := page.Visible(ctx, scope)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return visible, nil
}

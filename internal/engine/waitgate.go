package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// WaitGate blocks until a control is present and enabled for interaction, or
// a bounded timeout elapses. Every dependent-field transition on the portal
// goes through here: callers never assume a prerequisite-gated control is
// immediately available.
type WaitGate struct {
	resolver *Resolver
	interval time.Duration
	logger   *zap.Logger
}

// NewWaitGate creates a gate polling at the given interval.
func NewWaitGate(resolver *Resolver, interval time.Duration, logger *zap.Logger) *WaitGate {
	if interval <= 0 {
		interval = 150 * time.Millisecond
	}
	return &WaitGate{resolver: resolver, interval: interval, logger: logger.Named("waitgate")}
}

// Await polls until one of spec's candidates is both present and enabled. On
// expiry the error distinguishes the two ways a field stays unavailable: a
// selector chain that never matched surfaces ErrFieldNotFound (configuration
// defect, escalates), while a control that resolved but never accepted
// interaction surfaces ErrWaitTimeout (timing, retryable). A cancelled
// context surfaces as the context error, not as a timeout.
func (w *WaitGate) Await(ctx context.Context, page Page, spec FieldSpec, timeout time.Duration) (Control, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	resolvedOnce := false
	var lastErr error
	for {
		ctl, resolved, err := w.probe(ctx, page, spec)
		if err == nil {
			return ctl, nil
		}
		if ctx.Err() != nil {
			return Control{}, ctx.Err()
		}
		resolvedOnce = resolvedOnce || resolved
		lastErr = err

		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return Control{}, ctx.Err()
		case <-ticker.C:
		}
	}

	w.logger.Debug("Wait gate expired.",
		zap.String("field", spec.Name),
		zap.Duration("timeout", timeout),
		zap.Bool("resolved", resolvedOnce),
		zap.Error(lastErr))
	if !resolvedOnce {
		return Control{}, fmt.Errorf("field %q after %v: %w", spec.Name, timeout, ErrFieldNotFound)
	}
	return Control{}, fmt.Errorf("field %q after %v: %w", spec.Name, timeout, ErrWaitTimeout)
}

// probe runs one resolve + interactable check. The bool reports whether
// resolution itself succeeded.
func (w *WaitGate) probe(ctx context.Context, page Page, spec FieldSpec) (Control, bool, error) {
	ctl, err := w.resolver.Resolve(ctx, page, spec)
	if err != nil {
		return Control{}, false, err
	}
	enabled, err := page.Enabled(ctx, ctl.Selector)
	if err != nil {
		return Control{}, true, err
	}
	if !enabled {
		return Control{}, true, errors.New("control present but not enabled")
	}
	return ctl, true, nil
}

package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TargetResult is the comparison outcome for one summary field.
type TargetResult struct {
	Name      string
	Expected  float64
	Live      float64
	Delta     float64
	Tolerance float64
	Pass      bool
}

// ReconciliationResult aggregates all target comparisons. Allow is true only
// when every target passed; a single miss denies the send.
type ReconciliationResult struct {
	Allow   bool
	Targets []TargetResult
}

// Deltas returns the absolute deviation per target name, recorded in the run
// outcome regardless of the verdict.
func (r ReconciliationResult) Deltas() map[string]float64 {
	out := make(map[string]float64, len(r.Targets))
	for _, t := range r.Targets {
		out[t.Name] = t.Delta
	}
	return out
}

// ReconcileGate reads the portal's computed summary fields and compares each
// against the workpaper expectation within an absolute tolerance. The gate
// only observes; the submission controller acts on the verdict.
type ReconcileGate struct {
	gate    *WaitGate
	timeout time.Duration
	logger  *zap.Logger
}

// NewReconcileGate creates a gate whose summary-field waits are bounded by
// timeout.
func NewReconcileGate(gate *WaitGate, timeout time.Duration, logger *zap.Logger) *ReconcileGate {
	return &ReconcileGate{gate: gate, timeout: timeout, logger: logger.Named("reconcile")}
}

// Reconcile evaluates every target. It reads all targets even after a miss so
// the outcome reports the full deviation picture, and fails with an error
// only when a summary field cannot be read at all.
func (g *ReconcileGate) Reconcile(ctx context.Context, sess *FormSession, targets []ReconciliationTarget) (ReconciliationResult, error) {
	result := ReconciliationResult{Allow: true, Targets: make([]TargetResult, 0, len(targets))}

	for _, target := range targets {
		live, err := g.readAmount(ctx, sess.Page(), target.Field)
		if err != nil {
			return ReconciliationResult{}, err
		}

		delta := live - target.Expected
		if delta < 0 {
			delta = -delta
		}
		tr := TargetResult{
			Name:      target.Name,
			Expected:  target.Expected,
			Live:      live,
			Delta:     delta,
			Tolerance: target.Tolerance,
			Pass:      delta <= target.Tolerance,
		}
		if !tr.Pass {
			result.Allow = false
			g.logger.Warn("Reconciliation target out of tolerance.",
				zap.String("target", tr.Name),
				zap.Float64("expected", tr.Expected),
				zap.Float64("live", tr.Live),
				zap.Float64("delta", tr.Delta),
				zap.Float64("tolerance", tr.Tolerance))
		} else {
			g.logger.Debug("Reconciliation target within tolerance.",
				zap.String("target", tr.Name),
				zap.Float64("delta", tr.Delta))
		}
		result.Targets = append(result.Targets, tr)
	}
	return result, nil
}

// readAmount waits for the summary field and parses its rendered text. Summary
// cells are display-only, so Text is tried before Value.
func (g *ReconcileGate) readAmount(ctx context.Context, page Page, spec FieldSpec) (float64, error) {
	ctl, err := g.gate.Await(ctx, page, spec, g.timeout)
	if err != nil {
		return 0, err
	}
	raw, err := page.Text(ctx, ctl.Selector)
	if err != nil || raw == "" {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		raw, err = page.Value(ctx, ctl.Selector)
		if err != nil {
			return 0, &CommitError{Field: spec.Name, Reason: "cannot read summary field", Err: err}
		}
	}
	return ParseAmount(raw)
}

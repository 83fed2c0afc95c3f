package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Resolver turns a FieldSpec into a live control reference by trying each
// selector candidate in declared order. Pure lookup, no side effects on the
// page.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.Named("resolver")}
}

// Resolve returns the first candidate with a live match, or ErrFieldNotFound
// once the chain is exhausted. Resolution is idempotent: repeated calls
// against unchanged markup return the same candidate.
func (r *Resolver) Resolve(ctx context.Context, page Page, spec FieldSpec) (Control, error) {
	if len(spec.Selectors) == 0 {
		return Control{}, fmt.Errorf("field %q has no selector candidates: %w", spec.Name, ErrFieldNotFound)
	}
	for _, sel := range spec.Selectors {
		if err := ctx.Err(); err != nil {
			return Control{}, err
		}
		n, err := r.countQuiet(ctx, page, spec, sel)
		if err != nil {
			return Control{}, err
		}
		if n > 0 {
			r.logger.Debug("Resolved field.",
				zap.String("field", spec.Name), zap.String("selector", sel))
			return Control{Field: spec.Name, Selector: sel}, nil
		}
	}
	return Control{}, fmt.Errorf("field %q: exhausted %d selector candidates: %w",
		spec.Name, len(spec.Selectors), ErrFieldNotFound)
}

// countQuiet treats a probe failure on one candidate as "no match" so a
// malformed selector in the middle of a chain does not mask later candidates.
// Context errors still surface.
func (r *Resolver) countQuiet(ctx context.Context, page Page, spec FieldSpec, sel string) (int, error) {
	n, err := page.Count(ctx, sel)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		r.logger.Debug("Selector probe failed; trying next candidate.",
			zap.String("field", spec.Name), zap.String("selector", sel), zap.Error(err))
		return 0, nil
	}
	return n, nil
}

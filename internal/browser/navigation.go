package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/declaranet/declara-cli/internal/engine"
	"github.com/declaranet/declara-cli/internal/portal"
)

// Navigator moves an authenticated session onto a fresh declaration form.
type Navigator struct {
	mapping  *portal.Mapping
	gate     *engine.WaitGate
	executor *engine.StepExecutor
	timeout  time.Duration
	logger   *zap.Logger
}

var _ engine.Navigator = (*Navigator)(nil)

// NewNavigator wires portal navigation.
func NewNavigator(mapping *portal.Mapping, gate *engine.WaitGate, executor *engine.StepExecutor, timeout time.Duration, logger *zap.Logger) *Navigator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Navigator{
		mapping:  mapping,
		gate:     gate,
		executor: executor,
		timeout:  timeout,
		logger:   logger.Named("navigation"),
	}
}

// OpenDeclaration clicks through to the declaration form. A leftover draft
// from an aborted earlier session makes the portal offer to resume it; the
// draft is always discarded so every run starts from an empty form.
func (n *Navigator) OpenDeclaration(ctx context.Context, page engine.Page) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	sess := engine.NewFormSession(page)
	nav := n.mapping.Navigation

	if err := n.executor.Commit(ctx, sess, nav.DeclarationMenu, ""); err != nil {
		return fmt.Errorf("opening declaration menu: %w", err)
	}

	if err := n.dismissDraft(ctx, sess, page); err != nil {
		return err
	}
	return nil
}

// dismissDraft handles the "Formulario no concluido" dialog when present. The
// dialog renders within a couple of seconds of the menu click or not at all.
func (n *Navigator) dismissDraft(ctx context.Context, sess *engine.FormSession, page engine.Page) error {
	nav := n.mapping.Navigation
	if nav.DraftScope == "" {
		return nil
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		visible, err := page.Visible(ctx, nav.DraftScope)
		if err == nil && visible {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(150 * time.Millisecond):
		}
	}

	n.logger.Info("Discarding unfinished declaration draft.")
	if err := n.executor.Commit(ctx, sess, nav.DraftDiscard, ""); err != nil {
		return fmt.Errorf("discarding draft: %w", err)
	}
	if err := n.executor.Commit(ctx, sess, nav.DraftConfirm, ""); err != nil {
		return fmt.Errorf("confirming draft discard: %w", err)
	}

	// The dialog must be gone before the form is usable.
	closeDeadline := time.Now().Add(10 * time.Second)
	for {
		visible, err := page.Visible(ctx, nav.DraftScope)
		if err == nil && !visible {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(closeDeadline) {
			return fmt.Errorf("draft dialog did not close")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(150 * time.Millisecond):
		}
	}
}

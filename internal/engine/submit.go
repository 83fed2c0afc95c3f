package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RunStatus is the terminal verdict of one declaration run.
type RunStatus string

const (
	// StatusSent means the form was filled, reconciled and the send action
	// was performed.
	StatusSent RunStatus = "sent"
	// StatusMismatchBlocked means the form was fully filled but the
	// reconciliation gate denied the send. Nothing was transmitted.
	StatusMismatchBlocked RunStatus = "mismatch_blocked"
	// StatusFailed means the run aborted before a verdict was possible.
	// Nothing was transmitted.
	StatusFailed RunStatus = "failed"
)

// StepFailure records one step that could not be committed.
type StepFailure struct {
	Section Section `json:"section"`
	Field   string  `json:"field"`
	Reason  string  `json:"reason"`
}

// RunOutcome is the immutable record of one declaration run, created exactly
// once when the run finishes.
type RunOutcome struct {
	RunID      string             `json:"run_id"`
	Status     RunStatus          `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	// Deltas holds the absolute deviation per reconciliation target, present
	// whenever the run reached the gate.
	Deltas   map[string]float64 `json:"deltas,omitempty"`
	Failures []StepFailure      `json:"failures,omitempty"`
}

// Authenticator establishes and tears down the portal session around a run.
type Authenticator interface {
	Login(ctx context.Context, page Page) error
	// Logout is best-effort cleanup; its error is logged, never propagated.
	Logout(ctx context.Context, page Page) error
}

// Navigator moves the authenticated session to the declaration form,
// dismissing any leftover draft along the way.
type Navigator interface {
	OpenDeclaration(ctx context.Context, page Page) error
}

// SubmissionController composes the whole run: authenticate, navigate, fill
// every section in order, reconcile, and send only on an allow verdict. The
// send action is the single irreversible step of the run; every path that
// does not reach an explicit allow leaves the portal untouched beyond the
// draft the portal itself keeps.
type SubmissionController struct {
	auth       Authenticator
	nav        Navigator
	controller *FormController
	gate       *ReconcileGate
	executor   *StepExecutor
	clock      func() time.Time
	logger     *zap.Logger
}

// NewSubmissionController wires the run composition.
func NewSubmissionController(auth Authenticator, nav Navigator, controller *FormController, gate *ReconcileGate, executor *StepExecutor, logger *zap.Logger) *SubmissionController {
	return &SubmissionController{
		auth:       auth,
		nav:        nav,
		controller: controller,
		gate:       gate,
		executor:   executor,
		clock:      time.Now,
		logger:     logger.Named("submission"),
	}
}

// Run executes one declaration end to end and returns the outcome. The
// returned error carries the abort cause for StatusFailed outcomes; for
// StatusSent and StatusMismatchBlocked it is nil.
func (s *SubmissionController) Run(ctx context.Context, page Page, plan Plan, values *SourceValues) (RunOutcome, error) {
	sess := NewFormSession(page)
	started := s.clock()
	log := s.logger.With(zap.String("run_id", sess.ID()))
	log.Info("Declaration run starting.")

	if err := s.auth.Login(ctx, page); err != nil {
		return s.failed(sess, started, SectionInitial, "login", err), err
	}
	defer func() {
		// Logout runs on its own context so a cancelled run still cleans up
		// the portal session.
		logoutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.auth.Logout(logoutCtx, page); err != nil {
			log.Warn("Logout failed.", zap.Error(err))
		}
	}()

	if err := s.nav.OpenDeclaration(ctx, page); err != nil {
		return s.failed(sess, started, SectionInitial, "navigation", err), err
	}

	sections := []struct {
		section Section
		steps   []Step
	}{
		{SectionInitial, plan.Initial},
		{SectionInitial, plan.AfterInitial},
		{SectionISR, plan.ISR},
		{SectionIVA, plan.IVA},
	}
	for _, sec := range sections {
		if err := s.controller.FillSection(ctx, sess, sec.section, sec.steps, values); err != nil {
			return s.failed(sess, started, sec.section, failedStep(err), err), err
		}
	}
	log.Info("All sections committed.", zap.Int("fields", sess.CommittedCount()))

	verdict, err := s.gate.Reconcile(ctx, sess, plan.Targets)
	if err != nil {
		return s.failed(sess, started, SectionIVA, "reconciliation", err), err
	}

	if !verdict.Allow {
		log.Warn("Reconciliation denied the send, declaration left unsent.",
			zap.Any("deltas", verdict.Deltas()))
		return RunOutcome{
			RunID:      sess.ID(),
			Status:     StatusMismatchBlocked,
			StartedAt:  started,
			FinishedAt: s.clock(),
			Deltas:     verdict.Deltas(),
		}, nil
	}

	if err := s.executor.Commit(ctx, sess, plan.Send, ""); err != nil {
		return s.failed(sess, started, SectionIVA, plan.Send.Name, err), err
	}

	log.Info("Declaration sent.", zap.Any("deltas", verdict.Deltas()))
	return RunOutcome{
		RunID:      sess.ID(),
		Status:     StatusSent,
		StartedAt:  started,
		FinishedAt: s.clock(),
		Deltas:     verdict.Deltas(),
	}, nil
}

func (s *SubmissionController) failed(sess *FormSession, started time.Time, section Section, field string, err error) RunOutcome {
	s.logger.Error("Declaration run aborted.",
		zap.String("run_id", sess.ID()),
		zap.String("section", string(section)),
		zap.String("field", field),
		zap.Error(err))
	return RunOutcome{
		RunID:      sess.ID(),
		Status:     StatusFailed,
		StartedAt:  started,
		FinishedAt: s.clock(),
		Failures: []StepFailure{{
			Section: section,
			Field:   field,
			Reason:  err.Error(),
		}},
	}
}

// failedStep pulls the offending field name out of a section fill error.
func failedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	var ce *CommitError
	if errors.As(err, &ce) {
		return ce.Field
	}
	var pe *PopupFieldError
	if errors.As(err, &pe) {
		return pe.Popup
	}
	return "unknown"
}

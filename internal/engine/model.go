// Package engine drives a multi-page, conditionally revealed declaration form:
// it resolves controls through ordered selector fallbacks, waits for
// dependent fields to appear, commits values with verification, runs nested
// capture dialogs, reconciles the portal's computed totals against the
// workpaper, and gates the terminal send action on that reconciliation.
//
// The engine never talks to a browser directly; it operates on the Page
// interface, so the whole state machine is testable against a fake page.
package engine

import (
	"context"

	"github.com/google/uuid"
)

// Section identifies one stage of the declaration flow.
type Section string

const (
	SectionInitial Section = "configuracion"
	SectionISR     Section = "isr"
	SectionIVA     Section = "iva"
)

// ValueKind tells the step executor how to format and apply a value.
type ValueKind int

const (
	// KindText is typed verbatim into an input.
	KindText ValueKind = iota
	// KindNumeric is normalized to a plain decimal before typing.
	KindNumeric
	// KindChoice selects a dropdown option, matching value first, label second.
	KindChoice
	// KindFile attaches a local file path to an upload control.
	KindFile
	// KindAction is a click-only control (buttons, links, checkmarks).
	KindAction
)

// FieldSpec declaratively describes one logical form field. Immutable once
// loaded by the configuration layer.
type FieldSpec struct {
	// Name is the logical field name, unique within its section. Source
	// values are matched to fields by this name.
	Name string `json:"name"`
	// Selectors is the ordered candidate chain; the resolver uses the first
	// one with a live match. Portal markup drifts, selectors are repaired in
	// configuration, never in engine code.
	Selectors []string `json:"selectors"`
	Kind      ValueKind `json:"kind"`
	// Requires lists field names that must be committed before this field
	// may be attempted.
	Requires []string `json:"requires,omitempty"`
	// Optional fields are skipped without failing when the source data has
	// no value for them.
	Optional bool `json:"optional,omitempty"`
}

// Scoped returns a copy whose selectors only match inside the given DOM
// scope, used for popup-inner fields so identical labels outside the open
// dialog are never touched.
func (f FieldSpec) Scoped(scope string) FieldSpec {
	if scope == "" {
		return f
	}
	scoped := f
	scoped.Selectors = make([]string, len(f.Selectors))
	for i, sel := range f.Selectors {
		scoped.Selectors[i] = scope + " " + sel
	}
	return scoped
}

// PopupSpec describes a modal capture dialog: the control that opens it, the
// dialog's own DOM scope, the inner fields, and the controls that save and
// dismiss it. Used transiently inside a single controller step.
type PopupSpec struct {
	Name    string    `json:"name"`
	Trigger FieldSpec `json:"trigger"`
	// Scope is the selector of the modal root; inner selectors are evaluated
	// underneath it and the open/close waits observe it.
	Scope string `json:"scope"`
	// Add, when present, is clicked once after the dialog opens to create the
	// capture row (the portal's AGREGAR button).
	Add    *FieldSpec  `json:"add,omitempty"`
	Fields []FieldSpec `json:"fields"`
	// Accept, when present, acknowledges the portal's intermediate
	// confirmation (ACEPTAR) after saving.
	Accept  *FieldSpec `json:"accept,omitempty"`
	Confirm FieldSpec  `json:"confirm"`
}

// Step is one unit of controller work: either a plain field commit or a full
// popup protocol run.
type Step struct {
	Field *FieldSpec
	Popup *PopupSpec
}

// Name returns the logical name the step is tracked under.
func (s Step) Name() string {
	if s.Popup != nil {
		return s.Popup.Name
	}
	return s.Field.Name
}

func (s Step) requires() []string {
	if s.Popup != nil {
		return s.Popup.Trigger.Requires
	}
	return s.Field.Requires
}

// ReconciliationTarget names one live summary field, the value the workpaper
// says it must show, and the absolute tolerance for the comparison.
type ReconciliationTarget struct {
	Name      string
	Field     FieldSpec
	Expected  float64
	Tolerance float64
}

// Plan is the full declaration fill sequence assembled by the configuration
// layer: the initial period/type fields, the interstitial transition, both
// obligation sections, the three reconciliation targets, and the terminal
// send control.
type Plan struct {
	Initial []Step
	// AfterInitial carries the transition out of the configuration page
	// (SIGUIENTE, pre-fill popup CERRAR) before the obligation sections load.
	AfterInitial []Step
	ISR          []Step
	IVA          []Step
	Targets      []ReconciliationTarget
	Send         FieldSpec
}

// FormSession is the mutable run-scoped state: the live page, the committed
// set, and the current section cursor. It is owned by the submission
// controller; other components receive it per call and never retain it.
type FormSession struct {
	id        string
	page      Page
	committed map[string]string
	section   Section
}

// NewFormSession binds a fresh session to a live page.
func NewFormSession(page Page) *FormSession {
	return &FormSession{
		id:        uuid.New().String(),
		page:      page,
		committed: make(map[string]string),
		section:   SectionInitial,
	}
}

// ID returns the unique run-scoped session identifier.
func (s *FormSession) ID() string { return s.id }

// Page returns the live control surface for this run.
func (s *FormSession) Page() Page { return s.page }

// Committed reports whether the named field has been successfully written
// and verified on the live form.
func (s *FormSession) Committed(name string) bool {
	_, ok := s.committed[name]
	return ok
}

// CommittedValue returns the value recorded for a committed field.
func (s *FormSession) CommittedValue(name string) (string, bool) {
	v, ok := s.committed[name]
	return v, ok
}

// CommittedCount returns the number of committed fields.
func (s *FormSession) CommittedCount() int { return len(s.committed) }

// Section returns the obligation section the run cursor is on.
func (s *FormSession) Section() Section { return s.section }

func (s *FormSession) markCommitted(name, value string) { s.committed[name] = value }

func (s *FormSession) setSection(sec Section) { s.section = sec }

// Page is the narrow control surface the engine drives. The production
// implementation wraps a chromedp browser tab; tests substitute a fake.
// Selector arguments are CSS selectors; every method observes ctx.
type Page interface {
	// Count returns how many live nodes match the selector.
	Count(ctx context.Context, selector string) (int, error)
	// Visible reports whether the first match is rendered and displayed.
	Visible(ctx context.Context, selector string) (bool, error)
	// Enabled reports whether the first match accepts interaction
	// (not disabled, not readonly).
	Enabled(ctx context.Context, selector string) (bool, error)
	// Click clicks the first match.
	Click(ctx context.Context, selector string) error
	// Fill replaces the first match's value with text.
	Fill(ctx context.Context, selector, text string) error
	// SelectOption picks a dropdown option, matching option value first and
	// visible label second.
	SelectOption(ctx context.Context, selector, option string) error
	// SetFiles attaches a local file to an upload control.
	SetFiles(ctx context.Context, selector, path string) error
	// Value reads the current value of the first match.
	Value(ctx context.Context, selector string) (string, error)
	// Text reads the rendered text content of the first match.
	Text(ctx context.Context, selector string) (string, error)
}

// Control is a resolved live control reference: the selector candidate that
// matched during resolution. It stays valid only as long as the portal keeps
// the node alive, which is why commits re-verify after interacting.
type Control struct {
	Field    string
	Selector string
}

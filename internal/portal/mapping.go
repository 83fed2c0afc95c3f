// Package portal holds the declaration-portal knowledge that is data, not
// code: the selector mapping file describing every control the automation
// touches, and the planner that turns a mapping plus a workpaper into the
// engine's fill plan. Portal markup drifts between SAT releases; repairs
// happen in the mapping file, never in engine code.
package portal

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/declaranet/declara-cli/internal/engine"
)

// StepMapping is one planned unit in a section: a plain field or a capture
// dialog, never both.
type StepMapping struct {
	Field *engine.FieldSpec `json:"field,omitempty"`
	Popup *engine.PopupSpec `json:"popup,omitempty"`
}

// TargetMapping names one computed summary control on the final page.
type TargetMapping struct {
	Name  string           `json:"name"`
	Field engine.FieldSpec `json:"field"`
}

// LoginMapping covers the e.firma authentication page.
type LoginMapping struct {
	EFirmaButton     engine.FieldSpec `json:"efirma_button"`
	CertificateInput engine.FieldSpec `json:"certificate_input"`
	KeyInput         engine.FieldSpec `json:"key_input"`
	PasswordInput    engine.FieldSpec `json:"password_input"`
	SubmitButton     engine.FieldSpec `json:"submit_button"`
	// ErrorBanner is where the portal renders authentication failures.
	ErrorBanner engine.FieldSpec `json:"error_banner"`
}

// NavigationMapping covers the path from the authenticated landing page to a
// fresh declaration form: the menu entry, the leftover-draft dialog, the
// data-loading interstitial and the session logout.
type NavigationMapping struct {
	DeclarationMenu engine.FieldSpec `json:"declaration_menu"`
	// DraftScope is the dialog the portal shows when an unfinished form from a
	// previous session exists ("Formulario no concluido").
	DraftScope   string           `json:"draft_scope"`
	DraftDiscard engine.FieldSpec `json:"draft_discard"`
	DraftConfirm engine.FieldSpec `json:"draft_confirm"`
	// LoadingScope is the interstitial shown while the portal pre-loads the
	// obligation data ("Cargando información").
	LoadingScope string           `json:"loading_scope"`
	LoadingClose engine.FieldSpec `json:"loading_close"`
	Logout       engine.FieldSpec `json:"logout"`
}

// Mapping is the full selector map for one portal release.
type Mapping struct {
	Version    int               `json:"version"`
	Login      LoginMapping      `json:"login"`
	Navigation NavigationMapping `json:"navigation"`
	// ErrorPhrases are substrings the portal renders on its own failure pages;
	// seeing one during a run aborts it.
	ErrorPhrases []string        `json:"error_phrases"`
	Initial      []StepMapping   `json:"initial"`
	AfterInitial []StepMapping   `json:"after_initial"`
	ISR          []StepMapping   `json:"isr"`
	IVA          []StepMapping   `json:"iva"`
	Targets      []TargetMapping `json:"targets"`
	Send         engine.FieldSpec `json:"send"`
}

// LoadMapping reads and validates a mapping file.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing mapping file %q: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("mapping file %q: %w", path, err)
	}
	return &m, nil
}

// Validate rejects mappings the engine cannot execute: fields without
// selector candidates, steps that are neither field nor popup, and a missing
// send control.
func (m *Mapping) Validate() error {
	check := func(where string, f engine.FieldSpec) error {
		if f.Name == "" {
			return fmt.Errorf("%s: field has no name", where)
		}
		if len(f.Selectors) == 0 {
			return fmt.Errorf("%s: field %q has no selector candidates", where, f.Name)
		}
		return nil
	}

	for _, f := range []struct {
		where string
		field engine.FieldSpec
	}{
		{"login", m.Login.EFirmaButton},
		{"login", m.Login.CertificateInput},
		{"login", m.Login.KeyInput},
		{"login", m.Login.PasswordInput},
		{"login", m.Login.SubmitButton},
		{"navigation", m.Navigation.DeclarationMenu},
		{"navigation", m.Navigation.Logout},
		{"send", m.Send},
	} {
		if err := check(f.where, f.field); err != nil {
			return err
		}
	}

	sections := map[string][]StepMapping{
		"initial":       m.Initial,
		"after_initial": m.AfterInitial,
		"isr":           m.ISR,
		"iva":           m.IVA,
	}
	for name, steps := range sections {
		for i, s := range steps {
			switch {
			case s.Field != nil && s.Popup != nil:
				return fmt.Errorf("%s[%d]: step is both field and popup", name, i)
			case s.Field != nil:
				if err := check(name, *s.Field); err != nil {
					return err
				}
			case s.Popup != nil:
				if err := m.validatePopup(name, *s.Popup); err != nil {
					return err
				}
			default:
				return fmt.Errorf("%s[%d]: step is neither field nor popup", name, i)
			}
		}
	}

	if len(m.Targets) == 0 {
		return fmt.Errorf("mapping defines no reconciliation targets")
	}
	for _, target := range m.Targets {
		if err := check("target "+target.Name, target.Field); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mapping) validatePopup(where string, p engine.PopupSpec) error {
	if p.Name == "" {
		return fmt.Errorf("%s: popup has no name", where)
	}
	if p.Scope == "" {
		return fmt.Errorf("%s: popup %q has no dialog scope", where, p.Name)
	}
	if len(p.Trigger.Selectors) == 0 {
		return fmt.Errorf("%s: popup %q trigger has no selector candidates", where, p.Name)
	}
	if len(p.Confirm.Selectors) == 0 {
		return fmt.Errorf("%s: popup %q confirm has no selector candidates", where, p.Name)
	}
	for _, f := range p.Fields {
		if len(f.Selectors) == 0 {
			return fmt.Errorf("%s: popup %q field %q has no selector candidates", where, p.Name, f.Name)
		}
	}
	return nil
}

func toSteps(steps []StepMapping) []engine.Step {
	out := make([]engine.Step, 0, len(steps))
	for _, s := range steps {
		out = append(out, engine.Step{Field: s.Field, Popup: s.Popup})
	}
	return out
}

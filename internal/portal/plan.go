package portal

import (
	"fmt"

	"github.com/declaranet/declara-cli/internal/engine"
	"github.com/declaranet/declara-cli/internal/workbook"
)

// Reconciliation target names. The planner binds these to the workpaper's
// expected totals; the mapping file binds them to live summary controls.
const (
	TargetISRAPagar   = "isr-a-pagar"
	TargetIVAAPagar   = "iva-a-pagar"
	TargetTotalAPagar = "total-a-pagar"
)

// Logical names the planner injects values for beyond the workpaper rows.
const (
	FieldPeriodo   = "periodo"
	FieldEjercicio = "ejercicio"
	FieldTipo      = "tipo-declaracion"
)

// TipoNormal is the declaration type for a regular monthly filing.
const TipoNormal = "Normal"

// BuildPlan assembles the engine's fill plan from the mapping and the parsed
// workpaper, binding each reconciliation target to the workpaper's expected
// amount with the given absolute tolerance.
func BuildPlan(m *Mapping, wp *workbook.Workpaper, tolerance float64) (engine.Plan, error) {
	expISR, expIVA, expTotal := wp.ExpectedTotals()
	expected := map[string]float64{
		TargetISRAPagar:   expISR,
		TargetIVAAPagar:   expIVA,
		TargetTotalAPagar: expTotal,
	}

	targets := make([]engine.ReconciliationTarget, 0, len(m.Targets))
	for _, tm := range m.Targets {
		exp, ok := expected[tm.Name]
		if !ok {
			return engine.Plan{}, fmt.Errorf("mapping target %q has no expected amount source", tm.Name)
		}
		targets = append(targets, engine.ReconciliationTarget{
			Name:      tm.Name,
			Field:     tm.Field,
			Expected:  exp,
			Tolerance: tolerance,
		})
	}

	return engine.Plan{
		Initial:      toSteps(m.Initial),
		AfterInitial: toSteps(m.AfterInitial),
		ISR:          toSteps(m.ISR),
		IVA:          toSteps(m.IVA),
		Targets:      targets,
		Send:         m.Send,
	}, nil
}

// BuildValues merges the workpaper bands into one value set and injects the
// period-derived initial fields. ISR labels load first, then IVA; the two
// bands use disjoint labels so order only matters for fill sequencing.
func BuildValues(wp *workbook.Workpaper) *engine.SourceValues {
	values := engine.NewSourceValues()
	values.SetText(FieldTipo, TipoNormal)
	values.SetText(FieldEjercicio, wp.Period.YearLabel())
	values.SetText(FieldPeriodo, wp.Period.MonthLabel())

	for _, set := range []*engine.SourceValues{wp.ISR, wp.IVA} {
		for _, label := range set.Labels() {
			v, _ := set.Get(label)
			if v.Numeric {
				values.SetAmount(label, v.Amount)
			} else {
				values.SetText(label, v.Raw)
			}
		}
	}
	return values
}

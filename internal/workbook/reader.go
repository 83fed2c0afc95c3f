// Package workbook reads the monthly tax workpaper: the Excel file the
// accounting side produces, with an Impuestos sheet holding labelled ISR and
// IVA amounts in two fixed row bands. The reader turns those bands into the
// ordered label -> value sets the form engine fills from.
package workbook

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/declaranet/declara-cli/internal/config"
	"github.com/declaranet/declara-cli/internal/engine"
)

// Expected-total labels inside the workpaper bands. The reconciliation gate
// compares the portal's computed summary against these rows.
const (
	LabelISRAPagar = "ISR a pagar"
	LabelIVAAPagar = "IVA a pagar"
)

// Workpaper is one parsed workbook: the declaration period from the filename
// and the ordered value sets per obligation section.
type Workpaper struct {
	Path   string
	Period Period
	ISR    *engine.SourceValues
	IVA    *engine.SourceValues
}

// ExpectedTotals returns the workpaper's view of what the portal must compute:
// the ISR and IVA amounts payable and their sum. Absent rows count as zero.
func (w *Workpaper) ExpectedTotals() (isr, iva, total float64) {
	isr = w.ISR.Amount(LabelISRAPagar)
	iva = w.IVA.Amount(LabelIVAAPagar)
	return isr, iva, isr + iva
}

// Reader loads workpapers according to the configured sheet layout.
type Reader struct {
	cfg    config.WorkbookConfig
	logger *zap.Logger
}

// NewReader creates a reader for the given layout.
func NewReader(cfg config.WorkbookConfig, logger *zap.Logger) *Reader {
	return &Reader{cfg: cfg, logger: logger.Named("workbook")}
}

// Load opens the workpaper at path, parses its period prefix and reads both
// obligation bands. Rows with an empty label cell are skipped; rows whose
// value cell holds text are kept as textual values.
func (r *Reader) Load(path string) (*Workpaper, error) {
	period, err := ParsePeriod(path)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workpaper %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			r.logger.Warn("Closing workpaper failed.", zap.String("path", path), zap.Error(cerr))
		}
	}()

	sheet := r.cfg.Sheet
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("workpaper %q: %w", path, err)
	}
	if idx < 0 {
		return nil, fmt.Errorf("workpaper %q: sheet %q not found", path, sheet)
	}

	labelCol, err := r.detectLabelColumn(f, sheet)
	if err != nil {
		return nil, fmt.Errorf("workpaper %q: %w", path, err)
	}

	isr, err := r.readBand(f, sheet, labelCol, r.cfg.ISRStartRow, r.cfg.ISREndRow)
	if err != nil {
		return nil, fmt.Errorf("workpaper %q ISR band: %w", path, err)
	}
	iva, err := r.readBand(f, sheet, labelCol, r.cfg.IVAStartRow, r.cfg.IVAEndRow)
	if err != nil {
		return nil, fmt.Errorf("workpaper %q IVA band: %w", path, err)
	}

	r.logger.Info("Workpaper loaded.",
		zap.String("path", path),
		zap.String("period", period.String()),
		zap.String("label_column", labelCol),
		zap.Int("isr_rows", isr.Len()),
		zap.Int("iva_rows", iva.Len()))
	return &Workpaper{Path: path, Period: period, ISR: isr, IVA: iva}, nil
}

// detectLabelColumn handles the two workpaper layouts in circulation: labels
// in D with values in E, and the older one shifted right to E/F. The D layout
// wins when both bands' first labels are present in D.
func (r *Reader) detectLabelColumn(f *excelize.File, sheet string) (string, error) {
	for _, col := range []string{"D", "E"} {
		cell := fmt.Sprintf("%s%d", col, r.cfg.ISRStartRow)
		label, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(label) != "" {
			return col, nil
		}
	}
	return "", fmt.Errorf("no labels in column D or E at row %d, sheet layout unrecognized", r.cfg.ISRStartRow)
}

// valueColumn is the column immediately right of the label column.
func valueColumn(labelCol string) string {
	if labelCol == "E" {
		return "F"
	}
	return "E"
}

func (r *Reader) readBand(f *excelize.File, sheet, labelCol string, start, end int) (*engine.SourceValues, error) {
	values := engine.NewSourceValues()
	valueCol := valueColumn(labelCol)

	for row := start; row <= end; row++ {
		rawLabel, err := f.GetCellValue(sheet, fmt.Sprintf("%s%d", labelCol, row))
		if err != nil {
			return nil, err
		}
		label := NormalizeLabel(rawLabel)
		if label == "" {
			continue
		}

		rawValue, err := f.GetCellValue(sheet, fmt.Sprintf("%s%d", valueCol, row))
		if err != nil {
			return nil, err
		}
		if amount, perr := engine.ParseAmount(rawValue); perr == nil {
			values.SetAmount(label, amount)
		} else {
			values.SetText(label, strings.TrimSpace(rawValue))
		}
	}
	return values, nil
}

// NormalizeLabel collapses the whitespace noise accountants leave in label
// cells so lookups match regardless of padding.
func NormalizeLabel(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

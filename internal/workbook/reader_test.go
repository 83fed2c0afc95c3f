package workbook

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/declaranet/declara-cli/internal/config"
)

func testWorkbookConfig() config.WorkbookConfig {
	return config.WorkbookConfig{
		Sheet:       "Impuestos",
		ISRStartRow: 4,
		ISREndRow:   29,
		IVAStartRow: 33,
		IVAEndRow:   58,
	}
}

// writeFixture builds a minimal Impuestos sheet with labels in labelCol and
// values one column to the right.
func writeFixture(t *testing.T, path, labelCol string, isr, iva [][2]string) {
	t.Helper()
	f := excelize.NewFile()
	_, err := f.NewSheet("Impuestos")
	require.NoError(t, err)

	valueCol := "E"
	if labelCol == "E" {
		valueCol = "F"
	}
	write := func(start int, rows [][2]string) {
		for i, row := range rows {
			require.NoError(t, f.SetCellValue("Impuestos", fmt.Sprintf("%s%d", labelCol, start+i), row[0]))
			require.NoError(t, f.SetCellValue("Impuestos", fmt.Sprintf("%s%d", valueCol, start+i), row[1]))
		}
	}
	write(4, isr)
	write(33, iva)
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func TestLoadReadsBothBands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "202501_acme.xlsx")
	writeFixture(t, path, "D",
		[][2]string{
			{"Ingresos del mes", "1,132,090"},
			{"ISR retenido", "1,480.25"},
			{"ISR a pagar", "95"},
		},
		[][2]string{
			{"Actos gravados 16%", "500,000"},
			{"IVA a pagar", "12,345.60"},
		})

	reader := NewReader(testWorkbookConfig(), zap.NewNop())
	wp, err := reader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2025, wp.Period.Year)
	assert.Equal(t, time.January, wp.Period.Month)

	assert.Equal(t, []string{"Ingresos del mes", "ISR retenido", "ISR a pagar"}, wp.ISR.Labels())
	assert.InDelta(t, 1132090, wp.ISR.Amount("Ingresos del mes"), 0.001)
	assert.InDelta(t, 1480.25, wp.ISR.Amount("ISR retenido"), 0.001)

	isr, iva, total := wp.ExpectedTotals()
	assert.InDelta(t, 95, isr, 0.001)
	assert.InDelta(t, 12345.60, iva, 0.001)
	assert.InDelta(t, 12440.60, total, 0.001)
}

func TestLoadShiftedLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "202407_acme.xlsx")
	writeFixture(t, path, "E",
		[][2]string{{"ISR a pagar", "100"}},
		[][2]string{{"IVA a pagar", "200"}})

	reader := NewReader(testWorkbookConfig(), zap.NewNop())
	wp, err := reader.Load(path)
	require.NoError(t, err)

	isr, iva, total := wp.ExpectedTotals()
	assert.InDelta(t, 100, isr, 0.001)
	assert.InDelta(t, 200, iva, 0.001)
	assert.InDelta(t, 300, total, 0.001)
}

func TestLoadSkipsEmptyLabelRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "202501_gaps.xlsx")
	writeFixture(t, path, "D",
		[][2]string{
			{"Ingresos del mes", "100"},
			{"", "999"},
			{"ISR a pagar", "10"},
		},
		[][2]string{{"IVA a pagar", "20"}})

	reader := NewReader(testWorkbookConfig(), zap.NewNop())
	wp, err := reader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, wp.ISR.Len())
}

func TestLoadKeepsTextualValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "202501_texto.xlsx")
	writeFixture(t, path, "D",
		[][2]string{{"Tipo de declaracion", "Normal"}},
		[][2]string{{"IVA a pagar", "0"}})

	reader := NewReader(testWorkbookConfig(), zap.NewNop())
	wp, err := reader.Load(path)
	require.NoError(t, err)

	v, ok := wp.ISR.Get("Tipo de declaracion")
	require.True(t, ok)
	assert.False(t, v.Numeric)
	assert.Equal(t, "Normal", v.Raw)
}

func TestLoadDashValueParsesAsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "202501_dash.xlsx")
	writeFixture(t, path, "D",
		[][2]string{{"ISR a pagar", "$ -"}},
		[][2]string{{"IVA a pagar", "-"}})

	reader := NewReader(testWorkbookConfig(), zap.NewNop())
	wp, err := reader.Load(path)
	require.NoError(t, err)

	isr, iva, total := wp.ExpectedTotals()
	assert.Zero(t, isr)
	assert.Zero(t, iva)
	assert.Zero(t, total)
}

func TestLoadMissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "202501_hoja.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	reader := NewReader(testWorkbookConfig(), zap.NewNop())
	_, err := reader.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Impuestos")
}

func TestLoadBadPeriodPrefix(t *testing.T) {
	reader := NewReader(testWorkbookConfig(), zap.NewNop())
	_, err := reader.Load("acme.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYYMM_")
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("/data/202512_empresa.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 2025, p.Year)
	assert.Equal(t, time.December, p.Month)
	assert.Equal(t, "Diciembre", p.MonthLabel())
	assert.Equal(t, "2025", p.YearLabel())
	assert.Equal(t, "2025-12", p.String())

	_, err = ParsePeriod("202513_empresa.xlsx")
	require.Error(t, err)

	_, err = ParsePeriod("20251_empresa.xlsx")
	require.Error(t, err)
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "ISR a pagar", NormalizeLabel("  ISR   a  pagar "))
	assert.Equal(t, "", NormalizeLabel("   "))
}

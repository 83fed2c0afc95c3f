package workbook

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Period is the declaration period a workpaper covers. It is encoded in the
// workpaper filename as a YYYYMM_ prefix, e.g. "202501_acme.xlsx".
type Period struct {
	Year  int
	Month time.Month
}

var periodPrefix = regexp.MustCompile(`^(\d{4})(\d{2})_`)

// ParsePeriod extracts the declaration period from a workpaper path.
func ParsePeriod(path string) (Period, error) {
	base := filepath.Base(path)
	m := periodPrefix.FindStringSubmatch(base)
	if m == nil {
		return Period{}, fmt.Errorf("workpaper %q: filename must start with a YYYYMM_ period prefix", base)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("workpaper %q: month %02d out of range", base, month)
	}
	if year < 2000 || year > 2100 {
		return Period{}, fmt.Errorf("workpaper %q: year %d out of range", base, year)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

var monthLabels = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthLabel returns the portal's Spanish month label for the period, as it
// appears in the period dropdown.
func (p Period) MonthLabel() string {
	return monthLabels[int(p.Month)-1]
}

// YearLabel returns the exercise year as the portal renders it.
func (p Period) YearLabel() string {
	return strconv.Itoa(p.Year)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

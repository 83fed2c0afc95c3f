package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount converts portal or workpaper currency text to a float. It
// accepts the forms the portal renders: "$ 1,132,090", "1,480.25", "95",
// "$ -". A bare dash or empty string parses as zero, matching how the
// workpaper renders absent amounts.
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse amount %q: %w", raw, err)
	}
	return v, nil
}

// FormatAmount renders a value the way the portal's numeric inputs expect:
// plain decimal point, two decimals, no thousands separators.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// amountsEqual compares two amount strings numerically, tolerating the
// portal re-rendering "1480.00" as "1,480" after a commit.
func amountsEqual(a, b string) bool {
	av, errA := ParseAmount(a)
	bv, errB := ParseAmount(b)
	if errA != nil || errB != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	const eps = 0.005
	diff := av - bv
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

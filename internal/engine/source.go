package engine

// SourceValue pairs a workpaper label with the value read for it. Labels
// match FieldSpec logical names; Raw keeps the cell text for diagnostics,
// Amount the parsed numeric value when the cell was numeric.
type SourceValue struct {
	Label   string
	Raw     string
	Amount  float64
	Numeric bool
}

// SourceValues is the ordered label -> value mapping for one run. Order
// follows workpaper row order and is preserved for fill order; labels are
// unique per declaration section.
type SourceValues struct {
	order  []string
	byName map[string]SourceValue
}

// NewSourceValues returns an empty, ordered value set.
func NewSourceValues() *SourceValues {
	return &SourceValues{byName: make(map[string]SourceValue)}
}

// SetText records a textual value under label. Re-setting a label updates the
// value in place without disturbing its position.
func (s *SourceValues) SetText(label, text string) {
	s.set(SourceValue{Label: label, Raw: text})
}

// SetAmount records a numeric value under label.
func (s *SourceValues) SetAmount(label string, amount float64) {
	s.set(SourceValue{Label: label, Raw: FormatAmount(amount), Amount: amount, Numeric: true})
}

func (s *SourceValues) set(v SourceValue) {
	if _, ok := s.byName[v.Label]; !ok {
		s.order = append(s.order, v.Label)
	}
	s.byName[v.Label] = v
}

// Get returns the value stored under label.
func (s *SourceValues) Get(label string) (SourceValue, bool) {
	v, ok := s.byName[label]
	return v, ok
}

// Amount returns the numeric value for label, or 0 when absent or textual.
func (s *SourceValues) Amount(label string) float64 {
	if v, ok := s.byName[label]; ok && v.Numeric {
		return v.Amount
	}
	return 0
}

// Labels returns the labels in insertion order.
func (s *SourceValues) Labels() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of stored labels.
func (s *SourceValues) Len() int { return len(s.order) }

// commitText is what the step executor types for this value.
func (v SourceValue) commitText() string {
	if v.Numeric {
		return FormatAmount(v.Amount)
	}
	return v.Raw
}

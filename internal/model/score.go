package model

// Mode selects the scoring policy for a scan.
type Mode string

const (
	ModeEarly        Mode = "early"
	ModeConfirmation Mode = "confirmation"
)

// Valid reports whether the mode is one of the supported values.
func (m Mode) Valid() bool {
	return m == ModeEarly || m == ModeConfirmation
}

// FilterResult is the outcome of a single sub-filter inside a scoring policy.
// Points is the filter's contribution to the raw total (0 unless Passed).
// Defined is false when the underlying indicator data was unavailable, so
// "insufficient data" and "condition false" stay distinguishable.
type FilterResult struct {
	Name    string `json:"name"`
	Points  int    `json:"points"`
	Passed  bool   `json:"passed"`
	Defined bool   `json:"defined"`
}

// ScoreResult is the scored verdict for one symbol under one mode.
// Total is capped at the mode's documented maximum regardless of how many
// sub-filters fire.
type ScoreResult struct {
	Symbol    string         `json:"symbol"`
	Mode      Mode           `json:"mode"`
	Filters   []FilterResult `json:"filters"`
	Total     int            `json:"total"`
	Qualifies bool           `json:"qualifies"`
}

// Reasons returns the names of the filters that passed, for alerts and logs.
func (r ScoreResult) Reasons() []string {
	var out []string
	for _, f := range r.Filters {
		if f.Passed {
			out = append(out, f.Name)
		}
	}
	return out
}

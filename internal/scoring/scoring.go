// Package scoring turns an indicator snapshot into a bounded confluence
// score under one of two policies: Early Detection (noisier, earlier
// signals, max 13 points) and Confirmation (later, more certain, max 7).
//
// Each policy evaluates a fixed list of sub-filters; a filter whose
// underlying indicator is undefined contributes 0 but is reported with
// Defined=false so diagnostics can tell "insufficient data" from
// "condition false". Totals are hard-capped at the policy's documented
// maximum: the published per-filter weights intentionally sum past the cap,
// and the cap wins.
package scoring

import (
	"fmt"
	"sort"

	"scanner-systemv1/internal/model"
)

// Params are the externally supplied filter thresholds and the qualification
// threshold. Zero values are not meaningful; use config defaults.
type Params struct {
	Threshold          int     // qualifies when capped total >= Threshold
	VolSpikeZ          float64 // confirmation volume spike, e.g. 2.0
	AccumLowZ          float64 // early accumulation band, e.g. [1.2, 2.0]
	AccumHighZ         float64
	BreakoutMarginPct  float64 // margin above the trailing high, in percent
	ApproachPct        float64 // "near resistance" distance, fractional
	RSIBullLow         float64 // early RSI band, e.g. [50, 65]
	RSIBullHigh        float64
	RSIOverbought      float64 // confirmation RSI floor, e.g. 70
	ADXFormingLow      float64 // early ADX band, e.g. (20, 30)
	ADXFormingHigh     float64
}

// DefaultParams returns the thresholds used by the stock presets.
func DefaultParams() Params {
	return Params{
		Threshold:         5,
		VolSpikeZ:         2.0,
		AccumLowZ:         1.2,
		AccumHighZ:        2.0,
		BreakoutMarginPct: 0.2,
		ApproachPct:       0.01,
		RSIBullLow:        50,
		RSIBullHigh:       65,
		RSIOverbought:     70,
		ADXFormingLow:     20,
		ADXFormingHigh:    30,
	}
}

// Policy is a scoring mode. Score returns ok=false when every sub-filter's
// indicator data was undefined, in which case the symbol is skipped for the
// cycle and no ScoreResult is emitted.
type Policy interface {
	Mode() model.Mode
	MaxScore() int
	Score(snap *model.Snapshot, p Params) (model.ScoreResult, bool)
}

// ForMode returns the policy for a configured mode.
func ForMode(mode model.Mode) (Policy, error) {
	switch mode {
	case model.ModeEarly:
		return EarlyDetection{}, nil
	case model.ModeConfirmation:
		return Confirmation{}, nil
	}
	return nil, fmt.Errorf("scoring: unknown mode %q", mode)
}

// Rank orders results by descending total score, then ascending symbol for
// determinism.
func Rank(results []model.ScoreResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Total != results[j].Total {
			return results[i].Total > results[j].Total
		}
		return results[i].Symbol < results[j].Symbol
	})
}

// finish caps the raw sum, applies the threshold, and checks whether any
// filter had defined inputs at all.
func finish(symbol string, mode model.Mode, maxScore, threshold int, filters []model.FilterResult) (model.ScoreResult, bool) {
	total := 0
	anyDefined := false
	for _, f := range filters {
		if f.Passed {
			total += f.Points
		}
		if f.Defined {
			anyDefined = true
		}
	}
	if !anyDefined {
		return model.ScoreResult{}, false
	}
	if total > maxScore {
		total = maxScore
	}
	return model.ScoreResult{
		Symbol:    symbol,
		Mode:      mode,
		Filters:   filters,
		Total:     total,
		Qualifies: total >= threshold,
	}, true
}

// filter builds one FilterResult. points is only credited when the data was
// defined and the condition held.
func filter(name string, points int, defined, passed bool) model.FilterResult {
	return model.FilterResult{
		Name:    name,
		Points:  points,
		Passed:  defined && passed,
		Defined: defined,
	}
}

// Package setup turns a qualified scan result into a concrete trade plan:
// entry at the last close, a stop from one of three risk models, and a
// target at a fixed reward multiple of the risk.
package setup

import (
	"errors"
	"fmt"
	"time"

	"scanner-systemv1/internal/model"
)

// ErrMissingVolatility is returned when the ATR risk model is selected but
// the snapshot's ATR is undefined.
var ErrMissingVolatility = errors.New("setup: atr undefined, cannot size stop")

// Params configure stop placement and the reward multiple.
type Params struct {
	Model      model.RiskModel
	ATRMult    float64 // stop distance in ATRs (atr model)
	StopPct    float64 // stop distance as a fraction of entry (percent model)
	StopPoints float64 // stop distance in absolute price points (points model)
	RewardMult float64 // target distance as a multiple of stop distance
}

// DefaultParams returns the stock preset: ATR stops at 0.9x with a 2:1
// reward multiple.
func DefaultParams() Params {
	return Params{
		Model:      model.RiskATR,
		ATRMult:    0.9,
		StopPct:    0.02,
		StopPoints: 5,
		RewardMult: 2,
	}
}

// Generate builds a long setup from a snapshot. The returned setup always
// satisfies stop < entry < target; any parameterisation that cannot produce
// that ordering is an error, never a malformed setup.
func Generate(snap *model.Snapshot, p Params, now time.Time) (model.TradeSetup, error) {
	if !p.Model.Valid() {
		return model.TradeSetup{}, fmt.Errorf("setup: unknown risk model %q", p.Model)
	}
	entry := snap.LastClose
	if entry <= 0 {
		return model.TradeSetup{}, fmt.Errorf("setup: %s: non-positive entry %.4f", snap.Symbol, entry)
	}

	risk, err := stopDistance(snap, p, entry)
	if err != nil {
		return model.TradeSetup{}, err
	}
	if risk <= 0 {
		return model.TradeSetup{}, fmt.Errorf("setup: %s: non-positive risk %.4f", snap.Symbol, risk)
	}
	if risk >= entry {
		return model.TradeSetup{}, fmt.Errorf("setup: %s: risk %.4f would place stop at or below zero", snap.Symbol, risk)
	}
	if p.RewardMult <= 0 {
		return model.TradeSetup{}, fmt.Errorf("setup: reward multiple %.2f must be positive", p.RewardMult)
	}

	ts := model.TradeSetup{
		Symbol:      snap.Symbol,
		Direction:   model.DirectionLong,
		Entry:       entry,
		Stop:        entry - risk,
		Target:      entry + risk*p.RewardMult,
		Model:       p.Model,
		GeneratedAt: now,
	}
	if err := ts.Validate(); err != nil {
		return model.TradeSetup{}, err
	}
	return ts, nil
}

func stopDistance(snap *model.Snapshot, p Params, entry float64) (float64, error) {
	switch p.Model {
	case model.RiskATR:
		if !snap.ATR.Defined {
			return 0, fmt.Errorf("%w: %s", ErrMissingVolatility, snap.Symbol)
		}
		return snap.ATR.V * p.ATRMult, nil
	case model.RiskPercent:
		return entry * p.StopPct, nil
	case model.RiskPoints:
		return p.StopPoints, nil
	}
	return 0, fmt.Errorf("setup: unknown risk model %q", p.Model)
}

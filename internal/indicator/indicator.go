// Package indicator derives a full technical snapshot from an ordered bar
// series. All computations are pure functions over the series: same bars in,
// same snapshot out.
//
// Every indicator whose required window exceeds the available bar count is
// marked undefined in the snapshot rather than defaulted to zero. Downstream
// scoring treats undefined as "filter not satisfied".
package indicator

import (
	"errors"

	"scanner-systemv1/internal/model"
)

// ErrNoData is returned when the series is too short to produce any snapshot
// at all (fewer than two bars).
var ErrNoData = errors.New("indicator: not enough bars")

// Params holds the caller-supplied lookback windows.
type Params struct {
	RSIPeriod         int     // fast RSI period (7 in all presets)
	ATRPeriod         int     // ATR period
	ADXPeriod         int     // ADX period
	MomentumLookback  int     // trailing-N high for breakout checks
	RSLookback        int     // relative-strength return lookback
	LevelWindow       int     // support/resistance trailing window
	SlopeWindow       int     // trend slope trailing window
	PatternWindow     int     // double top/bottom extrema window
	VolumeWindow      int     // volume z-score rolling window
	VolumeShortWindow int     // short window for the volume trend ratio
	PatternTolerance  float64 // extrema similarity tolerance (fractional)
}

// DefaultParams returns the preset windows used throughout the scanner.
func DefaultParams() Params {
	return Params{
		RSIPeriod:         7,
		ATRPeriod:         7,
		ADXPeriod:         14,
		MomentumLookback:  3,
		RSLookback:        3,
		LevelWindow:       20,
		SlopeWindow:       15,
		PatternWindow:     10,
		VolumeWindow:      20,
		VolumeShortWindow: 5,
		PatternTolerance:  0.01,
	}
}

// Compute derives one snapshot for a symbol from its bar series
// (oldest→newest) and the benchmark series used for relative strength.
// benchmark may be nil or short, in which case RelStrength is undefined.
func Compute(symbol string, bars, benchmark []model.Bar, p Params) (*model.Snapshot, error) {
	if len(bars) < 2 {
		return nil, ErrNoData
	}

	cl := closes(bars)
	n := len(bars)

	snap := &model.Snapshot{
		Symbol:    symbol,
		TS:        bars[n-1].TS,
		Bars:      n,
		LastClose: cl[n-1],
		PrevClose: cl[n-2],
	}

	snap.EMA20 = lastEMA(cl, 20)
	snap.EMA50 = lastEMA(cl, 50)
	snap.RSI, snap.PrevRSI = rsiLastPrev(cl, p.RSIPeriod)
	snap.RSI10, _ = rsiLastPrev(cl, 10)
	snap.MACD, snap.MACDSignal, snap.PrevMACD, snap.PrevMACDSignal = macdLastPrev(cl)
	snap.ATR = lastATR(bars, p.ATRPeriod)
	snap.ADX, snap.PrevADX = adxLastPrev(bars, p.ADXPeriod)
	snap.VolumeZ = volumeZScore(bars, p.VolumeWindow)
	snap.VolumeTrend = volumeTrend(bars, p.VolumeShortWindow, p.VolumeWindow)
	snap.RelStrength = relStrength(cl, closes(benchmark), p.RSLookback)
	snap.Support, snap.Resistance = levels(bars, p.LevelWindow)
	snap.PrevHigh = prevHigh(bars, p.MomentumLookback)
	snap.TrendSlope = trendSlope(cl, p.SlopeWindow)
	snap.Consolidating, snap.ConsolidationRange = consolidation(bars, p.PatternWindow)
	snap.Patterns = detectPatterns(bars, p.PatternWindow, p.PatternTolerance)

	return snap, nil
}

func closes(bars []model.Bar) []float64 {
	if len(bars) == 0 {
		return nil
	}
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

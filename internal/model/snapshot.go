package model

import "time"

// Value is an indicator value that may be undefined when the bar series is
// too short to compute it. Undefined is distinct from zero: downstream
// scoring treats an undefined value as "filter not satisfied", and
// diagnostics distinguish "insufficient data" from "condition false".
type Value struct {
	V       float64 `json:"v"`
	Defined bool    `json:"defined"`
}

// Def returns a defined Value.
func Def(v float64) Value { return Value{V: v, Defined: true} }

// Undef returns the undefined marker.
func Undef() Value { return Value{} }

// PatternFlags holds the candlestick pattern detections for the most recent
// bars of a series.
type PatternFlags struct {
	DoubleTop        bool `json:"double_top"`
	DoubleBottom     bool `json:"double_bottom"`
	BullishEngulfing bool `json:"bullish_engulfing"`
	MorningStar      bool `json:"morning_star"`
}

// AnyBullish reports whether any bullish pattern fired. DoubleTop is a
// bearish formation and does not count.
func (p PatternFlags) AnyBullish() bool {
	return p.DoubleBottom || p.BullishEngulfing || p.MorningStar
}

// Snapshot is the full indicator state for one symbol at one scan cycle,
// derived deterministically from its bar series and the benchmark series.
type Snapshot struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // timestamp of the last bar
	Bars   int       `json:"bars"`

	LastClose float64 `json:"last_close"`
	PrevClose float64 `json:"prev_close"`

	EMA20 Value `json:"ema20"`
	EMA50 Value `json:"ema50"`

	RSI     Value `json:"rsi"`      // fast RSI at the configured period
	PrevRSI Value `json:"prev_rsi"` // fast RSI one bar earlier
	RSI10   Value `json:"rsi10"`

	MACD           Value `json:"macd"`
	MACDSignal     Value `json:"macd_signal"`
	PrevMACD       Value `json:"prev_macd"`
	PrevMACDSignal Value `json:"prev_macd_signal"`

	ATR     Value `json:"atr"`
	ADX     Value `json:"adx"`
	PrevADX Value `json:"prev_adx"`

	VolumeZ     Value `json:"volume_z"`     // z-score of last volume vs rolling window
	VolumeTrend Value `json:"volume_trend"` // short-mean / long-mean volume ratio

	RelStrength Value `json:"rel_strength"` // return differential vs benchmark

	Support    Value `json:"support"`    // min low over the trailing level window
	Resistance Value `json:"resistance"` // max high over the trailing level window
	PrevHigh   Value `json:"prev_high"`  // trailing-N high excluding the last bar

	TrendSlope Value `json:"trend_slope"` // least-squares slope over trailing closes

	Consolidating      bool  `json:"consolidating"`
	ConsolidationRange Value `json:"consolidation_range"` // range as fraction of low

	Patterns PatternFlags `json:"patterns"`
}

// NearLevel reports whether price is within pct (fractional, e.g. 0.01) of
// the given level. Undefined levels are never near.
func NearLevel(price float64, level Value, pct float64) bool {
	if !level.Defined || level.V <= 0 {
		return false
	}
	d := price - level.V
	if d < 0 {
		d = -d
	}
	return d/level.V <= pct
}

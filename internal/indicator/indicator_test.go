package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"scanner-systemv1/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func bar(close float64, vol int64) model.Bar {
	return model.Bar{
		Symbol: "TEST",
		Open:   close, High: close + 0.5, Low: close - 0.5, Close: close,
		Volume: vol,
		TS:     time.Date(2026, 8, 3, 9, 15, 0, 0, time.UTC),
	}
}

func barsFrom(closes ...float64) []model.Bar {
	out := make([]model.Bar, len(closes))
	for i, c := range closes {
		out[i] = bar(c, 1000)
	}
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (diff=%.6f)", label, got, want, math.Abs(got-want))
	}
}

func assertDef(t *testing.T, label string, v model.Value) float64 {
	t.Helper()
	if !v.Defined {
		t.Fatalf("%s: undefined, want defined", label)
	}
	return v.V
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestEMA_SMASeed(t *testing.T) {
	// EMA(3) over 1,2,3,4,5 with mult = 2/(3+1) = 0.5:
	// seed = (1+2+3)/3 = 2
	// after 4: 4*0.5 + 2*0.5 = 3
	// after 5: 5*0.5 + 3*0.5 = 4
	v := lastEMA([]float64{1, 2, 3, 4, 5}, 3)
	assertClose(t, "EMA(3)", assertDef(t, "EMA(3)", v), 4.0, 0.0001)
}

func TestEMA_TooShort(t *testing.T) {
	if v := lastEMA([]float64{1, 2}, 3); v.Defined {
		t.Errorf("EMA(3) over 2 values: defined=%v, want undefined", v.Defined)
	}
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period2(t *testing.T) {
	// Closes: 100, 101, 100.5, 101.5. Deltas: +1, -0.5, +1.
	// Seed over first 2 deltas: avgGain=0.5, avgLoss=0.25
	//   RSI = 100 - 100/(1+2) = 66.6667
	// Wilder step with +1: avgGain=(0.5+1)/2=0.75, avgLoss=0.125
	//   RSI = 100 - 100/(1+6) = 85.7143
	last, prev := rsiLastPrev([]float64{100, 101, 100.5, 101.5}, 2)
	assertClose(t, "RSI last", assertDef(t, "RSI last", last), 85.714286, 0.0001)
	assertClose(t, "RSI prev", assertDef(t, "RSI prev", prev), 66.666667, 0.0001)
}

func TestRSI_AllGains(t *testing.T) {
	last, _ := rsiLastPrev([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 7)
	assertClose(t, "RSI all gains", assertDef(t, "RSI", last), 100.0, 0.0001)
}

func TestRSI_PrevUndefinedAtMinLength(t *testing.T) {
	// Exactly period+1 closes yields one RSI value, so prev must stay
	// undefined.
	last, prev := rsiLastPrev([]float64{1, 2, 3}, 2)
	if !last.Defined {
		t.Error("last RSI should be defined with period+1 closes")
	}
	if prev.Defined {
		t.Error("prev RSI should be undefined with period+1 closes")
	}
}

// ────────────────────────────────────────────────────────────
// MACD
// ────────────────────────────────────────────────────────────

func TestMACD_WarmupBoundary(t *testing.T) {
	short := make([]float64, 33)
	long := make([]float64, 40)
	for i := range short {
		short[i] = 100 + float64(i)
	}
	for i := range long {
		long[i] = 100 + float64(i)
	}

	// 33 closes: MACD line has 8 values, signal EMA(9) cannot seed.
	m, s, _, _ := macdLastPrev(short)
	if m.Defined || s.Defined {
		t.Errorf("MACD over 33 closes: defined, want undefined")
	}

	// 40 closes: line has 15 values, signal seeded, prev available.
	m, s, pm, ps := macdLastPrev(long)
	if !m.Defined || !s.Defined || !pm.Defined || !ps.Defined {
		t.Errorf("MACD over 40 closes: m=%v s=%v pm=%v ps=%v, want all defined",
			m.Defined, s.Defined, pm.Defined, ps.Defined)
	}
	// Steady uptrend: fast EMA leads the slow, MACD line positive.
	if m.V <= 0 {
		t.Errorf("MACD over rising closes: %.4f, want > 0", m.V)
	}
}

// ────────────────────────────────────────────────────────────
// ATR / ADX
// ────────────────────────────────────────────────────────────

func TestATR_Wilder_Period2(t *testing.T) {
	bars := []model.Bar{
		{High: 10.5, Low: 9.5, Close: 10},
		{High: 11, Low: 10, Close: 10.8},     // TR = 1.0
		{High: 11.5, Low: 10.6, Close: 11.2}, // TR = max(0.9, 0.7, 0.2) = 0.9
		{High: 12, Low: 11, Close: 11.8},     // TR = max(1.0, 0.8, 0.2) = 1.0
	}
	// seed = (1.0+0.9)/2 = 0.95; wilder: (0.95 + 1.0)/2 = 0.975
	v := lastATR(bars, 2)
	assertClose(t, "ATR(2)", assertDef(t, "ATR(2)", v), 0.975, 0.0001)
}

func TestATR_TooShort(t *testing.T) {
	if v := lastATR(barsFrom(10, 11), 2); v.Defined {
		t.Error("ATR(2) over 2 bars: defined, want undefined")
	}
}

func TestADX_StrongTrendHigh(t *testing.T) {
	// A relentless uptrend drives +DI far above -DI, so ADX should settle
	// well above the "forming" band.
	bars := make([]model.Bar, 40)
	for i := range bars {
		c := 100 + float64(i)*2
		bars[i] = model.Bar{High: c + 1, Low: c - 1, Close: c}
	}
	last, prev := adxLastPrev(bars, 14)
	if v := assertDef(t, "ADX", last); v < 50 {
		t.Errorf("ADX on strong trend: %.2f, want >= 50", v)
	}
	if !prev.Defined {
		t.Error("prev ADX should be defined over 40 bars")
	}
}

func TestADX_TooShort(t *testing.T) {
	last, prev := adxLastPrev(barsFrom(1, 2, 3, 4, 5), 14)
	if last.Defined || prev.Defined {
		t.Error("ADX over 5 bars: defined, want undefined")
	}
}

// ────────────────────────────────────────────────────────────
// Volume
// ────────────────────────────────────────────────────────────

func TestVolumeZScore_Correctness(t *testing.T) {
	// Volumes 100, 100, 160 over window 3:
	// mean = 120, sample var = (400+400+1600)/2 = 1200, std = 34.6410
	// z = (160-120)/34.6410 = 1.1547
	bars := []model.Bar{bar(10, 100), bar(10, 100), bar(10, 160)}
	v := volumeZScore(bars, 3)
	assertClose(t, "vol z", assertDef(t, "vol z", v), 1.154701, 0.0001)
}

func TestVolumeZScore_FlatVolumeUndefined(t *testing.T) {
	bars := []model.Bar{bar(10, 100), bar(10, 100), bar(10, 100)}
	if v := volumeZScore(bars, 3); v.Defined {
		t.Error("z-score over constant volume: defined, want undefined (std=0)")
	}
}

func TestVolumeTrend_Ratio(t *testing.T) {
	// Volumes 100, 100, 200, 300; short=2 mean 250, long=4 mean 175.
	bars := []model.Bar{bar(10, 100), bar(10, 100), bar(10, 200), bar(10, 300)}
	v := volumeTrend(bars, 2, 4)
	assertClose(t, "vol trend", assertDef(t, "vol trend", v), 250.0/175.0, 0.0001)
}

func TestRelStrength_ReturnDifferential(t *testing.T) {
	// Symbol +10% vs benchmark +2% over 2 bars → 0.08.
	v := relStrength([]float64{100, 105, 110}, []float64{200, 202, 204}, 2)
	assertClose(t, "rel strength", assertDef(t, "rel strength", v), 0.08, 0.0001)
}

func TestRelStrength_NoBenchmark(t *testing.T) {
	if v := relStrength([]float64{100, 105, 110}, nil, 2); v.Defined {
		t.Error("rel strength without benchmark: defined, want undefined")
	}
}

// ────────────────────────────────────────────────────────────
// Levels / consolidation
// ────────────────────────────────────────────────────────────

func TestPrevHigh_ExcludesLastBar(t *testing.T) {
	bars := []model.Bar{
		{High: 10}, {High: 11}, {High: 12}, {High: 13}, {High: 99},
	}
	// Lookback 3 over the bars before the last: highs 11, 12, 13.
	v := prevHigh(bars, 3)
	assertClose(t, "prevHigh", assertDef(t, "prevHigh", v), 13.0, 0.0001)
}

func TestLevels_MinMax(t *testing.T) {
	bars := []model.Bar{
		{High: 105, Low: 99}, {High: 110, Low: 101}, {High: 108, Low: 100},
	}
	sup, res := levels(bars, 3)
	assertClose(t, "support", assertDef(t, "support", sup), 99.0, 0.0001)
	assertClose(t, "resistance", assertDef(t, "resistance", res), 110.0, 0.0001)
}

func TestConsolidation_TightRangeNearHighs(t *testing.T) {
	// Range 100..102 is 2% of the low; close 101.6 sits at position 0.8.
	bars := []model.Bar{
		{High: 102, Low: 100, Close: 101},
		{High: 101.8, Low: 100.2, Close: 101.2},
		{High: 101.9, Low: 100.4, Close: 101.6},
	}
	ok, rng := consolidation(bars, 3)
	if !ok {
		t.Error("tight range near highs: consolidating=false, want true")
	}
	assertClose(t, "range pct", assertDef(t, "range pct", rng), 0.02, 0.0001)
}

func TestConsolidation_WideRangeRejected(t *testing.T) {
	bars := []model.Bar{
		{High: 110, Low: 100, Close: 109},
		{High: 109, Low: 101, Close: 108},
		{High: 110, Low: 100, Close: 109},
	}
	if ok, _ := consolidation(bars, 3); ok {
		t.Error("10 percent range: consolidating=true, want false")
	}
}

// ────────────────────────────────────────────────────────────
// Patterns
// ────────────────────────────────────────────────────────────

func TestPattern_BullishEngulfing(t *testing.T) {
	bars := []model.Bar{
		{Open: 105, Close: 103, High: 105.5, Low: 102.5},
		{Open: 102.5, Close: 105.5, High: 106, Low: 102},
	}
	if !bullishEngulfing(bars) {
		t.Error("green body engulfing prior red body: want true")
	}
}

func TestPattern_MorningStar(t *testing.T) {
	bars := []model.Bar{
		{Open: 110, Close: 100}, // long red, body 10
		{Open: 99, Close: 98},   // small body below
		{Open: 99, Close: 108},  // green close above midpoint 105
	}
	if !morningStar(bars) {
		t.Error("classic three-bar reversal: want true")
	}
}

func TestPattern_DoubleTop(t *testing.T) {
	// Peaks at 12 and 11.95 differ by 0.42%, inside the 1% tolerance.
	highs := []float64{10, 12, 10, 11.95, 10}
	if !doubleExtreme(highs, 0.01, true) {
		t.Error("two matching peaks: want true")
	}
	// 12 vs 11 differ by 8.3%.
	if doubleExtreme([]float64{10, 12, 10, 11, 10}, 0.01, true) {
		t.Error("mismatched peaks: want false")
	}
}

// ────────────────────────────────────────────────────────────
// Compute
// ────────────────────────────────────────────────────────────

func TestCompute_ShortSeriesMarksUndefined(t *testing.T) {
	snap, err := Compute("TEST", barsFrom(100, 101), nil, DefaultParams())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	assertClose(t, "LastClose", snap.LastClose, 101, 0.0001)
	assertClose(t, "PrevClose", snap.PrevClose, 100, 0.0001)
	for label, v := range map[string]model.Value{
		"EMA20": snap.EMA20, "RSI": snap.RSI, "MACD": snap.MACD,
		"ATR": snap.ATR, "ADX": snap.ADX, "VolumeZ": snap.VolumeZ,
		"PrevHigh": snap.PrevHigh, "TrendSlope": snap.TrendSlope,
	} {
		if v.Defined {
			t.Errorf("%s over 2 bars: defined, want undefined", label)
		}
	}
}

func TestCompute_NoData(t *testing.T) {
	if _, err := Compute("TEST", barsFrom(100), nil, DefaultParams()); !errors.Is(err, ErrNoData) {
		t.Errorf("Compute over 1 bar: err=%v, want ErrNoData", err)
	}
}

func TestCompute_LongSeriesAllDefined(t *testing.T) {
	closes := make([]float64, 0, 60)
	for i := 0; i < 60; i++ {
		closes = append(closes, 100+float64(i)*0.5)
	}
	bars := barsFrom(closes...)
	// Vary volume so the z-score deviation is nonzero.
	for i := range bars {
		bars[i].Volume = int64(1000 + i*10)
	}
	snap, err := Compute("TEST", bars, bars, DefaultParams())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for label, v := range map[string]model.Value{
		"EMA20": snap.EMA20, "EMA50": snap.EMA50,
		"RSI": snap.RSI, "PrevRSI": snap.PrevRSI,
		"MACD": snap.MACD, "MACDSignal": snap.MACDSignal,
		"ATR": snap.ATR, "ADX": snap.ADX, "PrevADX": snap.PrevADX,
		"VolumeZ": snap.VolumeZ, "VolumeTrend": snap.VolumeTrend,
		"RelStrength": snap.RelStrength,
		"Support":     snap.Support, "Resistance": snap.Resistance,
		"PrevHigh": snap.PrevHigh, "TrendSlope": snap.TrendSlope,
	} {
		if !v.Defined {
			t.Errorf("%s over 60 bars: undefined, want defined", label)
		}
	}
	// Same benchmark as symbol → zero return differential.
	assertClose(t, "RelStrength self", snap.RelStrength.V, 0, 0.0001)
	if snap.TrendSlope.V <= 0 {
		t.Errorf("slope on rising closes: %.4f, want > 0", snap.TrendSlope.V)
	}
}

package indicator

import (
	"math"

	"scanner-systemv1/internal/model"
)

// trueRanges returns the true range per bar from index 1 onward.
func trueRanges(bars []model.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		out[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// lastATR computes the Wilder-smoothed Average True Range at the last bar.
// Undefined when fewer than period+1 bars are available.
func lastATR(bars []model.Bar, period int) model.Value {
	trs := trueRanges(bars)
	if period < 1 || len(trs) < period {
		return model.Undef()
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trs[i]
	}
	atr /= float64(period)

	p := float64(period)
	for i := period; i < len(trs); i++ {
		atr = (atr*(p-1) + trs[i]) / p
	}
	return model.Def(atr)
}

// adxLastPrev computes Wilder's ADX at the last two bars. The first ADX value
// needs 2*period bars of movement; prev is undefined until one more bar after
// that.
func adxLastPrev(bars []model.Bar, period int) (last, prev model.Value) {
	undef := model.Undef()
	if period < 1 || len(bars) < 2*period+1 {
		return undef, undef
	}

	n := len(bars) - 1 // movement samples
	tr := trueRanges(bars)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < len(bars); i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	// Wilder-smoothed TR and DM over the first period samples.
	var smTR, smPlus, smMinus float64
	for i := 0; i < period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := make([]float64, 0, n-period+1)
	dx = append(dx, dxFrom(smTR, smPlus, smMinus))

	for i := period; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		dx = append(dx, dxFrom(smTR, smPlus, smMinus))
	}

	if len(dx) < period {
		return undef, undef
	}

	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dx[i]
	}
	adx /= float64(period)

	prevADX, prevDefined := 0.0, false
	p := float64(period)
	for i := period; i < len(dx); i++ {
		prevADX, prevDefined = adx, true
		adx = (adx*(p-1) + dx[i]) / p
	}

	last = model.Def(adx)
	if prevDefined {
		prev = model.Def(prevADX)
	} else {
		prev = undef
	}
	return last, prev
}

func dxFrom(smTR, smPlus, smMinus float64) float64 {
	if smTR == 0 {
		return 0
	}
	plusDI := 100 * smPlus / smTR
	minusDI := 100 * smMinus / smTR
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}

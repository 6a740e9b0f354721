package indicator

import (
	"math"

	"scanner-systemv1/internal/model"
)

// detectPatterns runs the candlestick and extrema pattern heuristics over the
// tail of the series. These are heuristic matches, not exact equality tests.
func detectPatterns(bars []model.Bar, window int, tolerance float64) model.PatternFlags {
	flags := model.PatternFlags{
		BullishEngulfing: bullishEngulfing(bars),
		MorningStar:      morningStar(bars),
	}
	flags.DoubleTop = doubleExtreme(highsOf(bars, window), tolerance, true)
	flags.DoubleBottom = doubleExtreme(lowsOf(bars, window), tolerance, false)
	return flags
}

// bullishEngulfing: previous bar closed red, last bar closed green with a
// body that engulfs the previous body.
func bullishEngulfing(bars []model.Bar) bool {
	if len(bars) < 2 {
		return false
	}
	prev, last := bars[len(bars)-2], bars[len(bars)-1]
	prevRed := prev.Close < prev.Open
	lastGreen := last.Close > last.Open
	return prevRed && lastGreen && last.Open <= prev.Close && last.Close >= prev.Open
}

// morningStar: a long red bar, a small-bodied bar below it, then a green bar
// closing above the midpoint of the first body.
func morningStar(bars []model.Bar) bool {
	if len(bars) < 3 {
		return false
	}
	a, b, c := bars[len(bars)-3], bars[len(bars)-2], bars[len(bars)-1]
	bodyA := a.Open - a.Close // positive for a red bar
	if bodyA <= 0 {
		return false
	}
	bodyB := math.Abs(b.Close - b.Open)
	if bodyB > bodyA*0.5 {
		return false
	}
	mid := a.Close + bodyA/2
	return c.Close > c.Open && c.Close > mid
}

func highsOf(bars []model.Bar, window int) []float64 {
	if len(bars) < window {
		return nil
	}
	tail := bars[len(bars)-window:]
	out := make([]float64, len(tail))
	for i, b := range tail {
		out[i] = b.High
	}
	return out
}

func lowsOf(bars []model.Bar, window int) []float64 {
	if len(bars) < window {
		return nil
	}
	tail := bars[len(bars)-window:]
	out := make([]float64, len(tail))
	for i, b := range tail {
		out[i] = b.Low
	}
	return out
}

// doubleExtreme matches the two most recent local extrema in vals against a
// similarity tolerance. peaks selects maxima (double top) vs minima (double
// bottom).
func doubleExtreme(vals []float64, tolerance float64, peaks bool) bool {
	if len(vals) < 3 {
		return false
	}
	var extrema []float64
	for i := 1; i < len(vals)-1; i++ {
		if peaks {
			if vals[i] > vals[i-1] && vals[i] > vals[i+1] {
				extrema = append(extrema, vals[i])
			}
		} else {
			if vals[i] < vals[i-1] && vals[i] < vals[i+1] {
				extrema = append(extrema, vals[i])
			}
		}
	}
	if len(extrema) < 2 {
		return false
	}
	a := extrema[len(extrema)-2]
	b := extrema[len(extrema)-1]
	ref := math.Max(math.Abs(a), math.Abs(b))
	if ref == 0 {
		return false
	}
	return math.Abs(a-b)/ref <= tolerance
}

package indicator

import "scanner-systemv1/internal/model"

// levels returns the nearest support (min low) and resistance (max high) over
// the trailing window.
func levels(bars []model.Bar, window int) (support, resistance model.Value) {
	if window < 1 || len(bars) < window {
		return model.Undef(), model.Undef()
	}
	tail := bars[len(bars)-window:]
	lo, hi := tail[0].Low, tail[0].High
	for _, b := range tail[1:] {
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	return model.Def(lo), model.Def(hi)
}

// prevHigh returns the max high over the lookback bars preceding the last
// bar. The last bar is excluded so a fresh breakout can be detected against
// the level it broke.
func prevHigh(bars []model.Bar, lookback int) model.Value {
	if lookback < 1 || len(bars) < lookback+1 {
		return model.Undef()
	}
	tail := bars[len(bars)-1-lookback : len(bars)-1]
	hi := tail[0].High
	for _, b := range tail[1:] {
		if b.High > hi {
			hi = b.High
		}
	}
	return model.Def(hi)
}

// consolidation reports whether price is holding a tight range near recent
// highs: trailing range under 3% of the low with the close in the upper 30%
// of that range.
func consolidation(bars []model.Bar, window int) (bool, model.Value) {
	if window < 1 || len(bars) < window {
		return false, model.Undef()
	}
	tail := bars[len(bars)-window:]
	lo, hi := tail[0].Low, tail[0].High
	for _, b := range tail[1:] {
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	if lo <= 0 || hi <= lo {
		return false, model.Undef()
	}
	rangePct := (hi - lo) / lo
	pos := (bars[len(bars)-1].Close - lo) / (hi - lo)
	return rangePct < 0.03 && pos > 0.7, model.Def(rangePct)
}

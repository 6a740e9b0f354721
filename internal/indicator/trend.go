package indicator

import "scanner-systemv1/internal/model"

// emaSeries computes an exponential moving average over vals, seeded with the
// SMA of the first period values. The returned slice is aligned to vals;
// entries before index period-1 are not meaningful. ok is false when vals is
// shorter than period.
func emaSeries(vals []float64, period int) (out []float64, ok bool) {
	if period < 1 || len(vals) < period {
		return nil, false
	}
	out = make([]float64, len(vals))
	mult := 2.0 / float64(period+1)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += vals[i]
	}
	out[period-1] = sum / float64(period)

	for i := period; i < len(vals); i++ {
		out[i] = vals[i]*mult + out[i-1]*(1-mult)
	}
	return out, true
}

// lastEMA returns the EMA at the last bar, or undefined when the series is
// shorter than the period.
func lastEMA(vals []float64, period int) model.Value {
	series, ok := emaSeries(vals, period)
	if !ok {
		return model.Undef()
	}
	return model.Def(series[len(series)-1])
}

// rsiLastPrev computes Wilder RSI at the last and next-to-last bars.
// The first RSI value uses an SMA seed over the initial period deltas,
// subsequent values Wilder's smoothing. prev is undefined when only one RSI
// value exists.
func rsiLastPrev(vals []float64, period int) (last, prev model.Value) {
	if period < 1 || len(vals) < period+1 {
		return model.Undef(), model.Undef()
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := vals[i] - vals[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	rsi := rsiFrom(avgGain, avgLoss)
	prevRSI, prevDefined := 0.0, false

	p := float64(period)
	for i := period + 1; i < len(vals); i++ {
		d := vals[i] - vals[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		prevRSI, prevDefined = rsi, true
		rsi = rsiFrom(avgGain, avgLoss)
	}

	last = model.Def(rsi)
	if prevDefined {
		prev = model.Def(prevRSI)
	} else {
		prev = model.Undef()
	}
	return last, prev
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// macdLastPrev computes MACD(12,26,9): the MACD line and its signal line at
// the last two bars. All four values are undefined until the signal EMA has
// warmed up.
func macdLastPrev(vals []float64) (macd, signal, prevMACD, prevSignal model.Value) {
	const (
		fastP   = 12
		slowP   = 26
		signalP = 9
	)
	undef := model.Undef()
	fast, okF := emaSeries(vals, fastP)
	slow, okS := emaSeries(vals, slowP)
	if !okF || !okS {
		return undef, undef, undef, undef
	}

	// MACD line is meaningful from the slow EMA's first valid index.
	line := make([]float64, 0, len(vals)-slowP+1)
	for i := slowP - 1; i < len(vals); i++ {
		line = append(line, fast[i]-slow[i])
	}

	sig, okSig := emaSeries(line, signalP)
	if !okSig {
		return undef, undef, undef, undef
	}

	last := len(line) - 1
	macd = model.Def(line[last])
	signal = model.Def(sig[last])
	if last >= signalP { // one full bar after the signal seed
		prevMACD = model.Def(line[last-1])
		prevSignal = model.Def(sig[last-1])
	} else {
		prevMACD, prevSignal = undef, undef
	}
	return macd, signal, prevMACD, prevSignal
}

// trendSlope returns the least-squares slope of the trailing window closes.
// Sign alone determines uptrend/downtrend.
func trendSlope(vals []float64, window int) model.Value {
	if window < 2 || len(vals) < window {
		return model.Undef()
	}
	tail := vals[len(vals)-window:]

	// x = 0..window-1; standard closed-form simple regression.
	n := float64(window)
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range tail {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return model.Undef()
	}
	return model.Def((n*sumXY - sumX*sumY) / den)
}

package indicator

import (
	"math"

	"scanner-systemv1/internal/model"
)

// volumeZScore returns the z-score of the last bar's volume against the mean
// and sample standard deviation of the trailing window. Undefined when the
// window exceeds the series or the deviation is zero.
func volumeZScore(bars []model.Bar, window int) model.Value {
	if window < 2 || len(bars) < window {
		return model.Undef()
	}
	tail := bars[len(bars)-window:]

	mean := 0.0
	for _, b := range tail {
		mean += float64(b.Volume)
	}
	mean /= float64(window)

	variance := 0.0
	for _, b := range tail {
		d := float64(b.Volume) - mean
		variance += d * d
	}
	variance /= float64(window - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return model.Undef()
	}
	return model.Def((float64(bars[len(bars)-1].Volume) - mean) / std)
}

// volumeTrend returns the ratio of the short-window mean volume to the
// long-window mean volume. Values above 1 indicate rising participation.
func volumeTrend(bars []model.Bar, short, long int) model.Value {
	if short < 1 || long < 1 || short >= long || len(bars) < long {
		return model.Undef()
	}
	shortMean := meanVolume(bars[len(bars)-short:])
	longMean := meanVolume(bars[len(bars)-long:])
	if longMean == 0 {
		return model.Undef()
	}
	return model.Def(shortMean / longMean)
}

func meanVolume(bars []model.Bar) float64 {
	sum := 0.0
	for _, b := range bars {
		sum += float64(b.Volume)
	}
	return sum / float64(len(bars))
}

// relStrength returns the return differential of the symbol vs the benchmark
// over the lookback. Undefined when either series is too short.
func relStrength(symCloses, benchCloses []float64, lookback int) model.Value {
	if lookback < 1 || len(symCloses) < lookback+1 || len(benchCloses) < lookback+1 {
		return model.Undef()
	}
	symRet, ok1 := pctChange(symCloses, lookback)
	benchRet, ok2 := pctChange(benchCloses, lookback)
	if !ok1 || !ok2 {
		return model.Undef()
	}
	return model.Def(symRet - benchRet)
}

func pctChange(vals []float64, lookback int) (float64, bool) {
	last := vals[len(vals)-1]
	base := vals[len(vals)-1-lookback]
	if base == 0 {
		return 0, false
	}
	return last/base - 1, true
}

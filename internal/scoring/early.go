package scoring

import "scanner-systemv1/internal/model"

// EarlyDetection scores pre-breakout accumulation. It rewards momentum that
// is turning rather than momentum that has already run: a MACD cross while
// still below zero, price pressing against the trailing high without having
// cleared it, and volume building inside the accumulation band.
type EarlyDetection struct{}

func (EarlyDetection) Mode() model.Mode { return model.ModeEarly }

func (EarlyDetection) MaxScore() int { return 13 }

func (EarlyDetection) Score(snap *model.Snapshot, p Params) (model.ScoreResult, bool) {
	filters := []model.FilterResult{
		macdCrossNegative(snap),
		approachingBreakout(snap, p.ApproachPct),
		volumeAccumulation(snap, p.AccumLowZ, p.AccumHighZ),
		rsiBullishZone(snap, p.RSIBullLow, p.RSIBullHigh),
		consolidating(snap),
		adxRisingForming(snap, p.ADXFormingLow, p.ADXFormingHigh),
		breakout(snap, p.BreakoutMarginPct),
		aboveEMA20(snap),
		relStrengthPositive(snap),
		bullishPattern(snap),
	}
	return finish(snap.Symbol, model.ModeEarly, EarlyDetection{}.MaxScore(), p.Threshold, filters)
}

// macdCrossNegative: the MACD line crossed above its signal line on the last
// bar while both were still below zero. Crosses in negative territory lead
// price turns; crosses above zero mostly confirm moves already underway.
func macdCrossNegative(s *model.Snapshot) model.FilterResult {
	defined := s.MACD.Defined && s.MACDSignal.Defined && s.PrevMACD.Defined && s.PrevMACDSignal.Defined
	passed := defined &&
		s.PrevMACD.V <= s.PrevMACDSignal.V &&
		s.MACD.V > s.MACDSignal.V &&
		s.MACD.V < 0
	return filter("macd_cross_negative", 3, defined, passed)
}

// approachingBreakout: the close sits just under the trailing high, within
// approachPct of it but not through it.
func approachingBreakout(s *model.Snapshot, approachPct float64) model.FilterResult {
	defined := s.PrevHigh.Defined && s.PrevHigh.V > 0
	var passed bool
	if defined {
		gap := (s.PrevHigh.V - s.LastClose) / s.PrevHigh.V
		passed = gap > 0 && gap < approachPct
	}
	return filter("approaching_breakout", 3, defined, passed)
}

// volumeAccumulation: volume z-score inside the quiet accumulation band,
// elevated but short of a spike.
func volumeAccumulation(s *model.Snapshot, lo, hi float64) model.FilterResult {
	defined := s.VolumeZ.Defined
	passed := defined && s.VolumeZ.V >= lo && s.VolumeZ.V <= hi
	return filter("volume_accumulation", 2, defined, passed)
}

func rsiBullishZone(s *model.Snapshot, lo, hi float64) model.FilterResult {
	defined := s.RSI.Defined
	passed := defined && s.RSI.V >= lo && s.RSI.V <= hi
	return filter("rsi_bullish_zone", 2, defined, passed)
}

// consolidating: tight range with the close holding the upper part of it.
func consolidating(s *model.Snapshot) model.FilterResult {
	defined := s.ConsolidationRange.Defined
	return filter("consolidating", 2, defined, s.Consolidating)
}

// adxRisingForming: trend strength inside the forming band and increasing.
// An ADX already above the band means the trend is established, which is the
// confirmation policy's territory.
func adxRisingForming(s *model.Snapshot, lo, hi float64) model.FilterResult {
	defined := s.ADX.Defined && s.PrevADX.Defined
	passed := defined &&
		s.ADX.V > lo && s.ADX.V < hi &&
		s.ADX.V > s.PrevADX.V
	return filter("adx_rising_forming", 2, defined, passed)
}

// breakout: close cleared the trailing high by at least marginPct percent.
// Shared with the confirmation policy.
func breakout(s *model.Snapshot, marginPct float64) model.FilterResult {
	defined := s.PrevHigh.Defined && s.PrevHigh.V > 0
	passed := defined && s.LastClose > s.PrevHigh.V*(1+marginPct/100)
	return filter("breakout", 2, defined, passed)
}

func aboveEMA20(s *model.Snapshot) model.FilterResult {
	defined := s.EMA20.Defined
	passed := defined && s.LastClose > s.EMA20.V
	return filter("above_ema20", 1, defined, passed)
}

func relStrengthPositive(s *model.Snapshot) model.FilterResult {
	defined := s.RelStrength.Defined
	passed := defined && s.RelStrength.V > 0
	return filter("rel_strength", 1, defined, passed)
}

func bullishPattern(s *model.Snapshot) model.FilterResult {
	// Pattern detection needs no warm-up beyond the bars themselves, so the
	// flags are always defined once a snapshot exists.
	return filter("bullish_pattern", 1, true, s.Patterns.AnyBullish())
}

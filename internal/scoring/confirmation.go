package scoring

import "scanner-systemv1/internal/model"

// Confirmation scores moves that have already proven themselves: a cleared
// breakout, a volume spike, RSI through the overbought line. Fewer but
// stronger filters than early detection, hence the lower cap.
type Confirmation struct{}

func (Confirmation) Mode() model.Mode { return model.ModeConfirmation }

func (Confirmation) MaxScore() int { return 7 }

func (Confirmation) Score(snap *model.Snapshot, p Params) (model.ScoreResult, bool) {
	filters := []model.FilterResult{
		volumeSpike(snap, p.VolSpikeZ),
		breakout(snap, p.BreakoutMarginPct),
		rsiOverbought(snap, p.RSIOverbought),
		aboveEMA20(snap),
		relStrengthPositive(snap),
		bullishPattern(snap),
	}
	return finish(snap.Symbol, model.ModeConfirmation, Confirmation{}.MaxScore(), p.Threshold, filters)
}

func volumeSpike(s *model.Snapshot, z float64) model.FilterResult {
	defined := s.VolumeZ.Defined
	passed := defined && s.VolumeZ.V >= z
	return filter("volume_spike", 2, defined, passed)
}

func rsiOverbought(s *model.Snapshot, floor float64) model.FilterResult {
	defined := s.RSI.Defined
	passed := defined && s.RSI.V > floor
	return filter("rsi_overbought", 2, defined, passed)
}

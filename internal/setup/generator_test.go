package setup

import (
	"errors"
	"math"
	"testing"
	"time"

	"scanner-systemv1/internal/model"
)

func snapWith(close float64, atr model.Value) *model.Snapshot {
	return &model.Snapshot{Symbol: "RELIANCE", LastClose: close, ATR: atr}
}

func assertClose(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.0001 {
		t.Errorf("%s: got %.4f, want %.4f", label, got, want)
	}
}

func TestGenerate_ATRModel(t *testing.T) {
	// entry=100, ATR=10, mult=2, rr=2:
	// stop = 100 - 20 = 80, target = 100 + 40 = 140
	p := Params{Model: model.RiskATR, ATRMult: 2, RewardMult: 2}
	ts, err := Generate(snapWith(100, model.Def(10)), p, time.Now())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	assertClose(t, "entry", ts.Entry, 100)
	assertClose(t, "stop", ts.Stop, 80)
	assertClose(t, "target", ts.Target, 140)
	if ts.Direction != model.DirectionLong {
		t.Errorf("direction = %q, want LONG", ts.Direction)
	}
}

func TestGenerate_ATRModelRequiresATR(t *testing.T) {
	p := Params{Model: model.RiskATR, ATRMult: 2, RewardMult: 2}
	_, err := Generate(snapWith(100, model.Undef()), p, time.Now())
	if !errors.Is(err, ErrMissingVolatility) {
		t.Errorf("err = %v, want ErrMissingVolatility", err)
	}
}

func TestGenerate_PercentModel(t *testing.T) {
	// entry=200, stopPct=2%, rr=2: stop=196, target=208
	p := Params{Model: model.RiskPercent, StopPct: 0.02, RewardMult: 2}
	ts, err := Generate(snapWith(200, model.Undef()), p, time.Now())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	assertClose(t, "stop", ts.Stop, 196)
	assertClose(t, "target", ts.Target, 208)
}

func TestGenerate_PointsModel(t *testing.T) {
	// entry=500, stop 5 points away, rr=3: stop=495, target=515
	p := Params{Model: model.RiskPoints, StopPoints: 5, RewardMult: 3}
	ts, err := Generate(snapWith(500, model.Undef()), p, time.Now())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	assertClose(t, "stop", ts.Stop, 495)
	assertClose(t, "target", ts.Target, 515)
}

func TestGenerate_OrderingAlwaysHolds(t *testing.T) {
	p := DefaultParams()
	ts, err := Generate(snapWith(842.35, model.Def(7.2)), p, time.Now())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := ts.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if !(ts.Stop < ts.Entry && ts.Entry < ts.Target) {
		t.Errorf("ordering violated: stop=%.2f entry=%.2f target=%.2f", ts.Stop, ts.Entry, ts.Target)
	}
}

func TestGenerate_RejectsDegenerateRisk(t *testing.T) {
	// A stop distance of zero can never produce stop < entry.
	p := Params{Model: model.RiskPoints, StopPoints: 0, RewardMult: 2}
	if _, err := Generate(snapWith(100, model.Undef()), p, time.Now()); err == nil {
		t.Error("zero-point stop: err = nil, want error")
	}

	// A stop wider than the entry would cross zero.
	p = Params{Model: model.RiskPoints, StopPoints: 150, RewardMult: 2}
	if _, err := Generate(snapWith(100, model.Undef()), p, time.Now()); err == nil {
		t.Error("stop beyond zero: err = nil, want error")
	}
}

func TestGenerate_UnknownModel(t *testing.T) {
	p := Params{Model: "martingale", RewardMult: 2}
	if _, err := Generate(snapWith(100, model.Undef()), p, time.Now()); err == nil {
		t.Error("unknown model: err = nil, want error")
	}
}

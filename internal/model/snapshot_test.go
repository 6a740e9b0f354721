package model

import "testing"

func TestNearLevel(t *testing.T) {
	cases := []struct {
		name  string
		price float64
		level Value
		pct   float64
		want  bool
	}{
		{"just below", 129.5, Def(130), 0.01, true},
		{"just above", 130.5, Def(130), 0.01, true},
		{"at boundary", 101, Def(100), 0.01, true},
		{"beyond boundary", 101.5, Def(100), 0.01, false},
		{"far away", 90, Def(130), 0.01, false},
		{"undefined level", 100, Undef(), 0.01, false},
		{"zero level", 100, Def(0), 0.01, false},
	}
	for _, tc := range cases {
		if got := NearLevel(tc.price, tc.level, tc.pct); got != tc.want {
			t.Errorf("%s: NearLevel(%.2f, %+v, %.2f) = %v, want %v",
				tc.name, tc.price, tc.level, tc.pct, got, tc.want)
		}
	}
}

func TestPatternFlags_AnyBullish(t *testing.T) {
	if (PatternFlags{DoubleTop: true}).AnyBullish() {
		t.Error("double top counted as bullish")
	}
	if !(PatternFlags{MorningStar: true}).AnyBullish() {
		t.Error("morning star not counted as bullish")
	}
}

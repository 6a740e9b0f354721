package model

import (
	"errors"
	"fmt"
	"time"
)

// Direction is the trade direction. The scanner is long-only.
type Direction string

const DirectionLong Direction = "LONG"

// RiskModel selects how stop and target are derived from the entry price.
type RiskModel string

const (
	RiskATR     RiskModel = "atr"     // stop = entry - ATR*mult, target = entry + ATR*mult*rr
	RiskPercent RiskModel = "percent" // stop = entry*(1-stopPct), target = entry*(1+targetPct)
	RiskPoints  RiskModel = "points"  // stop = entry - stopPts, target = entry + targetPts
)

// Valid reports whether the risk model is one of the supported values.
func (m RiskModel) Valid() bool {
	return m == RiskATR || m == RiskPercent || m == RiskPoints
}

// TradeSetup is a risk-managed entry/stop/target derived from a qualifying
// snapshot. Immutable once created: a later scan cycle may regenerate a setup
// for the same symbol, which never mutates an already-promoted watchlist
// entry.
type TradeSetup struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Entry       float64   `json:"entry"`
	Stop        float64   `json:"stop"`
	Target      float64   `json:"target"`
	Model       RiskModel `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Validate enforces the price ordering every long setup must satisfy.
func (s TradeSetup) Validate() error {
	if s.Symbol == "" {
		return errors.New("setup: empty symbol")
	}
	if !(s.Stop < s.Entry && s.Entry < s.Target) {
		return fmt.Errorf("setup: %s: want stop < entry < target, got %.4f / %.4f / %.4f",
			s.Symbol, s.Stop, s.Entry, s.Target)
	}
	return nil
}

// Package model defines the core data types shared across the scanner:
// price bars, indicator snapshots, score results, trade setups, watchlist
// entries, and paper trades.
package model

import "time"

// Interval is a supported bar interval.
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
)

// Valid reports whether the interval is one of the supported values.
func (i Interval) Valid() bool {
	switch i {
	case Interval5m, Interval15m, Interval30m, Interval1h:
		return true
	}
	return false
}

// Duration returns the bar interval as a time.Duration.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	}
	return 15 * time.Minute
}

// Bar is one OHLCV sample for a symbol at a fixed interval.
// Immutable once fetched from the data provider.
type Bar struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bucket start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

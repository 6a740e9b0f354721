package model

import "time"

// WatchState is the lifecycle state of a watchlist entry.
// Transitions are monotone forward only:
//
//	Pending → Active → {TargetHit, StopHit} → Removed
//
// plus a direct Active/Pending → Removed edge on manual removal.
type WatchState string

const (
	WatchPending   WatchState = "Pending"
	WatchActive    WatchState = "Active"
	WatchTargetHit WatchState = "TargetHit"
	WatchStopHit   WatchState = "StopHit"
	WatchRemoved   WatchState = "Removed"
)

// Terminal reports whether the state admits no further price-driven
// transitions. Re-evaluating a terminal entry is a no-op.
func (s WatchState) Terminal() bool {
	return s == WatchTargetHit || s == WatchStopHit || s == WatchRemoved
}

// WatchlistEntry is a tracked trade setup awaiting stop/target resolution
// against live price. Owned exclusively by the watchlist monitor.
type WatchlistEntry struct {
	Symbol        string     `json:"symbol"`
	Entry         float64    `json:"entry"`
	Stop          float64    `json:"stop"`
	Target        float64    `json:"target"`
	State         WatchState `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	LastCheckedAt time.Time  `json:"last_checked_at"`
}

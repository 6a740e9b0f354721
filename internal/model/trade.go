package model

import "time"

// TradeStatus is the lifecycle status of a paper trade.
type TradeStatus string

const (
	TradeOpen         TradeStatus = "OPEN"
	TradeClosedWin    TradeStatus = "CLOSED_WIN"
	TradeClosedLoss   TradeStatus = "CLOSED_LOSS"
	TradeClosedManual TradeStatus = "CLOSED_MANUAL"
)

// Closed reports whether the trade has been settled.
func (s TradeStatus) Closed() bool { return s != TradeOpen }

// PaperTrade is a simulated position. Entry price is fixed at creation and
// never revised. Exactly one of target-hit, stop-hit, or manual close settles
// a trade; realized P/L is computed once at closure and immutable thereafter.
type PaperTrade struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Direction   Direction   `json:"direction"`
	Entry       float64     `json:"entry"`
	Qty         int64       `json:"qty"`
	Stop        float64     `json:"stop"`
	Target      float64     `json:"target"`
	Status      TradeStatus `json:"status"`
	ExitPrice   float64     `json:"exit_price"`
	RealizedPnL float64     `json:"realized_pnl"`
	OpenedAt    time.Time   `json:"opened_at"`
	ClosedAt    time.Time   `json:"closed_at"`
}

// UnrealizedPnL is a read-only projection of an open long trade against the
// latest price. It is never persisted. Returns 0 for closed trades.
func (t *PaperTrade) UnrealizedPnL(last float64) float64 {
	if t.Status.Closed() {
		return 0
	}
	return (last - t.Entry) * float64(t.Qty)
}

// Package notification delivers scanner events to external channels
// (Telegram, generic webhooks) and to the log.
package notification

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// EventKind classifies a scanner alert.
type EventKind string

const (
	EventQualified EventKind = "QUALIFIED"  // symbol cleared the score threshold
	EventTargetHit EventKind = "TARGET_HIT" // watchlist entry reached its target
	EventStopHit   EventKind = "STOP_HIT"   // watchlist entry broke its stop
	EventRemoved   EventKind = "REMOVED"    // entry removed before resolution
)

// Event is one alert payload. Score and Reasons are only set for
// qualification events; Price is the triggering price for watchlist events.
type Event struct {
	Kind    EventKind `json:"kind"`
	Symbol  string    `json:"symbol"`
	Price   float64   `json:"price,omitempty"`
	Score   int       `json:"score,omitempty"`
	Reasons []string  `json:"reasons,omitempty"`
	Details string    `json:"details,omitempty"`
	TS      time.Time `json:"ts"`
}

// Title renders the short alert headline.
func (e Event) Title() string {
	return fmt.Sprintf("%s %s", e.Symbol, e.Kind)
}

// Body renders the alert text.
func (e Event) Body() string {
	var b strings.Builder
	if e.Price > 0 {
		fmt.Fprintf(&b, "price %.2f", e.Price)
	}
	if e.Score > 0 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "score %d", e.Score)
	}
	if len(e.Reasons) > 0 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strings.Join(e.Reasons, " + "))
	}
	if e.Details != "" {
		if b.Len() > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(e.Details)
	}
	return b.String()
}

// Notifier is the interface for all delivery backends.
type Notifier interface {
	// Send delivers one event. Returns error if delivery fails.
	Send(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the process log (useful for development and
// as the always-on fallback channel).
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) Send(ctx context.Context, ev Event) error {
	log.Printf("[notify] [%s] %s: %s", ev.Kind, ev.Symbol, ev.Body())
	return nil
}

// Multi fans one event out to every backend. Delivery is best effort: a
// failing channel is logged and skipped, so one dead channel never blocks
// the others and never propagates into the scan or watchlist cycle.
type Multi struct {
	backends []Notifier
}

func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, ev Event) error {
	for _, b := range m.backends {
		if err := b.Send(ctx, ev); err != nil {
			log.Printf("[notify] delivery failed (%T): %v", b, err)
		}
	}
	return nil
}

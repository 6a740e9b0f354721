// Package watchlist tracks promoted trade setups against live price and
// drives each entry through its lifecycle exactly once:
//
//	Pending → Active → {TargetHit, StopHit} → Removed
//
// with manual removal overriding any same-cycle price transition. Resolved
// entries stay in the list for inspection until removed; Removed is final.
package watchlist

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"scanner-systemv1/internal/model"
	"scanner-systemv1/internal/notification"
)

// PriceSource supplies the latest traded price for a symbol.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Transition records one state change, delivered to the registered callback
// exactly once per entry per terminal edge.
type Transition struct {
	Symbol string
	From   model.WatchState
	To     model.WatchState
	Price  float64 // triggering price; zero for removals
	At     time.Time
}

type entry struct {
	model.WatchlistEntry
	pendingRemoval bool
}

// Monitor owns the watchlist. All mutation goes through its methods; the
// internal map is guarded by a single RWMutex (one writer: the cycle loop).
type Monitor struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	prices   PriceSource
	notifier notification.Notifier

	onTransition func(Transition)
	onPriceFail  func()
	now          func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithTransitionHook registers a callback invoked for every state change,
// after the notifier. Used to settle paper trades. Alerts and hooks are
// dispatched after the evaluation pass releases the monitor's lock, so the
// hook may call back into the Monitor.
func WithTransitionHook(fn func(Transition)) Option {
	return func(m *Monitor) { m.onTransition = fn }
}

// WithPriceFailureHook registers a callback invoked once per failed price
// lookup. Used to count fetch failures.
func WithPriceFailureHook(fn func()) Option {
	return func(m *Monitor) { m.onPriceFail = fn }
}

func NewMonitor(prices PriceSource, notifier notification.Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		entries:  make(map[string]*entry),
		prices:   prices,
		notifier: notifier,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Add promotes a setup onto the watchlist in Pending state. A symbol already
// tracked in a non-terminal state is left untouched: the first promotion
// wins and later scans never revise live stop/target levels. Re-adding a
// symbol whose previous entry is terminal starts a fresh lifecycle.
func (m *Monitor) Add(ts model.TradeSetup) error {
	if err := ts.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[ts.Symbol]; ok && !e.State.Terminal() {
		return nil
	}
	m.entries[ts.Symbol] = &entry{
		WatchlistEntry: model.WatchlistEntry{
			Symbol:    ts.Symbol,
			Entry:     ts.Entry,
			Stop:      ts.Stop,
			Target:    ts.Target,
			State:     model.WatchPending,
			CreatedAt: m.now(),
		},
	}
	log.Printf("[watchlist] added %s entry=%.2f stop=%.2f target=%.2f", ts.Symbol, ts.Entry, ts.Stop, ts.Target)
	return nil
}

// Remove marks an entry for removal. The mark is applied at the start of the
// next evaluation cycle, before any price check, so removal always wins over
// a stop or target that would fire in the same cycle. Resolved
// (TargetHit/StopHit) entries are removable too; only Removed itself and
// unknown symbols are no-ops.
func (m *Monitor) Remove(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[symbol]; ok && e.State != model.WatchRemoved {
		e.pendingRemoval = true
	}
}

// Get returns a copy of the entry for a symbol.
func (m *Monitor) Get(symbol string) (model.WatchlistEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[symbol]
	if !ok {
		return model.WatchlistEntry{}, false
	}
	return e.WatchlistEntry, true
}

// Entries returns a snapshot of all entries, sorted by symbol.
func (m *Monitor) Entries() []model.WatchlistEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.WatchlistEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.WatchlistEntry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// EvaluateCycle runs one monitoring pass over every entry. Order per entry:
// pending removals first, then price fetch, then stop before target. A price
// fetch failure skips just that symbol; its state is untouched and the rest
// of the list still evaluates. Respects ctx between symbols.
//
// State changes are applied under the lock; alerts and transition hooks are
// dispatched afterwards so a slow notification channel never stalls
// Add/Get/Entries or the scan path.
func (m *Monitor) EvaluateCycle(ctx context.Context) error {
	fired, err := m.evaluate(ctx)
	for _, tr := range fired {
		m.dispatch(ctx, tr)
	}
	return err
}

func (m *Monitor) evaluate(ctx context.Context) ([]Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Deterministic order keeps logs and tests stable.
	symbols := make([]string, 0, len(m.entries))
	for s := range m.entries {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var fired []Transition
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		e := m.entries[sym]

		if e.pendingRemoval {
			fired = append(fired, m.transition(e, model.WatchRemoved, 0))
			continue
		}
		if e.State.Terminal() {
			continue
		}

		price, err := m.prices.LatestPrice(ctx, sym)
		if err != nil {
			log.Printf("[watchlist] %s: price fetch failed: %v", sym, err)
			if m.onPriceFail != nil {
				m.onPriceFail()
			}
			continue
		}
		e.LastCheckedAt = m.now()

		if e.State == model.WatchPending {
			e.State = model.WatchActive
		}

		// Stop has precedence when one price satisfies both levels.
		switch {
		case price <= e.Stop:
			fired = append(fired, m.transition(e, model.WatchStopHit, price))
		case price >= e.Target:
			fired = append(fired, m.transition(e, model.WatchTargetHit, price))
		}
	}
	return fired, nil
}

// transition applies a terminal edge. Caller holds m.mu; delivery happens
// later via dispatch.
func (m *Monitor) transition(e *entry, to model.WatchState, price float64) Transition {
	tr := Transition{
		Symbol: e.Symbol,
		From:   e.State,
		To:     to,
		Price:  price,
		At:     m.now(),
	}
	e.State = to
	e.pendingRemoval = false
	log.Printf("[watchlist] %s: %s -> %s (price=%.2f)", tr.Symbol, tr.From, tr.To, price)
	return tr
}

// dispatch alerts once per transition and invokes the hook. Runs outside
// the monitor's lock.
func (m *Monitor) dispatch(ctx context.Context, tr Transition) {
	if m.notifier != nil {
		ev := notification.Event{Symbol: tr.Symbol, Price: tr.Price, TS: tr.At}
		switch tr.To {
		case model.WatchTargetHit:
			ev.Kind = notification.EventTargetHit
		case model.WatchStopHit:
			ev.Kind = notification.EventStopHit
		case model.WatchRemoved:
			ev.Kind = notification.EventRemoved
		}
		if err := m.notifier.Send(ctx, ev); err != nil {
			log.Printf("[watchlist] %s: alert delivery failed: %v", tr.Symbol, err)
		}
	}
	if m.onTransition != nil {
		m.onTransition(tr)
	}
}

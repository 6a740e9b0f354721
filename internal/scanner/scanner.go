// Package scanner orchestrates one scan cycle: fetch bars, compute
// indicator snapshots, score each symbol under the configured policy, and
// promote qualifiers to the watchlist as risk-managed trade setups.
//
// One slow or broken symbol never takes down a cycle: per-symbol errors are
// counted, logged, and skipped.
package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"scanner-systemv1/internal/indicator"
	"scanner-systemv1/internal/metrics"
	"scanner-systemv1/internal/model"
	"scanner-systemv1/internal/notification"
	"scanner-systemv1/internal/scoring"
	"scanner-systemv1/internal/setup"
)

// BarProvider supplies historical bars for a symbol, oldest first.
type BarProvider interface {
	Bars(ctx context.Context, symbol string, interval model.Interval, n int) ([]model.Bar, error)
}

// ResultSink receives the ranked results of each completed cycle.
// Satisfied by the Redis quote store.
type ResultSink interface {
	SaveScan(ctx context.Context, results []model.ScoreResult) error
}

// Watchlist receives promoted setups. Satisfied by the watchlist monitor.
type Watchlist interface {
	Add(ts model.TradeSetup) error
}

// Config holds the per-scan parameters.
type Config struct {
	Universe  []string       // symbols to scan
	Benchmark string         // index/benchmark symbol for relative strength
	Interval  model.Interval // bar timeframe
	BarCount  int            // bars fetched per symbol
	Mode      model.Mode     // scoring policy

	Indicator indicator.Params
	Score     scoring.Params
	Setup     setup.Params
}

// Scanner runs scan cycles over a fixed universe.
type Scanner struct {
	cfg    Config
	policy scoring.Policy
	bars   BarProvider

	watch    Watchlist
	notifier notification.Notifier
	sink     ResultSink
	m        *metrics.Metrics
	now      func() time.Time

	// lastSnapshots carries each symbol's snapshot from scoring to setup
	// generation within a cycle.
	lastSnapshots sync.Map // symbol -> *model.Snapshot
}

func (s *Scanner) snapshotFor(symbol string) (*model.Snapshot, bool) {
	v, ok := s.lastSnapshots.Load(symbol)
	if !ok {
		return nil, false
	}
	return v.(*model.Snapshot), true
}

// Option configures optional scanner collaborators.
type Option func(*Scanner)

// WithWatchlist enables auto-promotion of qualifiers.
func WithWatchlist(w Watchlist) Option {
	return func(s *Scanner) { s.watch = w }
}

// WithNotifier enables qualification alerts.
func WithNotifier(n notification.Notifier) Option {
	return func(s *Scanner) { s.notifier = n }
}

// WithSink publishes each cycle's ranked results.
func WithSink(sink ResultSink) Option {
	return func(s *Scanner) { s.sink = sink }
}

// WithMetrics wires Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.m = m }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

func New(cfg Config, bars BarProvider, opts ...Option) (*Scanner, error) {
	policy, err := scoring.ForMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if !cfg.Interval.Valid() {
		return nil, fmt.Errorf("scanner: invalid interval %q", cfg.Interval)
	}
	if len(cfg.Universe) == 0 {
		return nil, fmt.Errorf("scanner: empty universe")
	}
	if cfg.BarCount < 2 {
		return nil, fmt.Errorf("scanner: bar count %d too small", cfg.BarCount)
	}

	s := &Scanner{
		cfg:    cfg,
		policy: policy,
		bars:   bars,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// RunCycle scans the whole universe once and returns the ranked results.
// The benchmark series is fetched once and shared across symbols. On context
// cancellation the results accumulated so far are returned alongside the
// context error.
func (s *Scanner) RunCycle(ctx context.Context) ([]model.ScoreResult, error) {
	start := s.now()
	if s.m != nil {
		s.m.ScanCycles.Inc()
	}
	log.Printf("[scanner] cycle start: %d symbols, mode=%s, interval=%s",
		len(s.cfg.Universe), s.cfg.Mode, s.cfg.Interval)

	benchmark := s.fetchBenchmark(ctx)

	var results []model.ScoreResult
	for _, sym := range s.cfg.Universe {
		if err := ctx.Err(); err != nil {
			scoring.Rank(results)
			return results, err
		}

		res, ok, err := s.ScanSymbol(ctx, sym, benchmark)
		if s.m != nil {
			s.m.SymbolsScanned.Inc()
		}
		if err != nil {
			if s.m != nil {
				s.m.SymbolErrors.Inc()
			}
			log.Printf("[scanner] %s: skipped: %v", sym, err)
			continue
		}
		if !ok {
			// Every filter undefined, nothing to report for this symbol.
			continue
		}
		if s.m != nil {
			s.m.ScoreDistribution.Observe(float64(res.Total))
		}
		results = append(results, res)
	}

	scoring.Rank(results)

	for _, res := range results {
		if res.Qualifies {
			s.promote(ctx, res)
		}
	}

	if s.sink != nil {
		if err := s.sink.SaveScan(ctx, results); err != nil {
			log.Printf("[scanner] publish results: %v", err)
		}
	}
	if s.m != nil {
		s.m.ScanCycleDur.Observe(s.now().Sub(start).Seconds())
	}
	log.Printf("[scanner] cycle done in %s: %d scored, %d qualified",
		s.now().Sub(start).Round(time.Millisecond), len(results), countQualified(results))
	return results, nil
}

// ScanSymbol evaluates one symbol against a pre-fetched benchmark series.
// ok is false when the symbol produced no scoreable data.
func (s *Scanner) ScanSymbol(ctx context.Context, symbol string, benchmark []model.Bar) (model.ScoreResult, bool, error) {
	bars, err := s.fetchBars(ctx, symbol)
	if err != nil {
		return model.ScoreResult{}, false, fmt.Errorf("fetch bars: %w", err)
	}

	snap, err := indicator.Compute(symbol, bars, benchmark, s.cfg.Indicator)
	if err != nil {
		return model.ScoreResult{}, false, fmt.Errorf("compute: %w", err)
	}

	res, ok := s.policy.Score(snap, s.cfg.Score)
	if !ok {
		return model.ScoreResult{}, false, nil
	}
	// Scoring does not need the snapshot after this point, but setup
	// generation does; stash the values it reads.
	s.lastSnapshots.Store(symbol, snap)
	return res, true, nil
}

// promote alerts on a qualifier and, when a watchlist is wired, generates
// its setup and adds it. A setup failure (e.g. undefined ATR) is a warning:
// the qualification alert already went out and the cycle continues.
func (s *Scanner) promote(ctx context.Context, res model.ScoreResult) {
	if s.m != nil {
		s.m.Qualifiers.Inc()
	}
	snap, ok := s.snapshotFor(res.Symbol)
	if s.notifier != nil {
		ev := notification.Event{
			Kind:    notification.EventQualified,
			Symbol:  res.Symbol,
			Score:   res.Total,
			Reasons: res.Reasons(),
			TS:      s.now(),
		}
		if ok {
			ev.Details = levelContext(snap, s.cfg.Score.ApproachPct)
		}
		if err := s.notifier.Send(ctx, ev); err != nil {
			log.Printf("[scanner] %s: alert delivery failed: %v", res.Symbol, err)
		}
	}

	if s.watch == nil {
		return
	}
	if !ok {
		log.Printf("[scanner] %s: no snapshot for setup generation", res.Symbol)
		return
	}
	ts, err := setup.Generate(snap, s.cfg.Setup, s.now())
	if err != nil {
		if s.m != nil {
			s.m.SetupFailures.Inc()
		}
		log.Printf("[scanner] %s: setup generation failed: %v", res.Symbol, err)
		return
	}
	if err := s.watch.Add(ts); err != nil {
		log.Printf("[scanner] %s: watchlist add failed: %v", res.Symbol, err)
	}
}

// levelContext annotates a qualifier alert with the tracked level the close
// sits against. Resistance is checked first: qualifiers are long-biased and
// a close pressed into resistance is the detail a reader acts on.
func levelContext(snap *model.Snapshot, pct float64) string {
	switch {
	case model.NearLevel(snap.LastClose, snap.Resistance, pct):
		return "near resistance"
	case model.NearLevel(snap.LastClose, snap.Support, pct):
		return "near support"
	}
	return ""
}

func (s *Scanner) fetchBenchmark(ctx context.Context) []model.Bar {
	if s.cfg.Benchmark == "" {
		return nil
	}
	bars, err := s.fetchBars(ctx, s.cfg.Benchmark)
	if err != nil {
		// Relative strength degrades to undefined for every symbol.
		log.Printf("[scanner] benchmark %s: fetch failed, rel strength disabled this cycle: %v",
			s.cfg.Benchmark, err)
		return nil
	}
	return bars
}

func (s *Scanner) fetchBars(ctx context.Context, symbol string) ([]model.Bar, error) {
	start := s.now()
	bars, err := s.bars.Bars(ctx, symbol, s.cfg.Interval, s.cfg.BarCount)
	if s.m != nil {
		s.m.BarFetchDur.Observe(s.now().Sub(start).Seconds())
	}
	return bars, err
}

func countQualified(results []model.ScoreResult) int {
	n := 0
	for _, r := range results {
		if r.Qualifies {
			n++
		}
	}
	return n
}

// Package scheduler drives the scan and watchlist loops on cron schedules.
// Jobs are wrapped with SkipIfStillRunning: a scan cycle that outlives its
// interval suppresses the next trigger instead of stacking cycles.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"scanner-systemv1/internal/logger"
	"scanner-systemv1/internal/markethours"
)

// Job is one schedulable unit of work.
type Job func(ctx context.Context) error

// Config holds the cron specs. Specs use the standard 5-field format.
type Config struct {
	ScanSpec      string // e.g. "*/15 9-15 * * 1-5"
	WatchlistSpec string // e.g. "* 9-15 * * 1-5"

	// MarketHoursOnly gates every trigger on the NSE session so that specs
	// can stay coarse (cron has no notion of 9:15 or holidays).
	MarketHoursOnly bool

	// JobTimeout bounds each run. 0 means no bound.
	JobTimeout time.Duration
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cfg  Config
	cron *cron.Cron
	ctx  context.Context
	now  func() time.Time
}

// New builds a scheduler and registers both jobs. The returned scheduler is
// not started.
func New(ctx context.Context, cfg Config, scan, watch Job) (*Scheduler, error) {
	s := &Scheduler{
		cfg: cfg,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		ctx: ctx,
		now: time.Now,
	}

	if _, err := s.cron.AddFunc(cfg.ScanSpec, s.wrap("scan", scan)); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cfg.WatchlistSpec, s.wrap("watchlist", watch)); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins firing jobs. Non-blocking.
func (s *Scheduler) Start() {
	log.Printf("[scheduler] started: scan=%q watchlist=%q marketHoursOnly=%v",
		s.cfg.ScanSpec, s.cfg.WatchlistSpec, s.cfg.MarketHoursOnly)
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Printf("[scheduler] stopped")
}

func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		if s.cfg.MarketHoursOnly && !markethours.IsMarketOpen(s.now()) {
			return
		}
		ctx := logger.WithCycleID(s.ctx, logger.NewCycleID(name, s.now()))
		if s.cfg.JobTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
			defer cancel()
		}
		if err := job(ctx); err != nil {
			log.Printf("[scheduler] %s job: %v", name, err)
		}
	}
}

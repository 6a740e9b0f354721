package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"scanner-systemv1/internal/config"
	"scanner-systemv1/internal/indicator"
	"scanner-systemv1/internal/ledger"
	"scanner-systemv1/internal/logger"
	"scanner-systemv1/internal/metrics"
	"scanner-systemv1/internal/model"
	"scanner-systemv1/internal/notification"
	"scanner-systemv1/internal/scanner"
	"scanner-systemv1/internal/scheduler"
	"scanner-systemv1/internal/scoring"
	"scanner-systemv1/internal/setup"
	redisstore "scanner-systemv1/internal/store/redis"
	"scanner-systemv1/internal/watchlist"
	"scanner-systemv1/pkg/smartfeed"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[scanner] starting...")

	configPath := flag.String("config", "configs/scanner.yaml", "path to the YAML preset")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[scanner] config: %v", err)
	}
	logger.Init(cfg.Service, slog.LevelInfo)
	log.Printf("[scanner] universe: %d symbols, mode=%s, interval=%s",
		len(cfg.Scan.Instruments), cfg.Scan.Mode, cfg.Scan.Interval)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Paper trade ledger (SQLite) ----
	os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755)
	book, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		log.Fatalf("[scanner] ledger init failed: %v", err)
	}
	defer book.CloseDB()
	log.Println("[scanner] ledger ready")

	// ---- Redis quote store ----
	var quotes *redisstore.QuoteStore
	quotes, err = redisstore.New(redisstore.Config{
		Addr:                cfg.Redis.Addr,
		Password:            cfg.Redis.Password,
		DB:                  cfg.Redis.DB,
		QuoteTTL:            cfg.Redis.QuoteTTL(),
		BreakerMaxFailures:  cfg.Redis.BreakerMaxFailures,
		BreakerResetTimeout: cfg.Redis.BreakerResetTimeout(),
	})
	if err != nil {
		log.Printf("[scanner] WARNING: redis init failed: %v (falling back to REST quotes)", err)
		quotes = nil
		health.SetRedisConnected(false)
	} else {
		defer quotes.Close()
		health.SetRedisConnected(true)
		log.Println("[scanner] redis quote store ready")
	}

	// ---- Broker session ----
	feed := smartfeed.NewClient(smartfeed.Config{
		APIKey:     cfg.Angel.APIKey,
		ClientCode: cfg.Angel.ClientCode,
		Password:   cfg.Angel.Password,
		TOTPSecret: cfg.Angel.TOTPSecret,
	}, instruments(cfg))
	if err := feed.Login(ctx); err != nil {
		log.Fatalf("[scanner] broker login failed: %v", err)
	}
	log.Println("[scanner] broker session established")

	// ---- Notification channels ----
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
		log.Println("[scanner] telegram alerts enabled")
	}
	if cfg.Notify.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
		log.Println("[scanner] webhook alerts enabled")
	}
	notifier := &meteredNotifier{inner: notification.NewMulti(backends...), m: prom}

	// ---- Watchlist price source: quote cache, REST LTP as fallback ----
	var prices watchlist.PriceSource = ltpSource{feed}
	if quotes != nil {
		prices = fallbackPrices{primary: quotes, fallback: ltpSource{feed}}
	}

	// ---- Watchlist monitor, settling paper trades on terminal edges ----
	monitor := watchlist.NewMonitor(prices, notifier,
		watchlist.WithTransitionHook(func(tr watchlist.Transition) {
			prom.Transitions.WithLabelValues(string(tr.To)).Inc()
			settleTrade(ctx, book, prices, prom, tr)
		}),
		watchlist.WithPriceFailureHook(prom.PriceFetchFails.Inc),
	)

	// ---- Scanner ----
	var watch scanner.Watchlist
	if cfg.Scan.AutoWatchlist() {
		watch = &paperWatchlist{mon: monitor, book: book, qty: int64(cfg.Setup.Qty), m: prom}
	}
	scn, err := scanner.New(scanner.Config{
		Universe:  cfg.Scan.Symbols(),
		Benchmark: cfg.Scan.Benchmark.Symbol,
		Interval:  model.Interval(cfg.Scan.Interval),
		BarCount:  cfg.Scan.BarCount,
		Mode:      model.Mode(cfg.Scan.Mode),
		Indicator: indicatorParams(cfg),
		Score:     scoreParams(cfg),
		Setup:     setupParams(cfg),
	}, feed, scannerOptions(watch, notifier, quotes, prom)...)
	if err != nil {
		log.Fatalf("[scanner] init failed: %v", err)
	}

	// ---- Live quote stream -> quote cache ----
	if quotes != nil {
		stream := smartfeed.NewStream(feed, func(symbol string, price float64, ts time.Time) {
			if err := quotes.SetQuote(ctx, symbol, price); err != nil {
				log.Printf("[scanner] quote cache %s: %v", symbol, err)
				return
			}
			prom.QuotesIngested.Inc()
		})
		stream.OnReconnect = func() {
			prom.FeedReconnects.Inc()
			health.SetFeedConnected(false)
		}
		stream.OnConnected = func() {
			health.SetFeedConnected(true)
		}
		go func() {
			if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[scanner] quote stream stopped: %v", err)
				health.SetFeedConnected(false)
			}
		}()
	}

	// ---- Liveness checks & breaker gauge ----
	redisClient := redisClientOf(quotes)
	health.StartLivenessChecker(ctx, redisClient, book.DB(), 10*time.Second)
	if quotes != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					prom.RedisBreakerState.Set(float64(quotes.BreakerState()))
				}
			}
		}()
	}

	// ---- Cron schedules ----
	scanJob := func(ctx context.Context) error {
		_, err := scn.RunCycle(ctx)
		health.SetLastScanAt(time.Now())
		prom.WatchlistSize.Set(float64(len(monitor.Entries())))
		return err
	}
	sched, err := scheduler.New(ctx, scheduler.Config{
		ScanSpec:        cfg.Schedule.ScanSpec,
		WatchlistSpec:   cfg.Schedule.WatchlistSpec,
		MarketHoursOnly: cfg.Schedule.MarketHoursOnly(),
		JobTimeout:      cfg.Schedule.JobTimeout(),
	}, scanJob, monitor.EvaluateCycle)
	if err != nil {
		log.Fatalf("[scanner] scheduler init failed: %v", err)
	}
	sched.Start()
	log.Println("[scanner] running")

	// ---- Wait for shutdown ----
	<-sigCh
	log.Println("[scanner] shutting down...")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	log.Println("[scanner] bye")
}

// instruments flattens the preset universe plus the benchmark for the
// broker client.
func instruments(cfg *config.Config) []smartfeed.Instrument {
	out := make([]smartfeed.Instrument, 0, len(cfg.Scan.Instruments)+1)
	for _, in := range cfg.Scan.Instruments {
		out = append(out, smartfeed.Instrument{Symbol: in.Symbol, Token: in.Token, Exchange: in.Exchange})
	}
	b := cfg.Scan.Benchmark
	out = append(out, smartfeed.Instrument{Symbol: b.Symbol, Token: b.Token, Exchange: b.Exchange})
	return out
}

func indicatorParams(cfg *config.Config) indicator.Params {
	return indicator.Params{
		RSIPeriod:         cfg.Indicator.RSIPeriod,
		ATRPeriod:         cfg.Indicator.ATRPeriod,
		ADXPeriod:         cfg.Indicator.ADXPeriod,
		MomentumLookback:  cfg.Indicator.MomentumLookback,
		RSLookback:        cfg.Indicator.RSLookback,
		LevelWindow:       cfg.Indicator.LevelWindow,
		SlopeWindow:       cfg.Indicator.SlopeWindow,
		PatternWindow:     cfg.Indicator.PatternWindow,
		VolumeWindow:      cfg.Indicator.VolumeWindow,
		VolumeShortWindow: cfg.Indicator.VolumeShortWindow,
		PatternTolerance:  cfg.Indicator.PatternTolerance,
	}
}

func scoreParams(cfg *config.Config) scoring.Params {
	return scoring.Params{
		Threshold:         cfg.Score.Threshold,
		VolSpikeZ:         cfg.Score.VolSpikeZ,
		AccumLowZ:         cfg.Score.AccumLowZ,
		AccumHighZ:        cfg.Score.AccumHighZ,
		BreakoutMarginPct: cfg.Score.BreakoutMarginPct,
		ApproachPct:       cfg.Score.ApproachPct,
		RSIBullLow:        cfg.Score.RSIBullLow,
		RSIBullHigh:       cfg.Score.RSIBullHigh,
		RSIOverbought:     cfg.Score.RSIOverbought,
		ADXFormingLow:     cfg.Score.ADXFormingLow,
		ADXFormingHigh:    cfg.Score.ADXFormingHigh,
	}
}

func setupParams(cfg *config.Config) setup.Params {
	return setup.Params{
		Model:      model.RiskModel(cfg.Setup.Model),
		ATRMult:    cfg.Setup.ATRMult,
		StopPct:    cfg.Setup.StopPct,
		StopPoints: cfg.Setup.StopPoints,
		RewardMult: cfg.Setup.RewardMult,
	}
}

func scannerOptions(watch scanner.Watchlist, notifier notification.Notifier, quotes *redisstore.QuoteStore, prom *metrics.Metrics) []scanner.Option {
	opts := []scanner.Option{
		scanner.WithNotifier(notifier),
		scanner.WithMetrics(prom),
	}
	if watch != nil {
		opts = append(opts, scanner.WithWatchlist(watch))
	}
	if quotes != nil {
		opts = append(opts, scanner.WithSink(quotes))
	}
	return opts
}

// settleTrade closes the paper trade backing a terminal watchlist edge.
// Manual removals carry no trigger price, so the exit comes from the latest
// quote; with no quote either, the trade stays open for a manual close.
func settleTrade(ctx context.Context, book *ledger.Ledger, prices watchlist.PriceSource, prom *metrics.Metrics, tr watchlist.Transition) {
	var status model.TradeStatus
	switch tr.To {
	case model.WatchTargetHit:
		status = model.TradeClosedWin
	case model.WatchStopHit:
		status = model.TradeClosedLoss
	case model.WatchRemoved:
		status = model.TradeClosedManual
	default:
		return
	}

	exit := tr.Price
	if exit <= 0 {
		pctx, pcancel := context.WithTimeout(ctx, 3*time.Second)
		p, err := prices.LatestPrice(pctx, tr.Symbol)
		pcancel()
		if err != nil {
			log.Printf("[scanner] settle %s: no exit price, trade left open: %v", tr.Symbol, err)
			return
		}
		exit = p
	}

	trade, err := book.CloseBySymbol(tr.Symbol, exit, status)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			log.Printf("[scanner] settle %s: %v", tr.Symbol, err)
		}
		return
	}
	prom.TradesClosed.WithLabelValues(string(status)).Inc()
	prom.OpenTrades.Dec()
	log.Printf("[scanner] settled %s: %s pnl=%.2f", trade.Symbol, status, trade.RealizedPnL)
}

// paperWatchlist promotes a qualified setup onto the monitor and opens the
// matching paper trade.
type paperWatchlist struct {
	mon  *watchlist.Monitor
	book *ledger.Ledger
	qty  int64
	m    *metrics.Metrics
}

func (w *paperWatchlist) Add(ts model.TradeSetup) error {
	if err := w.mon.Add(ts); err != nil {
		return err
	}
	w.m.WatchlistSize.Set(float64(len(w.mon.Entries())))

	if _, err := w.book.OpenTrade(ts, w.qty); err != nil {
		if errors.Is(err, ledger.ErrOpenExists) {
			return nil
		}
		return err
	}
	w.m.TradesOpened.Inc()
	w.m.OpenTrades.Inc()
	return nil
}

// meteredNotifier counts dispatched alerts by event kind.
type meteredNotifier struct {
	inner notification.Notifier
	m     *metrics.Metrics
}

func (n *meteredNotifier) Send(ctx context.Context, ev notification.Event) error {
	err := n.inner.Send(ctx, ev)
	if err == nil {
		n.m.AlertsSent.WithLabelValues(string(ev.Kind)).Inc()
	}
	return err
}

// ltpSource serves watchlist prices over the broker REST API when the quote
// cache is unavailable.
type ltpSource struct {
	feed *smartfeed.Client
}

func (s ltpSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return s.feed.LTP(ctx, symbol)
}

// fallbackPrices tries the quote cache first and falls through to REST on a
// miss, so a stale or open-breaker cache degrades instead of stalling the
// watchlist.
type fallbackPrices struct {
	primary  watchlist.PriceSource
	fallback watchlist.PriceSource
}

func (f fallbackPrices) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	p, err := f.primary.LatestPrice(ctx, symbol)
	if err == nil {
		return p, nil
	}
	return f.fallback.LatestPrice(ctx, symbol)
}

func redisClientOf(quotes *redisstore.QuoteStore) *goredis.Client {
	if quotes == nil {
		return nil
	}
	return quotes.Client()
}

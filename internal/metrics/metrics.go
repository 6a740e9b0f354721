// Package metrics exposes Prometheus metrics and a health endpoint for the
// scanner process.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	ScanCycles        prometheus.Counter
	ScanCycleDur      prometheus.Histogram
	SymbolsScanned    prometheus.Counter
	SymbolErrors      prometheus.Counter
	Qualifiers        prometheus.Counter
	SetupFailures     prometheus.Counter
	ScoreDistribution prometheus.Histogram

	// Watchlist
	WatchlistSize   prometheus.Gauge
	Transitions     *prometheus.CounterVec // labels: to
	AlertsSent      *prometheus.CounterVec // labels: kind
	PriceFetchFails prometheus.Counter

	// Paper ledger
	TradesOpened prometheus.Counter
	TradesClosed *prometheus.CounterVec // labels: status
	OpenTrades   prometheus.Gauge

	// Data sources
	BarFetchDur       prometheus.Histogram
	RedisBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	FeedReconnects    prometheus.Counter
	QuotesIngested    prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScanCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_scan_cycles_total",
			Help: "Total scan cycles started",
		}),
		ScanCycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_scan_cycle_duration_seconds",
			Help:    "Full scan cycle latency",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SymbolsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_symbols_scanned_total",
			Help: "Symbols evaluated across all cycles",
		}),
		SymbolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_symbol_errors_total",
			Help: "Symbols skipped due to fetch or compute errors",
		}),
		Qualifiers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_qualifiers_total",
			Help: "Symbols that cleared the score threshold",
		}),
		SetupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_setup_failures_total",
			Help: "Qualified symbols whose trade setup could not be generated",
		}),
		ScoreDistribution: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_score_distribution",
			Help:    "Capped confluence scores of evaluated symbols",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13},
		}),

		WatchlistSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_watchlist_size",
			Help: "Current number of watchlist entries (all states)",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_watchlist_transitions_total",
			Help: "Watchlist state transitions by destination state",
		}, []string{"to"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_alerts_sent_total",
			Help: "Alerts dispatched by event kind",
		}, []string{"kind"}),
		PriceFetchFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_price_fetch_failures_total",
			Help: "Watchlist price lookups that failed",
		}),

		TradesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_paper_trades_opened_total",
			Help: "Paper trades opened",
		}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_paper_trades_closed_total",
			Help: "Paper trades settled by terminal status",
		}, []string{"status"}),
		OpenTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_paper_trades_open",
			Help: "Currently open paper trades",
		}),

		BarFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_bar_fetch_duration_seconds",
			Help:    "Historical bar fetch latency per symbol",
			Buckets: prometheus.DefBuckets,
		}),
		RedisBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_feed_reconnects_total",
			Help: "Quote feed WebSocket reconnection attempts",
		}),
		QuotesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_quotes_ingested_total",
			Help: "Quotes received from the feed and cached",
		}),
	}

	prometheus.MustRegister(
		m.ScanCycles,
		m.ScanCycleDur,
		m.SymbolsScanned,
		m.SymbolErrors,
		m.Qualifiers,
		m.SetupFailures,
		m.ScoreDistribution,
		m.WatchlistSize,
		m.Transitions,
		m.AlertsSent,
		m.PriceFetchFails,
		m.TradesOpened,
		m.TradesClosed,
		m.OpenTrades,
		m.BarFetchDur,
		m.RedisBreakerState,
		m.FeedReconnects,
		m.QuotesIngested,
	)

	return m
}

// HealthStatus represents the scanner's dependency health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastScanAt     time.Time `json:"last_scan_at"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastScanAt(t time.Time) {
	h.mu.Lock()
	h.LastScanAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the ledger database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	scanAge := ""
	if !h.LastScanAt.IsZero() {
		scanAge = time.Since(h.LastScanAt).Round(time.Second).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedConnected   bool    `json:"feed_connected"`
		LastScanAt      string  `json:"last_scan_at"`
		ScanAge         string  `json:"scan_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastScanAt:      h.LastScanAt.Format(time.RFC3339),
		ScanAge:         scanAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

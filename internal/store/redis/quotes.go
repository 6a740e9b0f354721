// Package redis caches live quotes and published scan results. The quote
// cache is the price source for the watchlist monitor; reads go through a
// circuit breaker so a dead Redis degrades to skipped cycles instead of
// piling up timeouts.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"scanner-systemv1/internal/model"
)

const (
	quoteKeyPrefix = "scanner:quote:"
	scanResultKey  = "scanner:lastscan"

	defaultQuoteTTL = 5 * time.Minute
	defaultScanTTL  = 2 * time.Hour
)

// Config configures the quote store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	QuoteTTL time.Duration // 0 means defaultQuoteTTL

	BreakerMaxFailures  int           // consecutive failures before opening (0 = 5)
	BreakerResetTimeout time.Duration // wait before half-open probe (0 = 10s)
}

// QuoteStore holds last traded prices keyed by symbol, each with a TTL so a
// stale feed surfaces as a missing quote rather than an old price.
type QuoteStore struct {
	client   *goredis.Client
	breaker  *CircuitBreaker
	quoteTTL time.Duration
}

// New creates a QuoteStore and pings the server.
func New(cfg Config) (*QuoteStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	maxFail := cfg.BreakerMaxFailures
	if maxFail <= 0 {
		maxFail = 5
	}
	reset := cfg.BreakerResetTimeout
	if reset <= 0 {
		reset = 10 * time.Second
	}
	ttl := cfg.QuoteTTL
	if ttl <= 0 {
		ttl = defaultQuoteTTL
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &QuoteStore{
		client:   client,
		breaker:  NewCircuitBreaker(maxFail, reset),
		quoteTTL: ttl,
	}, nil
}

// Client returns the underlying Redis client for health checks.
func (s *QuoteStore) Client() *goredis.Client { return s.client }

// SetQuote stores the last traded price for a symbol with the configured TTL.
func (s *QuoteStore) SetQuote(ctx context.Context, symbol string, price float64) error {
	return s.client.Set(ctx, quoteKeyPrefix+symbol,
		strconv.FormatFloat(price, 'f', -1, 64), s.quoteTTL).Err()
}

// LatestPrice returns the cached last traded price for a symbol. Satisfies
// the watchlist monitor's price source. A missing or expired quote is an
// error so the monitor skips the symbol for the cycle.
func (s *QuoteStore) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := s.breaker.Execute(func() error {
		val, err := s.client.Get(ctx, quoteKeyPrefix+symbol).Result()
		if err == goredis.Nil {
			return fmt.Errorf("no quote for %s", symbol)
		}
		if err != nil {
			return err
		}
		price, err = strconv.ParseFloat(val, 64)
		return err
	})
	if err != nil {
		return 0, err
	}
	return price, nil
}

// SaveScan publishes the ranked results of a scan cycle for dashboards and
// the HTTP API. Overwrites the previous cycle.
func (s *QuoteStore) SaveScan(ctx context.Context, results []model.ScoreResult) error {
	body, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal scan results: %w", err)
	}
	return s.client.Set(ctx, scanResultKey, body, defaultScanTTL).Err()
}

// LatestScan returns the most recently published scan cycle, or nil when no
// cycle has run yet.
func (s *QuoteStore) LatestScan(ctx context.Context) ([]model.ScoreResult, error) {
	val, err := s.client.Get(ctx, scanResultKey).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []model.ScoreResult
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, fmt.Errorf("unmarshal scan results: %w", err)
	}
	return out, nil
}

// BreakerState exposes the circuit breaker state for health endpoints.
func (s *QuoteStore) BreakerState() State { return s.breaker.CurrentState() }

// Close closes the Redis connection.
func (s *QuoteStore) Close() error { return s.client.Close() }

// Package config loads the scanner preset from a YAML file, applies
// defaults, overlays environment variables for credentials and endpoints,
// and validates the result before anything else starts.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Instrument pairs a trading symbol with its broker token.
type Instrument struct {
	Symbol   string `yaml:"symbol" validate:"required"`
	Token    string `yaml:"token" validate:"required"`
	Exchange string `yaml:"exchange" default:"NSE"`
}

// Scan selects the universe and the scoring mode.
type Scan struct {
	Instruments []Instrument `yaml:"instruments" validate:"min=1,dive"`
	Benchmark   Instrument   `yaml:"benchmark"`
	Interval    string       `yaml:"interval" default:"15m" validate:"oneof=5m 15m 30m 1h"`
	BarCount    int          `yaml:"bar_count" default:"120" validate:"gte=2"`
	Mode        string       `yaml:"mode" default:"early" validate:"oneof=early confirmation"`

	// MaxSymbols truncates the universe; 0 scans everything listed.
	MaxSymbols int `yaml:"max_symbols" default:"0" validate:"gte=0"`

	// NoAutoWatchlist turns off promotion of qualifiers onto the watchlist
	// (and the paper trade that comes with it). Alerts still fire.
	NoAutoWatchlist bool `yaml:"no_auto_watchlist"`
}

// AutoWatchlist reports whether qualifiers get promoted automatically.
func (s Scan) AutoWatchlist() bool { return !s.NoAutoWatchlist }

// Indicator holds the lookback windows.
type Indicator struct {
	RSIPeriod         int     `yaml:"rsi_period" default:"7" validate:"gte=2"`
	ATRPeriod         int     `yaml:"atr_period" default:"7" validate:"gte=1"`
	ADXPeriod         int     `yaml:"adx_period" default:"14" validate:"gte=2"`
	MomentumLookback  int     `yaml:"momentum_lookback" default:"3" validate:"gte=1"`
	RSLookback        int     `yaml:"rs_lookback" default:"3" validate:"gte=1"`
	LevelWindow       int     `yaml:"level_window" default:"20" validate:"gte=2"`
	SlopeWindow       int     `yaml:"slope_window" default:"15" validate:"gte=2"`
	PatternWindow     int     `yaml:"pattern_window" default:"10" validate:"gte=3"`
	VolumeWindow      int     `yaml:"volume_window" default:"20" validate:"gte=2"`
	VolumeShortWindow int     `yaml:"volume_short_window" default:"5" validate:"gte=1"`
	PatternTolerance  float64 `yaml:"pattern_tolerance" default:"0.01" validate:"gt=0"`
}

// Score holds the filter thresholds and the qualification threshold.
type Score struct {
	Threshold         int     `yaml:"threshold" default:"5" validate:"gte=0"`
	VolSpikeZ         float64 `yaml:"vol_spike_z" default:"2.0" validate:"gt=0"`
	AccumLowZ         float64 `yaml:"accum_low_z" default:"1.2" validate:"gt=0"`
	AccumHighZ        float64 `yaml:"accum_high_z" default:"2.0" validate:"gtfield=AccumLowZ"`
	BreakoutMarginPct float64 `yaml:"breakout_margin_pct" default:"0.2" validate:"gte=0"`
	ApproachPct       float64 `yaml:"approach_pct" default:"0.01" validate:"gt=0"`
	RSIBullLow        float64 `yaml:"rsi_bull_low" default:"50" validate:"gte=0"`
	RSIBullHigh       float64 `yaml:"rsi_bull_high" default:"65" validate:"gtfield=RSIBullLow"`
	RSIOverbought     float64 `yaml:"rsi_overbought" default:"70" validate:"gt=0,lte=100"`
	ADXFormingLow     float64 `yaml:"adx_forming_low" default:"20" validate:"gte=0"`
	ADXFormingHigh    float64 `yaml:"adx_forming_high" default:"30" validate:"gtfield=ADXFormingLow"`
}

// Setup configures stop placement, reward multiple and paper-trade size.
type Setup struct {
	Model      string  `yaml:"model" default:"atr" validate:"oneof=atr percent points"`
	ATRMult    float64 `yaml:"atr_mult" default:"0.9" validate:"gt=0"`
	StopPct    float64 `yaml:"stop_pct" default:"0.02" validate:"gt=0,lt=1"`
	StopPoints float64 `yaml:"stop_points" default:"5" validate:"gt=0"`
	RewardMult float64 `yaml:"reward_mult" default:"2" validate:"gt=0"`
	Qty        int     `yaml:"qty" default:"1" validate:"gte=1"`
}

// Schedule holds the cron specs. Specs stay coarse; the scheduler gates each
// trigger on the NSE session when MarketHoursOnly is set.
type Schedule struct {
	ScanSpec      string `yaml:"scan_spec" default:"*/15 * * * 1-5"`
	WatchlistSpec string `yaml:"watchlist_spec" default:"* * * * 1-5"`

	// IgnoreMarketHours lifts the NSE session gate, useful against recorded
	// or simulated feeds.
	IgnoreMarketHours bool `yaml:"ignore_market_hours"`

	JobTimeoutSec int `yaml:"job_timeout_sec" default:"240" validate:"gte=0"`
}

// MarketHoursOnly reports whether triggers are gated on the NSE session.
func (s Schedule) MarketHoursOnly() bool { return !s.IgnoreMarketHours }

// Redis configures the quote store. Addr and Password are overridable via
// REDIS_ADDR / REDIS_PASSWORD.
type Redis struct {
	Addr                   string `yaml:"addr" default:"localhost:6379" validate:"required"`
	Password               string `yaml:"-"`
	DB                     int    `yaml:"db" default:"0" validate:"gte=0"`
	QuoteTTLSec            int    `yaml:"quote_ttl_sec" default:"300" validate:"gte=1"`
	BreakerMaxFailures     int    `yaml:"breaker_max_failures" default:"5" validate:"gte=1"`
	BreakerResetTimeoutSec int    `yaml:"breaker_reset_timeout_sec" default:"10" validate:"gte=1"`
}

// Ledger configures the paper-trade database. Path is overridable via
// SQLITE_PATH.
type Ledger struct {
	Path string `yaml:"path" default:"data/ledger.db" validate:"required"`
}

// Notify configures the optional alert channels. Credentials come from env
// (TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID, WEBHOOK_URL); an empty value
// disables the channel.
type Notify struct {
	TelegramToken  string `yaml:"-"`
	TelegramChatID string `yaml:"-"`
	WebhookURL     string `yaml:"-" validate:"omitempty,url"`
}

// Angel holds the broker credentials. These never live in the YAML file;
// all four are required environment variables.
type Angel struct {
	APIKey     string `yaml:"-"`
	ClientCode string `yaml:"-"`
	Password   string `yaml:"-"`
	TOTPSecret string `yaml:"-"`
}

// Config is the full runtime configuration.
type Config struct {
	Service     string    `yaml:"service" default:"scanner" validate:"required"`
	MetricsAddr string    `yaml:"metrics_addr" default:":9090" validate:"required"`
	Scan        Scan      `yaml:"scan"`
	Indicator   Indicator `yaml:"indicator"`
	Score       Score     `yaml:"score"`
	Setup       Setup     `yaml:"setup"`
	Schedule    Schedule  `yaml:"schedule"`
	Redis       Redis     `yaml:"redis"`
	Ledger      Ledger    `yaml:"ledger"`
	Notify      Notify    `yaml:"notify"`
	Angel       Angel     `yaml:"-"`
}

// Load reads the YAML preset at path, fills defaults, overlays environment
// variables and validates. Broker credentials are required from env and
// abort startup when missing.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse builds a Config from raw YAML. Split out from Load so presets can
// come from sources other than a file.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: apply defaults: %w", err)
	}
	if cfg.Scan.Benchmark.Symbol == "" {
		cfg.Scan.Benchmark = Instrument{Symbol: "NIFTY50", Token: "99926000", Exchange: "NSE"}
	}
	cfg.applyEnv()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays environment variables on top of the YAML values. The
// Angel credentials are mandatory; everything else falls back to the
// preset/default when unset.
func (c *Config) applyEnv() {
	c.Angel.APIKey = mustEnv("ANGEL_API_KEY")
	c.Angel.ClientCode = mustEnv("ANGEL_CLIENT_CODE")
	c.Angel.Password = mustEnv("ANGEL_PASSWORD")
	c.Angel.TOTPSecret = mustEnv("ANGEL_TOTP_SECRET")

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Ledger.Path = getEnv("SQLITE_PATH", c.Ledger.Path)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)

	c.Notify.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Notify.TelegramToken)
	c.Notify.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Notify.TelegramChatID)
	c.Notify.WebhookURL = getEnv("WEBHOOK_URL", c.Notify.WebhookURL)
}

// Symbols returns the universe symbols in preset order, truncated to
// MaxSymbols when set.
func (s Scan) Symbols() []string {
	out := make([]string, 0, len(s.Instruments))
	for _, in := range s.Instruments {
		out = append(out, in.Symbol)
	}
	if s.MaxSymbols > 0 && len(out) > s.MaxSymbols {
		out = out[:s.MaxSymbols]
	}
	return out
}

// QuoteTTL returns the quote expiry as a duration.
func (r Redis) QuoteTTL() time.Duration {
	return time.Duration(r.QuoteTTLSec) * time.Second
}

// BreakerResetTimeout returns the half-open probe delay as a duration.
func (r Redis) BreakerResetTimeout() time.Duration {
	return time.Duration(r.BreakerResetTimeoutSec) * time.Second
}

// JobTimeout returns the per-job bound as a duration. Zero disables it.
func (s Schedule) JobTimeout() time.Duration {
	return time.Duration(s.JobTimeoutSec) * time.Second
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

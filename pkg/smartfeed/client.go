// Package smartfeed is a client for the slice of the Angel One SmartAPI the
// scanner needs: TOTP session login, historical candles, last traded price,
// and the streaming quote feed.
package smartfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"scanner-systemv1/internal/markethours"
	"scanner-systemv1/internal/model"
)

const (
	defaultRoot    = "https://apiconnect.angelone.in"
	defaultTimeout = 10 * time.Second

	routeLogin   = "/rest/auth/angelbroking/user/v1/loginByPassword"
	routeCandles = "/rest/secure/angelbroking/historical/v1/getCandleData"
	routeLTP     = "/rest/secure/angelbroking/order/v1/getLtpData"
)

// intervalNames maps bar intervals to the SmartAPI candle interval names.
var intervalNames = map[model.Interval]string{
	model.Interval5m:  "FIVE_MINUTE",
	model.Interval15m: "FIFTEEN_MINUTE",
	model.Interval30m: "THIRTY_MINUTE",
	model.Interval1h:  "ONE_HOUR",
}

// Instrument maps a trading symbol to its exchange token.
type Instrument struct {
	Symbol   string `json:"symbol"`
	Token    string `json:"token"`
	Exchange string `json:"exchange"` // "NSE"
}

// Config holds API credentials. TOTPSecret is the base32 seed registered
// with the broker; the one-time code is generated per login.
type Config struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string

	BaseURL string        // default: https://apiconnect.angelone.in
	Timeout time.Duration // default: 10s
}

// Client is the REST client. Safe for concurrent use after Login.
type Client struct {
	cfg  Config
	http *http.Client

	mu          sync.RWMutex
	accessToken string
	feedToken   string

	instruments map[string]Instrument // symbol -> instrument
}

// NewClient builds a client over the given instrument universe.
func NewClient(cfg Config, instruments []Instrument) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	byName := make(map[string]Instrument, len(instruments))
	for _, ins := range instruments {
		byName[ins.Symbol] = ins
	}
	return &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.Timeout},
		instruments: byName,
	}
}

// Login generates a fresh TOTP code and opens a session. Tokens are stored
// on the client for subsequent calls and for the quote stream.
func (c *Client) Login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("smartfeed: generate totp: %w", err)
	}

	var resp struct {
		Status bool   `json:"status"`
		Msg    string `json:"message"`
		Data   struct {
			JWTToken     string `json:"jwtToken"`
			RefreshToken string `json:"refreshToken"`
			FeedToken    string `json:"feedToken"`
		} `json:"data"`
	}
	err = c.post(ctx, routeLogin, map[string]string{
		"clientcode": c.cfg.ClientCode,
		"password":   c.cfg.Password,
		"totp":       code,
	}, &resp)
	if err != nil {
		return fmt.Errorf("smartfeed: login: %w", err)
	}
	if !resp.Status || resp.Data.JWTToken == "" {
		return fmt.Errorf("smartfeed: login rejected: %s", resp.Msg)
	}

	c.mu.Lock()
	c.accessToken = resp.Data.JWTToken
	c.feedToken = resp.Data.FeedToken
	c.mu.Unlock()

	log.Printf("[smartfeed] session established for %s", c.cfg.ClientCode)
	return nil
}

// FeedToken returns the streaming feed token from the current session.
func (c *Client) FeedToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feedToken
}

// AccessToken returns the session JWT.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// Instrument resolves a symbol to its instrument, if known.
func (c *Client) Instrument(symbol string) (Instrument, bool) {
	ins, ok := c.instruments[symbol]
	return ins, ok
}

// Instruments returns the configured universe.
func (c *Client) Instruments() []Instrument {
	out := make([]Instrument, 0, len(c.instruments))
	for _, ins := range c.instruments {
		out = append(out, ins)
	}
	return out
}

// Bars fetches the most recent n bars for a symbol. The request window is
// oversized to survive weekends and holidays; the response is trimmed to the
// trailing n bars, oldest first.
func (c *Client) Bars(ctx context.Context, symbol string, interval model.Interval, n int) ([]model.Bar, error) {
	ins, ok := c.instruments[symbol]
	if !ok {
		return nil, fmt.Errorf("smartfeed: unknown symbol %q", symbol)
	}
	name, ok := intervalNames[interval]
	if !ok {
		return nil, fmt.Errorf("smartfeed: unsupported interval %q", interval)
	}

	now := time.Now().In(markethours.IST)
	// Roughly 6.25 trading hours per day; triple the span for closures.
	span := time.Duration(n) * interval.Duration() * 4
	if span < 48*time.Hour {
		span = 48 * time.Hour
	}
	from := now.Add(-span)

	var resp struct {
		Status bool            `json:"status"`
		Msg    string          `json:"message"`
		Data   [][]interface{} `json:"data"`
	}
	err := c.post(ctx, routeCandles, map[string]string{
		"exchange":    ins.Exchange,
		"symboltoken": ins.Token,
		"interval":    name,
		"fromdate":    from.Format("2006-01-02 15:04"),
		"todate":      now.Format("2006-01-02 15:04"),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("smartfeed: candles %s: %w", symbol, err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("smartfeed: candles %s rejected: %s", symbol, resp.Msg)
	}

	bars, err := parseCandles(symbol, resp.Data)
	if err != nil {
		return nil, fmt.Errorf("smartfeed: candles %s: %w", symbol, err)
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

// LTP fetches the last traded price for a symbol.
func (c *Client) LTP(ctx context.Context, symbol string) (float64, error) {
	ins, ok := c.instruments[symbol]
	if !ok {
		return 0, fmt.Errorf("smartfeed: unknown symbol %q", symbol)
	}

	var resp struct {
		Status bool   `json:"status"`
		Msg    string `json:"message"`
		Data   struct {
			LTP float64 `json:"ltp"`
		} `json:"data"`
	}
	err := c.post(ctx, routeLTP, map[string]string{
		"exchange":      ins.Exchange,
		"tradingsymbol": symbol,
		"symboltoken":   ins.Token,
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("smartfeed: ltp %s: %w", symbol, err)
	}
	if !resp.Status {
		return 0, fmt.Errorf("smartfeed: ltp %s rejected: %s", symbol, resp.Msg)
	}
	return resp.Data.LTP, nil
}

// parseCandles converts the [[ts, o, h, l, c, v], ...] payload to bars.
func parseCandles(symbol string, rows [][]interface{}) ([]model.Bar, error) {
	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("candle row %d: %d fields", i, len(row))
		}
		tsStr, ok := row[0].(string)
		if !ok {
			return nil, fmt.Errorf("candle row %d: non-string timestamp", i)
		}
		ts, err := time.Parse("2006-01-02T15:04:05-07:00", tsStr)
		if err != nil {
			return nil, fmt.Errorf("candle row %d: %w", i, err)
		}
		vals := make([]float64, 5)
		for j := 1; j <= 5; j++ {
			f, ok := row[j].(float64)
			if !ok {
				return nil, fmt.Errorf("candle row %d col %d: non-numeric", i, j)
			}
			vals[j-1] = f
		}
		bars = append(bars, model.Bar{
			Symbol: symbol,
			TS:     ts.UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: int64(vals[4]),
		})
	}
	return bars, nil
}

func (c *Client) post(ctx context.Context, route string, params map[string]string, out interface{}) error {
	body, _ := json.Marshal(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+route, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-PrivateKey", c.cfg.APIKey)
	req.Header.Set("X-UserType", "USER")
	req.Header.Set("X-SourceID", "WEB")
	c.mu.RLock()
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	c.mu.RUnlock()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// ErrNotLoggedIn is returned by the stream when no session exists.
var ErrNotLoggedIn = errors.New("smartfeed: not logged in")

package smartfeed

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scanner-systemv1/internal/model"
)

var testInstruments = []Instrument{
	{Symbol: "RELIANCE", Token: "2885", Exchange: "NSE"},
	{Symbol: "INFY", Token: "1594", Exchange: "NSE"},
}

func testClient(baseURL string) *Client {
	return NewClient(Config{
		APIKey:     "key",
		ClientCode: "C123",
		Password:   "pin",
		TOTPSecret: "JBSWY3DPEHPK3PXP",
		BaseURL:    baseURL,
	}, testInstruments)
}

// ────────────────────────────────────────────────────────────
// Candle parsing
// ────────────────────────────────────────────────────────────

func TestParseCandles(t *testing.T) {
	rows := [][]interface{}{
		{"2026-08-03T09:15:00+05:30", 100.0, 101.5, 99.5, 101.0, 125000.0},
		{"2026-08-03T09:20:00+05:30", 101.0, 102.0, 100.8, 101.8, 98000.0},
	}
	bars, err := parseCandles("RELIANCE", rows)
	if err != nil {
		t.Fatalf("parseCandles: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	b := bars[0]
	if b.Symbol != "RELIANCE" || b.Open != 100 || b.High != 101.5 || b.Low != 99.5 || b.Close != 101 || b.Volume != 125000 {
		t.Errorf("bar = %+v", b)
	}
	// 09:15 IST == 03:45 UTC.
	if b.TS.UTC().Hour() != 3 || b.TS.UTC().Minute() != 45 {
		t.Errorf("ts = %s, want 03:45 UTC", b.TS.UTC())
	}
}

func TestParseCandles_Malformed(t *testing.T) {
	if _, err := parseCandles("X", [][]interface{}{{"2026-08-03T09:15:00+05:30", 1.0}}); err == nil {
		t.Error("short row accepted")
	}
	if _, err := parseCandles("X", [][]interface{}{{42.0, 1.0, 1.0, 1.0, 1.0, 1.0}}); err == nil {
		t.Error("numeric timestamp accepted")
	}
}

// ────────────────────────────────────────────────────────────
// REST round trips
// ────────────────────────────────────────────────────────────

func TestBars_TrimsToRequestedCount(t *testing.T) {
	rows := make([][]interface{}, 5)
	for i := range rows {
		ts := time.Date(2026, 8, 3, 9, 15+5*i, 0, 0, time.FixedZone("IST", 19800))
		rows[i] = []interface{}{ts.Format("2006-01-02T15:04:05-07:00"),
			100.0 + float64(i), 101.0 + float64(i), 99.0 + float64(i), 100.5 + float64(i), 1000.0}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routeCandles {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-PrivateKey"); got != "key" {
			t.Errorf("X-PrivateKey = %q", got)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["symboltoken"] != "2885" || req["interval"] != "FIVE_MINUTE" {
			t.Errorf("request = %v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"status": true, "data": rows})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	bars, err := c.Bars(context.Background(), "RELIANCE", model.Interval5m, 3)
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("bars = %d, want trailing 3", len(bars))
	}
	if bars[2].Close != 104.5 {
		t.Errorf("newest close = %.2f, want 104.5", bars[2].Close)
	}
}

func TestBars_UnknownSymbol(t *testing.T) {
	c := testClient("http://unused")
	if _, err := c.Bars(context.Background(), "GHOST", model.Interval5m, 10); err == nil {
		t.Error("unknown symbol accepted")
	}
}

func TestLogin_StoresTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["clientcode"] != "C123" || req["totp"] == "" {
			t.Errorf("login request = %v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data": map[string]string{
				"jwtToken": "jwt-1", "refreshToken": "r-1", "feedToken": "f-1",
			},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if c.AccessToken() != "jwt-1" || c.FeedToken() != "f-1" {
		t.Errorf("tokens = %q / %q", c.AccessToken(), c.FeedToken())
	}
}

func TestLogin_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"status": false, "message": "invalid totp"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.Login(context.Background()); err == nil {
		t.Error("rejected login returned nil error")
	}
}

func TestLTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data":   map[string]float64{"ltp": 2431.55},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	price, err := c.LTP(context.Background(), "RELIANCE")
	if err != nil {
		t.Fatalf("LTP: %v", err)
	}
	if math.Abs(price-2431.55) > 0.0001 {
		t.Errorf("ltp = %.2f, want 2431.55", price)
	}
}

// ────────────────────────────────────────────────────────────
// Stream packet decoding
// ────────────────────────────────────────────────────────────

func ltpPacket(token string, paise int64, exTsMilli int64) []byte {
	b := make([]byte, 51)
	b[0] = modeLTP
	b[1] = exchangeNSECM
	copy(b[2:27], token)
	binary.LittleEndian.PutUint64(b[35:43], uint64(exTsMilli))
	binary.LittleEndian.PutUint64(b[43:51], uint64(paise))
	return b
}

func TestHandleBinary_LTP(t *testing.T) {
	c := testClient("http://unused")
	var gotSymbol string
	var gotPrice float64
	s := NewStream(c, func(symbol string, price float64, _ time.Time) {
		gotSymbol, gotPrice = symbol, price
	})

	s.handleBinary(ltpPacket("2885", 243155, time.Now().UnixMilli()))
	if gotSymbol != "RELIANCE" {
		t.Errorf("symbol = %q, want RELIANCE", gotSymbol)
	}
	if math.Abs(gotPrice-2431.55) > 0.0001 {
		t.Errorf("price = %.2f, want 2431.55", gotPrice)
	}
}

func TestHandleBinary_IgnoresUnknownAndShort(t *testing.T) {
	c := testClient("http://unused")
	called := false
	s := NewStream(c, func(string, float64, time.Time) { called = true })

	s.handleBinary(ltpPacket("9999", 100, 0)) // unknown token
	s.handleBinary([]byte{modeLTP, 1, 2})     // truncated
	if called {
		t.Error("handler invoked for unusable packet")
	}
}

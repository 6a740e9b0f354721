package ledger

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"scanner-systemv1/internal/model"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.CloseDB() })
	return l
}

func testSetup(symbol string, entry, stop, target float64) model.TradeSetup {
	return model.TradeSetup{
		Symbol: symbol, Direction: model.DirectionLong,
		Entry: entry, Stop: stop, Target: target,
		Model: model.RiskATR, GeneratedAt: time.Now(),
	}
}

func assertPnL(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.0001 {
		t.Errorf("pnl = %.4f, want %.4f", got, want)
	}
}

func TestOpenAndGet(t *testing.T) {
	l := openTestLedger(t)
	tr, err := l.OpenTrade(testSetup("INFY", 100, 95, 110), 10)
	if err != nil {
		t.Fatalf("OpenTrade: %v", err)
	}
	if tr.ID == "" || tr.Status != model.TradeOpen {
		t.Errorf("trade = %+v, want open with id", tr)
	}

	got, err := l.Get(tr.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Symbol != "INFY" || got.Entry != 100 || got.Qty != 10 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestManualClose_PnLComputedOnce(t *testing.T) {
	// entry=100, qty=10, manual exit at 105: realized = 50.
	l := openTestLedger(t)
	tr, _ := l.OpenTrade(testSetup("INFY", 100, 95, 110), 10)

	closed, err := l.Close(tr.ID, 105, model.TradeClosedManual)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != model.TradeClosedManual {
		t.Errorf("status = %s, want CLOSED_MANUAL", closed.Status)
	}
	assertPnL(t, closed.RealizedPnL, 50)

	// A second close at a different price must not re-settle.
	again, err := l.Close(tr.ID, 999, model.TradeClosedWin)
	if !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("second close: err = %v, want ErrAlreadyClosed", err)
	}
	assertPnL(t, again.RealizedPnL, 50)

	stored, _ := l.Get(tr.ID)
	if stored.ExitPrice != 105 || stored.Status != model.TradeClosedManual {
		t.Errorf("stored after double close = %+v, want original settlement", stored)
	}
}

func TestStopLossClose(t *testing.T) {
	// entry=100, qty=10, stop exit at 94: realized = -60.
	l := openTestLedger(t)
	tr, _ := l.OpenTrade(testSetup("TCS", 100, 95, 110), 10)
	closed, err := l.Close(tr.ID, 94, model.TradeClosedLoss)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	assertPnL(t, closed.RealizedPnL, -60)
}

func TestCloseBySymbol(t *testing.T) {
	l := openTestLedger(t)
	_, _ = l.OpenTrade(testSetup("SBIN", 200, 190, 220), 5)

	closed, err := l.CloseBySymbol("SBIN", 221, model.TradeClosedWin)
	if err != nil {
		t.Fatalf("CloseBySymbol: %v", err)
	}
	assertPnL(t, closed.RealizedPnL, 105)

	if _, err := l.CloseBySymbol("SBIN", 222, model.TradeClosedWin); !errors.Is(err, ErrNotFound) {
		t.Errorf("no open trade left: err = %v, want ErrNotFound", err)
	}
}

func TestOneOpenTradePerSymbol(t *testing.T) {
	l := openTestLedger(t)
	tr, _ := l.OpenTrade(testSetup("INFY", 100, 95, 110), 10)

	if _, err := l.OpenTrade(testSetup("INFY", 101, 96, 111), 10); !errors.Is(err, ErrOpenExists) {
		t.Errorf("duplicate open: err = %v, want ErrOpenExists", err)
	}

	// After settlement a fresh trade on the symbol is allowed.
	_, _ = l.Close(tr.ID, 110, model.TradeClosedWin)
	if _, err := l.OpenTrade(testSetup("INFY", 101, 96, 111), 10); err != nil {
		t.Errorf("open after close: %v", err)
	}
}

func TestOpenTradesAndHistory(t *testing.T) {
	l := openTestLedger(t)
	a, _ := l.OpenTrade(testSetup("AAA", 100, 95, 110), 1)
	_, _ = l.OpenTrade(testSetup("BBB", 100, 95, 110), 1)
	_, _ = l.Close(a.ID, 110, model.TradeClosedWin)

	open, err := l.OpenTrades()
	if err != nil {
		t.Fatalf("OpenTrades: %v", err)
	}
	if len(open) != 1 || open[0].Symbol != "BBB" {
		t.Errorf("open = %+v, want only BBB", open)
	}

	hist, err := l.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Errorf("history = %d rows, want 2", len(hist))
	}
}

func TestUnrealizedProjection(t *testing.T) {
	l := openTestLedger(t)
	tr, _ := l.OpenTrade(testSetup("INFY", 100, 95, 110), 10)
	assertPnL(t, tr.UnrealizedPnL(104), 40)

	closed, _ := l.Close(tr.ID, 110, model.TradeClosedWin)
	assertPnL(t, closed.UnrealizedPnL(200), 0) // closed trades project nothing
}

func TestCloseRejectsNonTerminalStatus(t *testing.T) {
	l := openTestLedger(t)
	tr, _ := l.OpenTrade(testSetup("INFY", 100, 95, 110), 10)
	if _, err := l.Close(tr.ID, 105, model.TradeOpen); err == nil {
		t.Error("close with OPEN status accepted")
	}
}

func TestOpenTradeValidations(t *testing.T) {
	l := openTestLedger(t)
	if _, err := l.OpenTrade(testSetup("BAD", 100, 110, 120), 10); err == nil {
		t.Error("inverted stop accepted")
	}
	if _, err := l.OpenTrade(testSetup("INFY", 100, 95, 110), 0); err == nil {
		t.Error("zero qty accepted")
	}
}

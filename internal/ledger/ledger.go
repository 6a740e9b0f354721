// Package ledger persists paper trades to SQLite. A trade is inserted once
// when opened and settled once when closed; realized P/L is computed at the
// moment of closure and never revised afterwards.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"scanner-systemv1/internal/model"
)

var (
	// ErrNotFound is returned when no trade matches the given id or symbol.
	ErrNotFound = errors.New("ledger: trade not found")
	// ErrAlreadyClosed is returned when settling a trade a second time. The
	// stored record is unchanged.
	ErrAlreadyClosed = errors.New("ledger: trade already closed")
	// ErrOpenExists is returned when opening a second trade on a symbol that
	// already has an open one.
	ErrOpenExists = errors.New("ledger: open trade exists for symbol")
)

// Ledger is the SQLite-backed paper trade book. A single mutex serialises
// writers; reads go through the same lock to keep the view consistent with
// in-flight settlements.
type Ledger struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the ledger database.
func Open(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS paper_trades (
		id           TEXT PRIMARY KEY,
		symbol       TEXT NOT NULL,
		direction    TEXT NOT NULL,
		entry        REAL NOT NULL,
		qty          INTEGER NOT NULL,
		stop         REAL NOT NULL,
		target       REAL NOT NULL,
		status       TEXT NOT NULL,
		exit_price   REAL NOT NULL DEFAULT 0,
		realized_pnl REAL NOT NULL DEFAULT 0,
		opened_at    DATETIME NOT NULL,
		closed_at    DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_paper_trades_symbol ON paper_trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_paper_trades_status ON paper_trades(status);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[ledger] opened paper trade ledger at %s", dbPath)
	return &Ledger{db: db, now: time.Now}, nil
}

// OpenTrade books a new paper trade from a setup. At most one open trade per
// symbol is allowed; a duplicate open returns ErrOpenExists.
func (l *Ledger) OpenTrade(ts model.TradeSetup, qty int64) (model.PaperTrade, error) {
	if err := ts.Validate(); err != nil {
		return model.PaperTrade{}, err
	}
	if qty <= 0 {
		return model.PaperTrade{}, fmt.Errorf("ledger: qty %d must be positive", qty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	if err := l.db.QueryRow(
		`SELECT COUNT(1) FROM paper_trades WHERE symbol = ? AND status = ?`,
		ts.Symbol, string(model.TradeOpen),
	).Scan(&n); err != nil {
		return model.PaperTrade{}, err
	}
	if n > 0 {
		return model.PaperTrade{}, fmt.Errorf("%w: %s", ErrOpenExists, ts.Symbol)
	}

	t := model.PaperTrade{
		ID:        uuid.NewString(),
		Symbol:    ts.Symbol,
		Direction: ts.Direction,
		Entry:     ts.Entry,
		Qty:       qty,
		Stop:      ts.Stop,
		Target:    ts.Target,
		Status:    model.TradeOpen,
		OpenedAt:  l.now().UTC(),
	}
	_, err := l.db.Exec(
		`INSERT INTO paper_trades (id, symbol, direction, entry, qty, stop, target, status, opened_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, string(t.Direction), t.Entry, t.Qty, t.Stop, t.Target,
		string(t.Status), t.OpenedAt.Format(time.RFC3339),
	)
	if err != nil {
		return model.PaperTrade{}, err
	}
	log.Printf("[ledger] opened %s %s qty=%d entry=%.2f", t.ID[:8], t.Symbol, qty, t.Entry)
	return t, nil
}

// Close settles a trade at the given exit price with the given terminal
// status. The settlement updates the one existing row; a second Close on the
// same trade returns ErrAlreadyClosed and changes nothing.
func (l *Ledger) Close(id string, exit float64, status model.TradeStatus) (model.PaperTrade, error) {
	if !status.Closed() {
		return model.PaperTrade{}, fmt.Errorf("ledger: %q is not a terminal status", status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.getLocked(id)
	if err != nil {
		return model.PaperTrade{}, err
	}
	if t.Status.Closed() {
		return t, ErrAlreadyClosed
	}

	t.Status = status
	t.ExitPrice = exit
	t.RealizedPnL = (exit - t.Entry) * float64(t.Qty)
	t.ClosedAt = l.now().UTC()

	_, err = l.db.Exec(
		`UPDATE paper_trades SET status = ?, exit_price = ?, realized_pnl = ?, closed_at = ?
		 WHERE id = ? AND status = ?`,
		string(t.Status), t.ExitPrice, t.RealizedPnL, t.ClosedAt.Format(time.RFC3339),
		id, string(model.TradeOpen),
	)
	if err != nil {
		return model.PaperTrade{}, err
	}
	log.Printf("[ledger] closed %s %s exit=%.2f pnl=%.2f (%s)", t.ID[:8], t.Symbol, exit, t.RealizedPnL, status)
	return t, nil
}

// CloseBySymbol settles the open trade on a symbol, if any. Used by the
// watchlist transition hook, which knows symbols rather than trade ids.
func (l *Ledger) CloseBySymbol(symbol string, exit float64, status model.TradeStatus) (model.PaperTrade, error) {
	l.mu.Lock()
	var id string
	err := l.db.QueryRow(
		`SELECT id FROM paper_trades WHERE symbol = ? AND status = ? ORDER BY opened_at LIMIT 1`,
		symbol, string(model.TradeOpen),
	).Scan(&id)
	l.mu.Unlock()
	if errors.Is(err, sql.ErrNoRows) {
		return model.PaperTrade{}, fmt.Errorf("%w: no open trade for %s", ErrNotFound, symbol)
	}
	if err != nil {
		return model.PaperTrade{}, err
	}
	return l.Close(id, exit, status)
}

// Get returns one trade by id.
func (l *Ledger) Get(id string) (model.PaperTrade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getLocked(id)
}

func (l *Ledger) getLocked(id string) (model.PaperTrade, error) {
	row := l.db.QueryRow(
		`SELECT id, symbol, direction, entry, qty, stop, target, status, exit_price, realized_pnl, opened_at, closed_at
		 FROM paper_trades WHERE id = ?`, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PaperTrade{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, err
}

// OpenTrades returns all open trades, oldest first.
func (l *Ledger) OpenTrades() ([]model.PaperTrade, error) {
	return l.query(
		`SELECT id, symbol, direction, entry, qty, stop, target, status, exit_price, realized_pnl, opened_at, closed_at
		 FROM paper_trades WHERE status = ? ORDER BY opened_at`, string(model.TradeOpen))
}

// History returns the last n trades, newest first.
func (l *Ledger) History(n int) ([]model.PaperTrade, error) {
	return l.query(
		`SELECT id, symbol, direction, entry, qty, stop, target, status, exit_price, realized_pnl, opened_at, closed_at
		 FROM paper_trades ORDER BY opened_at DESC LIMIT ?`, n)
}

func (l *Ledger) query(q string, args ...interface{}) ([]model.PaperTrade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PaperTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row scannable) (model.PaperTrade, error) {
	var (
		t                  model.PaperTrade
		direction, status  string
		openedAt           string
		closedAt           sql.NullString
	)
	err := row.Scan(&t.ID, &t.Symbol, &direction, &t.Entry, &t.Qty, &t.Stop, &t.Target,
		&status, &t.ExitPrice, &t.RealizedPnL, &openedAt, &closedAt)
	if err != nil {
		return model.PaperTrade{}, err
	}
	t.Direction = model.Direction(direction)
	t.Status = model.TradeStatus(status)
	if ts, err := time.Parse(time.RFC3339, openedAt); err == nil {
		t.OpenedAt = ts
	}
	if closedAt.Valid {
		if ts, err := time.Parse(time.RFC3339, closedAt.String); err == nil {
			t.ClosedAt = ts
		}
	}
	return t, nil
}

// DB exposes the handle for health checks.
func (l *Ledger) DB() *sql.DB {
	return l.db
}

// CloseDB closes the underlying database.
func (l *Ledger) CloseDB() error {
	return l.db.Close()
}

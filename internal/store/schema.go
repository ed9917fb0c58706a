package store

import "fmt"

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    rules TEXT NOT NULL,
    initial_capital REAL NOT NULL,
    slippage REAL NOT NULL,
    commission REAL NOT NULL,
    final_capital REAL NOT NULL,
    total_return_pct REAL NOT NULL,
    max_drawdown_pct REAL NOT NULL,
    trade_count INTEGER NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_trades (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    trade_id INTEGER NOT NULL,
    entry_bar INTEGER NOT NULL,
    entry_bar_time TEXT NOT NULL,
    entry_fill_bar INTEGER NOT NULL,
    entry_fill_time TEXT NOT NULL,
    entry_price REAL NOT NULL,
    exit_bar INTEGER,
    exit_bar_time TEXT,
    exit_fill_bar INTEGER,
    exit_fill_time TEXT,
    exit_price REAL,
    shares REAL NOT NULL,
    pnl REAL,
    return_pct REAL,
    exit_reason TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS run_equity (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    bar_index INTEGER NOT NULL,
    bar_time TEXT NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (run_id, bar_index)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate applies the schema. It is idempotent.
func (s *Store) Migrate() error {
	if _, err := s.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwtly10/tradedsl/internal/account"
	"github.com/jwtly10/tradedsl/internal/backtest"
	"github.com/jwtly10/tradedsl/internal/types"
)

// Run is a persisted backtest. ListRuns leaves Results.Trades and Results.EquityCurve empty.
type Run struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Rules     string            `json:"rules"`
	Config    backtest.Config   `json:"config"`
	Results   *backtest.Results `json:"results"`
	CreatedAt time.Time         `json:"created_at"`
}

// SaveRun stores a run with its trades and equity curve in one transaction and
// returns its id. A new uuid is assigned when run.ID is empty.
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	if run.Results == nil {
		return "", errors.New("run has no results")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	r := run.Results

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, rules, initial_capital, slippage, commission,
			final_capital, total_return_pct, max_drawdown_pct, trade_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Name, run.Rules, r.InitialCapital, run.Config.Slippage, run.Config.Commission,
		r.FinalCapital, r.TotalReturnPct, r.MaxDrawdownPct, r.TradeCount, formatTime(run.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_trades (run_id, trade_id, entry_bar, entry_bar_time, entry_fill_bar, entry_fill_time,
			entry_price, exit_bar, exit_bar_time, exit_fill_bar, exit_fill_time, exit_price,
			shares, pnl, return_pct, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer tradeStmt.Close()

	for _, t := range r.Trades {
		exitBar, exitBarTime := nullRef(t.ExitBar)
		exitFill, exitFillTime := nullRef(t.ExitFillBar)
		_, err := tradeStmt.ExecContext(ctx,
			run.ID, t.ID,
			t.EntryBar.Index, formatTime(t.EntryBar.Time),
			t.EntryFillBar.Index, formatTime(t.EntryFillBar.Time),
			t.EntryPrice,
			exitBar, exitBarTime, exitFill, exitFillTime, nullFloat(t.ExitPrice),
			t.Shares, nullFloat(t.PnL), nullFloat(t.ReturnPct), t.ExitReason,
		)
		if err != nil {
			return "", fmt.Errorf("insert trade %d: %w", t.ID, err)
		}
	}

	equityStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_equity (run_id, bar_index, bar_time, value) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer equityStmt.Close()

	for _, p := range r.EquityCurve {
		if _, err := equityStmt.ExecContext(ctx, run.ID, p.Bar.Index, formatTime(p.Bar.Time), p.Value); err != nil {
			return "", fmt.Errorf("insert equity point %d: %w", p.Bar.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

const runColumns = `id, name, rules, initial_capital, slippage, commission,
	final_capital, total_return_pct, max_drawdown_pct, trade_count, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		r         backtest.Results
		createdAt string
	)
	err := row.Scan(&run.ID, &run.Name, &run.Rules, &r.InitialCapital, &run.Config.Slippage, &run.Config.Commission,
		&r.FinalCapital, &r.TotalReturnPct, &r.MaxDrawdownPct, &r.TradeCount, &createdAt)
	if err != nil {
		return run, err
	}
	run.Config.InitialCapital = r.InitialCapital
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return run, err
	}
	run.Results = &r
	return run, nil
}

// GetRun loads a run with its trades and equity curve.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	if run.Results.Trades, err = s.trades(ctx, id); err != nil {
		return nil, err
	}
	if run.Results.EquityCurve, err = s.equity(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first, without trades or equity.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) trades(ctx context.Context, runID string) ([]account.Trade, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT trade_id, entry_bar, entry_bar_time, entry_fill_bar, entry_fill_time, entry_price,
			exit_bar, exit_bar_time, exit_fill_bar, exit_fill_time, exit_price,
			shares, pnl, return_pct, exit_reason
		FROM run_trades
		WHERE run_id = ?
		ORDER BY trade_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	trades := []account.Trade{}
	for rows.Next() {
		var (
			t                         account.Trade
			entryTime, entryFillTime  string
			exitBar, exitFill         sql.NullInt64
			exitTime, exitFillTime    sql.NullString
			exitPrice, pnl, returnPct sql.NullFloat64
		)
		err := rows.Scan(&t.ID, &t.EntryBar.Index, &entryTime, &t.EntryFillBar.Index, &entryFillTime, &t.EntryPrice,
			&exitBar, &exitTime, &exitFill, &exitFillTime, &exitPrice,
			&t.Shares, &pnl, &returnPct, &t.ExitReason)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}

		if t.EntryBar.Time, err = parseTime(entryTime); err != nil {
			return nil, err
		}
		if t.EntryFillBar.Time, err = parseTime(entryFillTime); err != nil {
			return nil, err
		}
		if t.ExitBar, err = refFrom(exitBar, exitTime); err != nil {
			return nil, err
		}
		if t.ExitFillBar, err = refFrom(exitFill, exitFillTime); err != nil {
			return nil, err
		}
		t.ExitPrice = floatFrom(exitPrice)
		t.PnL = floatFrom(pnl)
		t.ReturnPct = floatFrom(returnPct)

		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *Store) equity(ctx context.Context, runID string) ([]backtest.EquityPoint, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT bar_index, bar_time, value FROM run_equity WHERE run_id = ? ORDER BY bar_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity: %w", err)
	}
	defer rows.Close()

	curve := []backtest.EquityPoint{}
	for rows.Next() {
		var (
			p  backtest.EquityPoint
			ts string
		)
		if err := rows.Scan(&p.Bar.Index, &ts, &p.Value); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		if p.Bar.Time, err = parseTime(ts); err != nil {
			return nil, err
		}
		curve = append(curve, p)
	}
	return curve, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func nullRef(ref *types.BarRef) (sql.NullInt64, sql.NullString) {
	if ref == nil {
		return sql.NullInt64{}, sql.NullString{}
	}
	return sql.NullInt64{Int64: int64(ref.Index), Valid: true},
		sql.NullString{String: formatTime(ref.Time), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func refFrom(index sql.NullInt64, ts sql.NullString) (*types.BarRef, error) {
	if !index.Valid {
		return nil, nil
	}
	t, err := parseTime(ts.String)
	if err != nil {
		return nil, err
	}
	return &types.BarRef{Index: int(index.Int64), Time: t}, nil
}

func floatFrom(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

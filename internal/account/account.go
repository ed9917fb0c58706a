package account

import (
	"fmt"
	"log/slog"

	"github.com/jwtly10/tradedsl/internal/logging"
	"github.com/jwtly10/tradedsl/internal/types"
)

const (
	ExitSignal    = "EXIT_SIGNAL"
	ExitEndOfData = "END_OF_BACKTEST"
)

var accountLog = logging.New("account")

// Trade is created when a position opens and finalised when it closes.
// Exit fields are nil while the trade is open.
type Trade struct {
	ID           int           `json:"id"`
	EntryBar     types.BarRef  `json:"entry_bar"`
	EntryFillBar types.BarRef  `json:"entry_fill_bar"`
	EntryPrice   float64       `json:"entry_price"`
	ExitBar      *types.BarRef `json:"exit_bar"`
	ExitFillBar  *types.BarRef `json:"exit_fill_bar"`
	ExitPrice    *float64      `json:"exit_price"`
	Shares       float64       `json:"shares"`
	PnL          *float64      `json:"pnl"`
	ReturnPct    *float64      `json:"return_pct"`
	ExitReason   string        `json:"exit_reason,omitempty"`
}

func (t Trade) Open() bool {
	return t.ExitPrice == nil
}

// BarsHeld is the number of bars between the entry and exit fills.
func (t Trade) BarsHeld() int {
	if t.ExitFillBar == nil {
		return 0
	}
	return t.ExitFillBar.Index - t.EntryFillBar.Index
}

func (t Trade) Print() {
	if t.Open() {
		fmt.Printf("#%d | LONG | Entry: %.5f @ %s | OPEN | Shares: %.4f\n",
			t.ID, t.EntryPrice, t.EntryFillBar.Time.Format("2006-01-02 15:04"), t.Shares)
		return
	}
	fmt.Printf("#%d | LONG | Entry: %.5f @ %s | Exit: %.5f @ %s | P&L: %.2f (%.2f%%) | %s\n",
		t.ID,
		t.EntryPrice,
		t.EntryFillBar.Time.Format("2006-01-02 15:04"),
		*t.ExitPrice,
		t.ExitFillBar.Time.Format("2006-01-02 15:04"),
		*t.PnL,
		*t.ReturnPct,
		t.ExitReason,
	)
}

// Account tracks cash and at most one open long position.
// All capital goes into each position; commission is charged once per round trip, at entry.
type Account struct {
	Cash       float64
	slippage   float64
	commission float64

	shares float64
	trades []Trade
	nextID int
}

func NewAccount(initialCash, slippage, commission float64) *Account {
	return &Account{
		Cash:       initialCash,
		slippage:   slippage,
		commission: commission,
		trades:     []Trade{},
		nextID:     1,
	}
}

func (a *Account) Flat() bool {
	return a.shares == 0
}

func (a *Account) Shares() float64 {
	return a.shares
}

// Open buys with all available cash at fillPrice plus slippage. It reports false,
// leaving the account untouched, when the computed share count is not positive.
func (a *Account) Open(signalBar, fillBar types.BarRef, fillPrice float64) bool {
	if !a.Flat() {
		slog.Warn("Ignoring open while a position is held", "bar", signalBar.Index)
		return false
	}

	buyPrice := fillPrice + a.slippage
	shares := 0.0
	if buyPrice > 0 {
		shares = a.Cash / buyPrice
	}
	if !(shares > 0) {
		accountLog.Debug("Skipping entry, no shares affordable", "bar", signalBar.Index, "cash", a.Cash, "price", buyPrice)
		return false
	}

	a.Cash -= shares*buyPrice + a.commission
	a.shares = shares

	a.trades = append(a.trades, Trade{
		ID:           a.nextID,
		EntryBar:     signalBar,
		EntryFillBar: fillBar,
		EntryPrice:   buyPrice,
		Shares:       shares,
	})
	a.nextID++

	accountLog.Info("Opened position", "id", a.nextID-1, "bar", signalBar.Index, "fill_bar", fillBar.Index,
		"price", buyPrice, "shares", shares, "cash", a.Cash)
	return true
}

// Close sells the open position at fillPrice minus slippage and finalises its trade.
func (a *Account) Close(signalBar, fillBar types.BarRef, fillPrice float64, reason string) (Trade, bool) {
	if a.Flat() {
		return Trade{}, false
	}

	t := &a.trades[len(a.trades)-1]
	sellPrice := fillPrice - a.slippage
	proceeds := t.Shares * sellPrice
	cost := t.Shares * t.EntryPrice

	pnl := proceeds - cost - a.commission
	returnPct := 0.0
	if cost != 0 {
		returnPct = pnl / cost * 100
	}

	exitBar, exitFill := signalBar, fillBar
	t.ExitBar = &exitBar
	t.ExitFillBar = &exitFill
	t.ExitPrice = &sellPrice
	t.PnL = &pnl
	t.ReturnPct = &returnPct
	t.ExitReason = reason

	a.Cash += proceeds
	a.shares = 0

	accountLog.Info("Closed position", "id", t.ID, "bar", signalBar.Index, "fill_bar", fillBar.Index,
		"price", sellPrice, "pnl", pnl, "reason", reason, "cash", a.Cash)
	return *t, true
}

// Equity marks the account to market at the given close price.
func (a *Account) Equity(closePrice float64) float64 {
	return a.Cash + a.shares*closePrice
}

// Trades returns every trade so far. Only the last one can be open.
func (a *Account) Trades() []Trade {
	return a.trades
}

func (a *Account) OpenTrade() (Trade, bool) {
	if a.Flat() || len(a.trades) == 0 {
		return Trade{}, false
	}
	return a.trades[len(a.trades)-1], true
}

// CloseAll liquidates any open position at the given bar's price, as at the end of a backtest.
func (a *Account) CloseAll(bar types.BarRef, price float64) []Trade {
	trade, ok := a.Close(bar, bar, price, ExitEndOfData)
	if !ok {
		return nil
	}
	return []Trade{trade}
}

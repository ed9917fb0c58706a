package backtest

import (
	"github.com/jwtly10/tradedsl/internal/account"
	"github.com/jwtly10/tradedsl/internal/types"
)

// EquityPoint is the mark-to-market account value at the close of a bar.
type EquityPoint struct {
	Bar   types.BarRef `json:"bar"`
	Value float64      `json:"value"`
}

type Results struct {
	InitialCapital float64         `json:"initial_capital"`
	FinalCapital   float64         `json:"final_capital"`
	TotalReturnPct float64         `json:"total_return_pct"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	TradeCount     int             `json:"trade_count"`
	Trades         []account.Trade `json:"trades"`
	EquityCurve    []EquityPoint   `json:"equity_curve"`

	stats *Statistics
}

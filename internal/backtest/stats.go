package backtest

import (
	"fmt"
	"math"
)

type Statistics struct {
	// Basic
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`

	// P&L
	TotalPnL        float64 `json:"total_pnl"`
	TotalPnLPercent float64 `json:"total_pnl_percent"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossLoss       float64 `json:"gross_loss"`
	ProfitFactor    float64 `json:"profit_factor"`

	// Averages
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	ExpectedValue float64 `json:"expected_value"`

	// Risk, from the equity curve
	MaxDrawdown        float64 `json:"max_drawdown"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`

	// Duration
	AvgBarsHeld float64 `json:"avg_bars_held"`
}

func (r *Results) Calculate() *Statistics {
	// Return cached if already calculated
	if r.stats != nil {
		return r.stats
	}

	stats := &Statistics{
		TotalTrades:        len(r.Trades),
		TotalPnL:           r.FinalCapital - r.InitialCapital,
		TotalPnLPercent:    r.TotalReturnPct,
		MaxDrawdown:        maxDrawdownAbs(r.EquityCurve),
		MaxDrawdownPercent: r.MaxDrawdownPct,
	}

	if len(r.Trades) == 0 {
		r.stats = stats
		return stats
	}

	var totalWin, totalLoss float64
	var totalBars, closed int

	for _, trade := range r.Trades {
		if trade.Open() {
			continue
		}
		closed++
		pnl := *trade.PnL

		// Win/Loss counting
		if pnl > 0 {
			stats.WinningTrades++
			totalWin += pnl
		} else if pnl < 0 {
			stats.LosingTrades++
			totalLoss += pnl // Already negative
		}

		totalBars += trade.BarsHeld()
	}

	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100

	stats.GrossProfit = totalWin
	stats.GrossLoss = totalLoss

	if totalLoss != 0 {
		stats.ProfitFactor = totalWin / -totalLoss
	}

	if stats.WinningTrades > 0 {
		stats.AvgWin = totalWin / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = totalLoss / float64(stats.LosingTrades)
	}
	stats.ExpectedValue = stats.TotalPnL / float64(stats.TotalTrades)

	if closed > 0 {
		stats.AvgBarsHeld = float64(totalBars) / float64(closed)
	}

	r.stats = stats
	return stats
}

// maxDrawdownAbs is the largest fall from a running equity peak, in currency.
func maxDrawdownAbs(curve []EquityPoint) float64 {
	var maxDD float64
	peak := math.Inf(-1)
	for _, p := range curve {
		peak = math.Max(peak, p.Value)
		if dd := peak - p.Value; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func (s *Statistics) Print() {
	fmt.Println("\n=== Backtest Results ===")
	fmt.Printf("Total Trades:     %d\n", s.TotalTrades)
	fmt.Printf("Winning Trades:   %d (%.2f%%)\n", s.WinningTrades, s.WinRate)
	fmt.Printf("Losing Trades:    %d\n\n", s.LosingTrades)

	fmt.Printf("Total P&L:        %.2f (%.2f%%)\n", s.TotalPnL, s.TotalPnLPercent)
	fmt.Printf("Gross Profit:     %.2f\n", s.GrossProfit)
	fmt.Printf("Gross Loss:       %.2f\n", s.GrossLoss)
	fmt.Printf("Profit Factor:    %.2f\n\n", s.ProfitFactor)

	fmt.Printf("Avg Win:          %.2f\n", s.AvgWin)
	fmt.Printf("Avg Loss:         %.2f\n", s.AvgLoss)
	fmt.Printf("Expected Value:   %.2f per trade\n\n", s.ExpectedValue)

	fmt.Printf("Max Drawdown:     %.2f (%.2f%%)\n", s.MaxDrawdown, s.MaxDrawdownPercent)
	fmt.Printf("Avg Bars Held:    %.1f\n", s.AvgBarsHeld)
}

func (r *Results) PrintTrades() {
	fmt.Println("\n=== Trade List ===")
	for _, trade := range r.Trades {
		trade.Print()
	}
}

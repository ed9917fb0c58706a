package data

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/jwtly10/tradedsl/internal/account"
	"github.com/jwtly10/tradedsl/internal/backtest"
)

// WriteTradesCSV writes one row per trade. Times are those of the fill bars.
// Exit columns are empty for an open trade.
func WriteTradesCSV(w io.Writer, trades []account.Trade) error {
	cw := csv.NewWriter(w)

	_ = cw.Write([]string{
		"id", "entry_bar", "entry_fill_bar", "entry_time", "entry_price",
		"exit_bar", "exit_fill_bar", "exit_time", "exit_price",
		"shares", "pnl", "return_pct", "exit_reason",
	})
	for _, t := range trades {
		row := []string{
			strconv.Itoa(t.ID),
			strconv.Itoa(t.EntryBar.Index), strconv.Itoa(t.EntryFillBar.Index),
			t.EntryFillBar.Time.Format(time.RFC3339), formatF(t.EntryPrice),
			"", "", "", "",
			formatF(t.Shares), "", "", t.ExitReason,
		}
		if !t.Open() {
			row[5] = strconv.Itoa(t.ExitBar.Index)
			row[6] = strconv.Itoa(t.ExitFillBar.Index)
			row[7] = t.ExitFillBar.Time.Format(time.RFC3339)
			row[8] = formatF(*t.ExitPrice)
			row[10] = formatF(*t.PnL)
			row[11] = formatF(*t.ReturnPct)
		}
		_ = cw.Write(row)
	}

	cw.Flush()
	return cw.Error()
}

func WriteEquityCSV(w io.Writer, curve []backtest.EquityPoint) error {
	cw := csv.NewWriter(w)

	_ = cw.Write([]string{"index", "time", "equity"})
	for _, p := range curve {
		_ = cw.Write([]string{strconv.Itoa(p.Bar.Index), p.Bar.Time.Format(time.RFC3339), formatF(p.Value)})
	}

	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

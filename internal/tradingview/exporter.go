package tradingview

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jwtly10/tradedsl/internal/account"
)

// DumpPineScript writes trade markers to w when enabled (DEBUG_DUMP=1).
func DumpPineScript(w io.Writer, trades []account.Trade, enabled bool) error {
	if !enabled {
		return nil
	}
	slog.Info("DEBUG_DUMP=1, dumping pine script", "trades", len(trades))

	_, err := io.WriteString(w, generateTradePinescript(trades))
	return err
}

// generateTradePinescript generates the Pine Script code for visualizing trades on a chart.
// Entries are marked at the fill bar. Open trades only get an entry marker; losing exits are red.
func generateTradePinescript(trades []account.Trade) string {
	var sb strings.Builder

	sb.WriteString("// ============================================\n")
	sb.WriteString("// TRADE VALIDATION MARKERS\n")
	sb.WriteString("// ============================================\n\n")

	for _, trade := range trades {
		// Entry marker
		entryTimestamp := formatPineTimestamp(trade.EntryFillBar.Time)
		entryText := fmt.Sprintf("#%d LONG\\nEntry: %.5f\\nShares: %.4f",
			trade.ID, trade.EntryPrice, trade.Shares)

		sb.WriteString(fmt.Sprintf("t%d_entry = time == %s\n", trade.ID, entryTimestamp))
		sb.WriteString(fmt.Sprintf("plotshape(t%d_entry, title=\"#%d LONG Entry\", location=location.bottom, color=color.blue, style=shape.labelup, size=size.small, text=\"%s\", textcolor=color.white)\n\n",
			trade.ID, trade.ID, entryText))

		if trade.Open() {
			continue
		}

		// Exit marker
		exitTimestamp := formatPineTimestamp(trade.ExitFillBar.Time)
		exitColor := "color.green"
		if *trade.PnL < 0 {
			exitColor = "color.red"
		}
		exitText := fmt.Sprintf("#%d EXIT\\nExit: %.5f\\nP&L: %.2f\\n%s",
			trade.ID, *trade.ExitPrice, *trade.PnL, trade.ExitReason)

		sb.WriteString(fmt.Sprintf("t%d_exit = time == %s\n", trade.ID, exitTimestamp))
		sb.WriteString(fmt.Sprintf("plotshape(t%d_exit, title=\"#%d EXIT\", location=location.top, color=%s, style=shape.labeldown, size=size.small, text=\"%s\", textcolor=color.white)\n\n",
			trade.ID, trade.ID, exitColor, exitText))
	}

	return sb.String()
}

func formatPineTimestamp(t time.Time) string {
	utc := t.UTC()
	return fmt.Sprintf("timestamp(\"UTC\", %d, %d, %d, %d, %d)",
		utc.Year(), int(utc.Month()), utc.Day(), utc.Hour(), utc.Minute())
}

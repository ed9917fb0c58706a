package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/jwtly10/tradedsl/internal/account"
	"github.com/jwtly10/tradedsl/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TimeFromString(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// seriesFrom builds 15 minute bars where open and close follow the given prices.
func seriesFrom(opens, closes []float64) *types.Series {
	start := TimeFromString("2024-01-01T00:00:00Z")
	bars := make([]types.Bar, len(closes))
	for i := range closes {
		bars[i] = types.Bar{
			Timestamp: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:      opens[i],
			High:      max(opens[i], closes[i]),
			Low:       min(opens[i], closes[i]),
			Close:     closes[i],
			Volume:    1000,
		}
	}
	return types.MustSeries(bars)
}

func signalsFrom(entry, exit string) types.Signals {
	s := types.NewSignals(len(entry))
	for i := range entry {
		s.Entry[i] = entry[i] == '1'
		s.Exit[i] = exit[i] == '1'
	}
	return s
}

func runEngine(t *testing.T, series *types.Series, cfg Config, signals types.Signals) *Results {
	t.Helper()
	engine, err := NewEngine(series, cfg)
	require.NoError(t, err)
	results, err := engine.Run(signals)
	require.NoError(t, err)
	return results
}

func TestEngine_EntryFillsNextOpenAndLiquidatesAtEnd(t *testing.T) {
	prices := []float64{10, 11, 9, 12, 15}
	series := seriesFrom(prices, prices)

	results := runEngine(t, series, DefaultConfig(), signalsFrom("01000", "00000"))

	require.Len(t, results.Trades, 1)
	trade := results.Trades[0]
	assert.Equal(t, 1, trade.EntryBar.Index)
	assert.Equal(t, 2, trade.EntryFillBar.Index)
	assert.Equal(t, 9.0, trade.EntryPrice)
	require.NotNil(t, trade.ExitPrice)
	assert.Equal(t, 15.0, *trade.ExitPrice)
	assert.Equal(t, account.ExitEndOfData, trade.ExitReason)
	assert.Greater(t, *trade.PnL, 0.0)

	shares := 100000.0 / 9
	assert.InDelta(t, shares*6, *trade.PnL, 1e-6)
	assert.InDelta(t, 100000+shares*6, results.FinalCapital, 1e-6)
	assert.InDelta(t, shares*6/100000*100, results.TotalReturnPct, 1e-9)
	// The position is marked at bar 1's close (11) before its fill at 9.
	assert.InDelta(t, (9.0/11-1)*100, results.MaxDrawdownPct, 1e-9)
	assert.Equal(t, 1, results.TradeCount)
}

func TestEngine_ExitOnSignal(t *testing.T) {
	prices := []float64{10, 11, 9, 12, 15}
	series := seriesFrom(prices, prices)

	results := runEngine(t, series, DefaultConfig(), signalsFrom("01000", "00100"))

	require.Len(t, results.Trades, 1)
	trade := results.Trades[0]
	assert.Equal(t, 2, trade.ExitBar.Index)
	assert.Equal(t, 3, trade.ExitFillBar.Index)
	assert.Equal(t, 12.0, *trade.ExitPrice)
	assert.Equal(t, account.ExitSignal, trade.ExitReason)
	assert.Equal(t, 1, trade.BarsHeld())
}

func TestEngine_CommissionAndSlippage(t *testing.T) {
	prices := []float64{10, 10, 20, 20}
	series := seriesFrom(prices, prices)
	cfg := Config{InitialCapital: 1000, Slippage: 1, Commission: 5}

	results := runEngine(t, series, cfg, signalsFrom("1000", "0010"))

	require.Len(t, results.Trades, 1)
	trade := results.Trades[0]
	assert.Equal(t, 11.0, trade.EntryPrice, "entry pays slippage")
	assert.Equal(t, 19.0, *trade.ExitPrice, "exit gives up slippage")

	shares := 1000.0 / 11
	wantPnL := shares*19 - shares*11 - 5
	assert.InDelta(t, shares, trade.Shares, 1e-9)
	assert.InDelta(t, wantPnL, *trade.PnL, 1e-9)
	assert.InDelta(t, wantPnL/(shares*11)*100, *trade.ReturnPct, 1e-9)
	assert.InDelta(t, 1000+wantPnL, results.FinalCapital, 1e-9, "final capital is initial plus realised pnl")
}

func TestEngine_ExitTakesPrecedenceOverEntry(t *testing.T) {
	prices := []float64{10, 10, 10, 10}
	series := seriesFrom(prices, prices)

	// Both signals fire on every bar: the engine alternates open and close, never both in one bar.
	results := runEngine(t, series, DefaultConfig(), signalsFrom("1111", "1111"))

	require.Len(t, results.Trades, 2)
	for _, trade := range results.Trades {
		assert.Equal(t, trade.EntryBar.Index+1, trade.ExitBar.Index)
		assert.Equal(t, account.ExitSignal, trade.ExitReason)
	}
	assert.Equal(t, 0, results.Trades[0].EntryBar.Index)
	assert.Equal(t, 2, results.Trades[1].EntryBar.Index)
}

func TestEngine_EntryOnLastBarFillsAtClose(t *testing.T) {
	series := seriesFrom([]float64{10, 10, 10}, []float64{10, 10, 12})
	cfg := Config{InitialCapital: 1200, Commission: 3}

	results := runEngine(t, series, cfg, signalsFrom("001", "000"))

	require.Len(t, results.Trades, 1)
	trade := results.Trades[0]
	assert.Equal(t, 2, trade.EntryFillBar.Index)
	assert.Equal(t, 12.0, trade.EntryPrice)
	assert.Equal(t, 12.0, *trade.ExitPrice)
	assert.InDelta(t, -3.0, *trade.PnL, 1e-9)
	assert.InDelta(t, 1197.0, results.FinalCapital, 1e-9)
	assert.InDelta(t, 1197.0, results.EquityCurve[2].Value, 1e-9, "liquidation overwrites the last equity point")
}

func TestEngine_EquityContinuityAndDrawdown(t *testing.T) {
	prices := []float64{10, 10, 5, 10, 8}
	series := seriesFrom(prices, prices)

	results := runEngine(t, series, DefaultConfig(), signalsFrom("10000", "00000"))

	require.Len(t, results.EquityCurve, series.Len())
	for i, p := range results.EquityCurve {
		assert.Equal(t, i, p.Bar.Index)
	}
	assert.Equal(t, results.FinalCapital, results.EquityCurve[len(results.EquityCurve)-1].Value)
	assert.InDelta(t, -50.0, results.MaxDrawdownPct, 1e-9)
	assert.LessOrEqual(t, results.MaxDrawdownPct, 0.0)
}

func TestEngine_SingleOpenPosition(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 12, 11, 10, 11}
	series := seriesFrom(prices, prices)
	signals := signalsFrom("11011011", "00100100")

	engine, err := NewEngine(series, DefaultConfig())
	require.NoError(t, err)
	results, err := engine.Run(signals)
	require.NoError(t, err)

	for i, trade := range results.Trades {
		assert.False(t, trade.Open(), "trade %d is still open after the run", i)
		if i > 0 {
			prev := results.Trades[i-1]
			assert.GreaterOrEqual(t, trade.EntryFillBar.Index, prev.ExitFillBar.Index, "trade %d overlaps the previous one", i)
		}
	}
}

func TestEngine_ZeroPriceEntryIsSkipped(t *testing.T) {
	series := seriesFrom([]float64{10, 0, 10}, []float64{10, 10, 10})

	results := runEngine(t, series, DefaultConfig(), signalsFrom("100", "000"))

	assert.Empty(t, results.Trades)
	assert.Equal(t, DefaultInitialCapital, results.FinalCapital)
}

func TestEngine_EmptySeries(t *testing.T) {
	series := types.MustSeries(nil)

	results := runEngine(t, series, DefaultConfig(), types.NewSignals(0))

	assert.Empty(t, results.Trades)
	assert.Empty(t, results.EquityCurve)
	assert.Equal(t, DefaultInitialCapital, results.FinalCapital)
	assert.Equal(t, 0.0, results.TotalReturnPct)
	assert.Equal(t, 0.0, results.MaxDrawdownPct)
}

func TestEngine_ShapeMismatch(t *testing.T) {
	prices := []float64{10, 11, 12}
	engine, err := NewEngine(seriesFrom(prices, prices), DefaultConfig())
	require.NoError(t, err)

	_, err = engine.Run(signalsFrom("01", "00"))

	var shapeErr *ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 3, shapeErr.Bars)
	assert.Equal(t, 2, shapeErr.Entry)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{}.Validate(), "zero capital falls back to the default")
	assert.Error(t, Config{InitialCapital: -1}.Validate())
	assert.Error(t, Config{InitialCapital: 10, Slippage: -0.1}.Validate())
	assert.Error(t, Config{InitialCapital: 10, Commission: -1}.Validate())

	engine, err := NewEngine(types.MustSeries(nil), Config{Slippage: 0.5})
	require.NoError(t, err)
	assert.Equal(t, DefaultInitialCapital, engine.Config().InitialCapital)
	assert.Equal(t, 0.5, engine.Config().Slippage)
}

func TestResults_Calculate(t *testing.T) {
	prices := []float64{10, 10, 20, 20, 10, 10, 5, 5}
	series := seriesFrom(prices, prices)

	// Win 10 -> 20, then lose 10 -> 5.
	results := runEngine(t, series, Config{InitialCapital: 1000}, signalsFrom("10001000", "00100010"))
	stats := results.Calculate()

	assert.Equal(t, 2, stats.TotalTrades)
	assert.Equal(t, 1, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.Equal(t, 50.0, stats.WinRate)
	assert.InDelta(t, 1000.0, stats.GrossProfit, 1e-9)
	assert.InDelta(t, -1000.0, stats.GrossLoss, 1e-9)
	assert.InDelta(t, 1.0, stats.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.0, stats.TotalPnL, 1e-9)
	assert.InDelta(t, 2.0, stats.AvgBarsHeld, 1e-9)
	assert.InDelta(t, 1000.0, stats.MaxDrawdown, 1e-9)
	assert.InDelta(t, -50.0, stats.MaxDrawdownPercent, 1e-9)

	assert.Same(t, stats, results.Calculate(), "statistics are cached")
}

func TestConfig_With(t *testing.T) {
	base := Config{InitialCapital: 1000, Slippage: 0.5, Commission: 2}
	slippage, zero := 1.0, 0.0

	assert.Equal(t, base, base.With(Overrides{}))
	assert.Equal(t, Config{InitialCapital: 1000, Slippage: 1, Commission: 2}, base.With(Overrides{Slippage: &slippage}))
	assert.Equal(t, Config{InitialCapital: 1000, Slippage: 0.5, Commission: 0}, base.With(Overrides{Commission: &zero}),
		"an explicit zero still overrides")
}

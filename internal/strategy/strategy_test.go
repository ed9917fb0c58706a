package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jwtly10/tradedsl/internal/account"
	"github.com/jwtly10/tradedsl/internal/backtest"
	"github.com/jwtly10/tradedsl/internal/compiler"
	"github.com/jwtly10/tradedsl/internal/dsl"
	"github.com/jwtly10/tradedsl/internal/rules"
	"github.com/jwtly10/tradedsl/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fiveBars() *types.Series {
	prices := []float64{10, 11, 9, 12, 15}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(prices))
	for i, p := range prices {
		bars[i] = types.Bar{Timestamp: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, Volume: 100}
	}
	return types.MustSeries(bars)
}

func TestStrategy_FiveBarScenario(t *testing.T) {
	s, err := New("scenario", "ENTRY: close > 10\nEXIT: close < 5")
	require.NoError(t, err)

	results, err := s.Backtest(context.Background(), fiveBars(), backtest.DefaultConfig())
	require.NoError(t, err)

	require.Len(t, results.Trades, 1)
	trade := results.Trades[0]
	assert.Equal(t, 1, trade.EntryBar.Index)
	assert.Equal(t, 9.0, trade.EntryPrice)
	assert.Equal(t, 15.0, *trade.ExitPrice)
	assert.Equal(t, account.ExitEndOfData, trade.ExitReason)
	assert.Greater(t, *trade.PnL, 0.0)
}

func TestStrategy_ExitSignalThenReentry(t *testing.T) {
	// close < 10 fires on bar 2, so the first trade exits at bar 3's open and bar 3 re-enters.
	s, err := New("scenario", "ENTRY: close > 10\nEXIT: close < 10")
	require.NoError(t, err)

	results, err := s.Backtest(context.Background(), fiveBars(), backtest.DefaultConfig())
	require.NoError(t, err)

	require.Len(t, results.Trades, 2)
	assert.Equal(t, 12.0, *results.Trades[0].ExitPrice)
	assert.Equal(t, account.ExitSignal, results.Trades[0].ExitReason)
	assert.Equal(t, 15.0, results.Trades[1].EntryPrice)
	assert.InDelta(t, 100000+100000.0/9*3, results.FinalCapital, 1e-6)
}

func TestStrategy_Signals(t *testing.T) {
	s, err := New("cross", "ENTRY: close crosses_above 10.5 OR close[1] > 11\nEXIT: close < close[1]")
	require.Error(t, err, "numbers are not allowed in a cross")

	s, err = New("lag", "ENTRY: close[1] > 10\nEXIT: close < close[1]")
	require.NoError(t, err)

	signals, err := s.Signals(context.Background(), fiveBars())
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true, false, true}, signals.Entry)
	assert.Equal(t, []bool{false, false, true, false, false}, signals.Exit)
}

func TestFromObject(t *testing.T) {
	s, err := FromObject("obj", rules.Object{
		Entry: []rules.Condition{{Left: "close", Operator: ">", Right: "10"}},
		Exit:  []rules.Condition{{Left: "close", Operator: "<", Right: "5"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ENTRY: close > 10\nEXIT: close < 5", s.Text)
	assert.Equal(t, "close > 10", s.Rules.Entry.String())
}

func TestFromDefinition(t *testing.T) {
	s, err := FromDefinition(rules.Strategy{
		ID:             "id-1",
		Name:           "def",
		Rules:          "ENTRY: close > 10",
		Overrides: backtest.Overrides{
			InitialCapital: ptr(500.0),
			Commission:     ptr(1.0),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", s.ID)
	assert.Equal(t, backtest.Config{InitialCapital: 500, Commission: 1}, s.Config)
	assert.Nil(t, s.Rules.Exit)

	_, err = FromDefinition(rules.Strategy{Name: "bad", Rules: "ENTRY: close >"})
	var syntaxErr *dsl.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
}

func TestStrategy_CompileErrors(t *testing.T) {
	s, err := New("wma", "ENTRY: WMA(close, 3) > 10")
	require.NoError(t, err, "indicator names are checked at compile time")

	_, err = s.Backtest(context.Background(), fiveBars(), backtest.DefaultConfig())
	var unknown *compiler.UnknownIndicatorError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "wma", unknown.Name)

	_, err = s.Backtest(context.Background(), fiveBars(), backtest.Config{Slippage: -1})
	assert.Error(t, err)
}

func TestBacktestAll(t *testing.T) {
	a, err := New("a", "ENTRY: close > 10\nEXIT: close < 5")
	require.NoError(t, err)
	b, err := New("b", "ENTRY: close > 100")
	require.NoError(t, err)
	b.Config = backtest.Config{InitialCapital: 10}

	results, err := BacktestAll(context.Background(), []*Strategy{a, b}, fiveBars())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, results[0].Trades, 1)
	assert.Empty(t, results[1].Trades)
	assert.Equal(t, 10.0, results[1].FinalCapital)

	bad, err := New("bad", "ENTRY: foo > 1")
	require.NoError(t, err)
	_, err = BacktestAll(context.Background(), []*Strategy{a, bad}, fiveBars())
	assert.ErrorContains(t, err, `strategy "bad"`)
}

func ptr[T any](v T) *T { return &v }

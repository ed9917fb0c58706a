package backtest

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/jwtly10/tradedsl/internal/account"
	"github.com/jwtly10/tradedsl/internal/logging"
	"github.com/jwtly10/tradedsl/internal/types"
)

const DefaultInitialCapital = 100000.0

var engineLog = logging.New("backtest")

// Config holds the simulation parameters. A zero InitialCapital means DefaultInitialCapital.
type Config struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	Slippage       float64 `json:"slippage" yaml:"slippage"`
	Commission     float64 `json:"commission" yaml:"commission"`
}

func DefaultConfig() Config {
	return Config{InitialCapital: DefaultInitialCapital}
}

// Overrides replaces individual Config fields. Nil fields keep the base value.
type Overrides struct {
	InitialCapital *float64 `json:"initial_capital,omitempty" yaml:"initial_capital"`
	Slippage       *float64 `json:"slippage,omitempty" yaml:"slippage"`
	Commission     *float64 `json:"commission,omitempty" yaml:"commission"`
}

// With returns c with every set field of o applied.
func (c Config) With(o Overrides) Config {
	if o.InitialCapital != nil {
		c.InitialCapital = *o.InitialCapital
	}
	if o.Slippage != nil {
		c.Slippage = *o.Slippage
	}
	if o.Commission != nil {
		c.Commission = *o.Commission
	}
	return c
}

func (c Config) withDefaults() Config {
	if c.InitialCapital == 0 {
		c.InitialCapital = DefaultInitialCapital
	}
	return c
}

func (c Config) Validate() error {
	c = c.withDefaults()
	if !(c.InitialCapital > 0) {
		return fmt.Errorf("initial capital must be positive, got %v", c.InitialCapital)
	}
	if !(c.Slippage >= 0) {
		return fmt.Errorf("slippage must not be negative, got %v", c.Slippage)
	}
	if !(c.Commission >= 0) {
		return fmt.Errorf("commission must not be negative, got %v", c.Commission)
	}
	return nil
}

// ShapeMismatchError reports signal series whose lengths differ from the bar count.
type ShapeMismatchError struct {
	Bars  int
	Entry int
	Exit  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %d bars, %d entry signals, %d exit signals", e.Bars, e.Entry, e.Exit)
}

type Engine struct {
	series *types.Series
	cfg    Config
}

func NewEngine(series *types.Series, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		series: series,
		cfg:    cfg.withDefaults(),
	}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Run walks the bars once in order. Signals on bar i fill at the open of bar i+1,
// or at the close of bar i when it is the last bar.
func (e *Engine) Run(signals types.Signals) (*Results, error) {
	n := e.series.Len()
	if len(signals.Entry) != n || len(signals.Exit) != n {
		return nil, &ShapeMismatchError{Bars: n, Entry: len(signals.Entry), Exit: len(signals.Exit)}
	}

	acc := account.NewAccount(e.cfg.InitialCapital, e.cfg.Slippage, e.cfg.Commission)
	results := &Results{
		InitialCapital: e.cfg.InitialCapital,
		Trades:         []account.Trade{},
		EquityCurve:    make([]EquityPoint, 0, n),
	}

	slog.Debug("Starting backtest", "initial_capital", e.cfg.InitialCapital, "total_bars", n)

	for i := 0; i < n; i++ {
		bar := e.series.Bar(i)
		engineLog.Debug("Processing bar", "index", i, "timestamp", bar.Timestamp, "open", bar.Open, "close", bar.Close)

		fillRef, fillPrice := e.fill(i)
		if !acc.Flat() {
			if signals.Exit[i] {
				acc.Close(e.series.Ref(i), fillRef, fillPrice, account.ExitSignal)
			}
		} else if signals.Entry[i] {
			acc.Open(e.series.Ref(i), fillRef, fillPrice)
		}

		results.EquityCurve = append(results.EquityCurve, EquityPoint{
			Bar:   e.series.Ref(i),
			Value: acc.Equity(bar.Close),
		})
	}

	if n > 0 {
		// Close anything at the end
		last := e.series.Bar(n - 1)
		if closed := acc.CloseAll(e.series.Ref(n-1), last.Close); len(closed) > 0 {
			results.EquityCurve[n-1].Value = acc.Cash
		}
	}

	results.Trades = acc.Trades()
	results.TradeCount = len(results.Trades)
	results.FinalCapital = e.cfg.InitialCapital
	if n > 0 {
		results.FinalCapital = results.EquityCurve[n-1].Value
	}
	results.TotalReturnPct = (results.FinalCapital - results.InitialCapital) / results.InitialCapital * 100
	results.MaxDrawdownPct = maxDrawdownPct(results.EquityCurve)

	slog.Debug("Finished backtest", "trades", results.TradeCount, "final_capital", results.FinalCapital)
	return results, nil
}

// fill returns the bar and price an order signalled on bar i executes at.
func (e *Engine) fill(i int) (types.BarRef, float64) {
	if i+1 < e.series.Len() {
		return e.series.Ref(i + 1), e.series.Bar(i + 1).Open
	}
	return e.series.Ref(i), e.series.Bar(i).Close
}

// maxDrawdownPct is the most negative (equity - runningMax) / runningMax, times 100.
func maxDrawdownPct(curve []EquityPoint) float64 {
	worst := 0.0
	peak := math.Inf(-1)
	for _, p := range curve {
		peak = math.Max(peak, p.Value)
		if peak <= 0 {
			continue
		}
		if dd := (p.Value - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst * 100
}

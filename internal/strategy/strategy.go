package strategy

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jwtly10/tradedsl/internal/ast"
	"github.com/jwtly10/tradedsl/internal/backtest"
	"github.com/jwtly10/tradedsl/internal/compiler"
	"github.com/jwtly10/tradedsl/internal/logging"
	"github.com/jwtly10/tradedsl/internal/rules"
	"github.com/jwtly10/tradedsl/internal/types"
)

var strategyLog = logging.New("strategy")

// Strategy is a named, parsed rule set. It is immutable and safe to share.
type Strategy struct {
	ID    string
	Name  string
	Text  string
	Rules ast.RuleSet

	// Config is the backtest configuration from the strategy definition, if any.
	Config backtest.Config
}

// New parses rule text into a strategy.
func New(name, text string) (*Strategy, error) {
	rs, err := ast.ParseRuleSet(text)
	if err != nil {
		return nil, err
	}
	return &Strategy{
		ID:     name,
		Name:   name,
		Text:   text,
		Rules:  rs,
		Config: backtest.DefaultConfig(),
	}, nil
}

// FromObject formats a rule object to text and parses it.
func FromObject(name string, obj rules.Object) (*Strategy, error) {
	return New(name, rules.Format(obj))
}

// FromDefinition builds a strategy from a strategy file entry, carrying its backtest settings.
func FromDefinition(def rules.Strategy) (*Strategy, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	s, err := New(def.Name, def.Text())
	if err != nil {
		return nil, fmt.Errorf("strategy %q: %w", def.Name, err)
	}
	if def.ID != "" {
		s.ID = def.ID
	}
	s.Config = backtest.DefaultConfig().With(def.Overrides)
	return s, nil
}

// Signals compiles the strategy's rules over series.
func (s *Strategy) Signals(ctx context.Context, series *types.Series) (types.Signals, error) {
	return compiler.CompileRuleSet(ctx, s.Rules, series)
}

// Backtest compiles signals and runs them through a fresh engine.
func (s *Strategy) Backtest(ctx context.Context, series *types.Series, cfg backtest.Config) (*backtest.Results, error) {
	engine, err := backtest.NewEngine(series, cfg)
	if err != nil {
		return nil, err
	}
	signals, err := s.Signals(ctx, series)
	if err != nil {
		return nil, err
	}

	strategyLog.Info("Running backtest", "strategy", s.Name, "bars", series.Len())
	return engine.Run(signals)
}

// BacktestAll runs every strategy over the same series with its own Config.
// Results are returned in the order of strategies.
func BacktestAll(ctx context.Context, strategies []*Strategy, series *types.Series) ([]*backtest.Results, error) {
	results := make([]*backtest.Results, len(strategies))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		g.Go(func() error {
			r, err := s.Backtest(gctx, series, s.Config)
			if err != nil {
				return fmt.Errorf("strategy %q: %w", s.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

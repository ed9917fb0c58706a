// Package compiler lowers expression trees into per-bar series over an OHLCV dataset.
//
// Every entry point validates the whole tree before touching data, so structural
// problems (unknown names, type mismatches) surface as errors up front and
// evaluation itself cannot fail. Values that are not yet available are NaN in
// numeric series and make comparisons and crosses false.
package compiler

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/jwtly10/tradedsl/internal/ast"
	"github.com/jwtly10/tradedsl/internal/logging"
	"github.com/jwtly10/tradedsl/internal/types"
)

var compilerLog = logging.New("compiler")

// Value is an evaluated node. Exactly one of Numeric or Boolean is set, matching Kind.
type Value struct {
	Kind    Kind
	Numeric []float64
	Boolean []bool
}

// Evaluator evaluates validated trees. When Parallel is set, sibling subtrees are
// evaluated on separate goroutines and joined before the parent operator is applied.
type Evaluator struct {
	Parallel bool
}

var defaultEvaluator = &Evaluator{Parallel: true}

// Evaluate validates and evaluates n over data using the default parallel evaluator.
func Evaluate(ctx context.Context, n ast.Node, data *types.Series) (Value, error) {
	return defaultEvaluator.Evaluate(ctx, n, data)
}

// CompileRuleSet evaluates both sections of a rule set into entry/exit signals.
func CompileRuleSet(ctx context.Context, rules ast.RuleSet, data *types.Series) (types.Signals, error) {
	return defaultEvaluator.CompileRuleSet(ctx, rules, data)
}

func (e *Evaluator) Evaluate(ctx context.Context, n ast.Node, data *types.Series) (Value, error) {
	kind, err := Validate(n)
	if err != nil {
		return Value{}, err
	}

	if kind == KindBoolean {
		out, err := e.boolean(ctx, n, data)
		return Value{Kind: kind, Boolean: out}, err
	}
	out, err := e.numeric(ctx, n, data)
	return Value{Kind: kind, Numeric: out}, err
}

// CompileRuleSet validates both sections, then evaluates them. Each section must be
// boolean. A nil section yields an all-false series.
func (e *Evaluator) CompileRuleSet(ctx context.Context, rules ast.RuleSet, data *types.Series) (types.Signals, error) {
	if err := ValidateRuleSet(rules); err != nil {
		return types.Signals{}, err
	}

	signals := types.NewSignals(data.Len())
	section := func(n ast.Node, dst *[]bool) func(context.Context) error {
		return func(ctx context.Context) error {
			if n == nil {
				return nil
			}
			out, err := e.boolean(ctx, n, data)
			if err != nil {
				return err
			}
			*dst = out
			return nil
		}
	}
	if err := e.pair(ctx, section(rules.Entry, &signals.Entry), section(rules.Exit, &signals.Exit)); err != nil {
		return types.Signals{}, err
	}

	compilerLog.Debug("Compiled rule set", "rules", rules.String(), "bars", data.Len())
	return signals, nil
}

// pair runs two independent computations, concurrently when the evaluator is parallel.
func (e *Evaluator) pair(ctx context.Context, left, right func(context.Context) error) error {
	if !e.Parallel {
		if err := left(ctx); err != nil {
			return err
		}
		return right(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return left(gctx) })
	g.Go(func() error { return right(gctx) })
	return g.Wait()
}

func (e *Evaluator) numericPair(ctx context.Context, l, r ast.Node, data *types.Series) ([]float64, []float64, error) {
	var left, right []float64
	err := e.pair(ctx,
		func(ctx context.Context) (err error) { left, err = e.numeric(ctx, l, data); return },
		func(ctx context.Context) (err error) { right, err = e.numeric(ctx, r, data); return },
	)
	return left, right, err
}

func (e *Evaluator) booleanPair(ctx context.Context, l, r ast.Node, data *types.Series) ([]bool, []bool, error) {
	var left, right []bool
	err := e.pair(ctx,
		func(ctx context.Context) (err error) { left, err = e.boolean(ctx, l, data); return },
		func(ctx context.Context) (err error) { right, err = e.boolean(ctx, r, data); return },
	)
	return left, right, err
}

func (e *Evaluator) numeric(ctx context.Context, n ast.Node, data *types.Series) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch n := n.(type) {
	case *ast.Series:
		col, ok := data.Column(n.Name)
		if !ok {
			return nil, &UnknownSeriesError{Name: n.Name}
		}
		return shift(col, n.Lag), nil

	case *ast.Constant:
		out := make([]float64, data.Len())
		for i := range out {
			out[i] = n.Value
		}
		return out, nil

	case *ast.Indicator:
		fn, ok := LookupIndicator(n.Name)
		if !ok {
			return nil, &UnknownIndicatorError{Name: n.Name}
		}
		operand, err := e.numeric(ctx, n.Operand, data)
		if err != nil {
			return nil, err
		}
		return fn(operand, n.Period), nil

	default:
		return nil, &TypeMismatchError{Node: fmt.Sprintf("%T", n), Want: KindNumeric, Got: KindBoolean}
	}
}

func (e *Evaluator) boolean(ctx context.Context, n ast.Node, data *types.Series) ([]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch n := n.(type) {
	case *ast.Comparison:
		left, right, err := e.numericPair(ctx, n.Left, n.Right, data)
		if err != nil {
			return nil, err
		}
		return compare(left, n.Op, right), nil

	case *ast.Cross:
		left, right, err := e.numericPair(ctx, n.Left, n.Right, data)
		if err != nil {
			return nil, err
		}
		return cross(left, n.Direction, right), nil

	case *ast.And:
		left, right, err := e.booleanPair(ctx, n.Left, n.Right, data)
		if err != nil {
			return nil, err
		}
		out := make([]bool, len(left))
		for i := range out {
			out[i] = left[i] && right[i]
		}
		return out, nil

	case *ast.Or:
		left, right, err := e.booleanPair(ctx, n.Left, n.Right, data)
		if err != nil {
			return nil, err
		}
		out := make([]bool, len(left))
		for i := range out {
			out[i] = left[i] || right[i]
		}
		return out, nil

	default:
		return nil, &TypeMismatchError{Node: fmt.Sprintf("%T", n), Want: KindBoolean, Got: KindNumeric}
	}
}

// shift moves col forward by lag bars: out[i] = col[i-lag], NaN for i < lag.
func shift(col []float64, lag int) []float64 {
	if lag == 0 {
		return col
	}
	out := make([]float64, len(col))
	for i := range out {
		if i < lag {
			out[i] = math.NaN()
		} else {
			out[i] = col[i-lag]
		}
	}
	return out
}

// compare relies on every ordered comparison with NaN being false.
func compare(left []float64, op ast.CompareOp, right []float64) []bool {
	out := make([]bool, len(left))
	for i := range out {
		l, r := left[i], right[i]
		switch op {
		case ast.OpGreater:
			out[i] = l > r
		case ast.OpLess:
			out[i] = l < r
		case ast.OpGreaterEqual:
			out[i] = l >= r
		case ast.OpLessEqual:
			out[i] = l <= r
		case ast.OpEqual:
			out[i] = l == r
		}
	}
	return out
}

// cross marks bars where left moves from at-or-below right to above it (or the
// reverse for Below). Bar 0 has no prior bar and is always false.
func cross(left []float64, dir ast.Direction, right []float64) []bool {
	out := make([]bool, len(left))
	for i := 1; i < len(out); i++ {
		prevL, prevR := left[i-1], right[i-1]
		curL, curR := left[i], right[i]
		if dir == ast.Above {
			out[i] = prevL <= prevR && curL > curR
		} else {
			out[i] = prevL >= prevR && curL < curR
		}
	}
	return out
}

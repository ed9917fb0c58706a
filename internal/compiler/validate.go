package compiler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jwtly10/tradedsl/internal/ast"
	"github.com/jwtly10/tradedsl/internal/indicators"
	"github.com/jwtly10/tradedsl/internal/types"
)

// Kind is the kind of series a node evaluates to.
type Kind int

const (
	KindNumeric Kind = iota + 1
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IndicatorFunc maps a numeric series and a period to an aligned numeric series.
type IndicatorFunc func(s []float64, period int) []float64

// registry is read-only after first use.
var registry = sync.OnceValue(func() map[string]IndicatorFunc {
	return map[string]IndicatorFunc{
		"sma": indicators.MovingAverage,
		"ema": indicators.ExponentialMovingAverage,
		"rsi": indicators.RelativeStrengthIndex,
	}
})

// LookupIndicator returns the indicator registered under a lower case name.
func LookupIndicator(name string) (IndicatorFunc, bool) {
	fn, ok := registry()[name]
	return fn, ok
}

var errNilNode = errors.New("compiler: nil expression node")

// Validate walks the tree once and returns the kind it evaluates to. It never looks at data.
func Validate(n ast.Node) (Kind, error) {
	switch n := n.(type) {
	case *ast.Series:
		if !types.IsColumn(n.Name) {
			return 0, &UnknownSeriesError{Name: n.Name}
		}
		if n.Lag < 0 {
			return 0, &InvalidParameterError{Node: n.String(), Msg: fmt.Sprintf("lag %d must not be negative", n.Lag)}
		}
		return KindNumeric, nil

	case *ast.Constant:
		return KindNumeric, nil

	case *ast.Indicator:
		if _, ok := LookupIndicator(n.Name); !ok {
			return 0, &UnknownIndicatorError{Name: n.Name}
		}
		if n.Period <= 0 {
			return 0, &InvalidParameterError{Node: n.String(), Msg: fmt.Sprintf("period %d must be positive", n.Period)}
		}
		if err := expect(n.Operand, KindNumeric, "indicator "+n.Name); err != nil {
			return 0, err
		}
		return KindNumeric, nil

	case *ast.Comparison:
		switch n.Op {
		case ast.OpGreater, ast.OpLess, ast.OpGreaterEqual, ast.OpLessEqual, ast.OpEqual:
		default:
			return 0, &InvalidParameterError{Node: "comparison", Msg: fmt.Sprintf("unknown operator %q", n.Op)}
		}
		if err := expect(n.Left, KindNumeric, "comparison"); err != nil {
			return 0, err
		}
		if err := expect(n.Right, KindNumeric, "comparison"); err != nil {
			return 0, err
		}
		return KindBoolean, nil

	case *ast.Cross:
		if n.Direction != ast.Above && n.Direction != ast.Below {
			return 0, &InvalidParameterError{Node: "cross", Msg: fmt.Sprintf("unknown direction %q", n.Direction)}
		}
		for _, side := range []ast.Node{n.Left, n.Right} {
			switch side.(type) {
			case *ast.Series, *ast.Indicator:
			case *ast.Constant:
				return 0, &TypeMismatchError{Node: "cross", Want: KindNumeric, Got: KindNumeric,
					Msg: "operands must be series or indicators, got constant " + side.String()}
			}
			if err := expect(side, KindNumeric, "cross"); err != nil {
				return 0, err
			}
		}
		return KindBoolean, nil

	case *ast.And:
		return validateLogical("AND", n.Left, n.Right)

	case *ast.Or:
		return validateLogical("OR", n.Left, n.Right)

	case nil:
		return 0, errNilNode

	default:
		return 0, fmt.Errorf("compiler: unsupported node %T", n)
	}
}

// ValidateRuleSet validates both sections of a rule set. Each present section must be boolean.
func ValidateRuleSet(rules ast.RuleSet) error {
	sections := []struct {
		name string
		node ast.Node
	}{
		{"entry", rules.Entry},
		{"exit", rules.Exit},
	}
	for _, s := range sections {
		if s.node == nil {
			continue
		}
		kind, err := Validate(s.node)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		if kind != KindBoolean {
			return &TypeMismatchError{Node: s.name + " section", Want: KindBoolean, Got: kind}
		}
	}
	return nil
}

func validateLogical(name string, left, right ast.Node) (Kind, error) {
	if err := expect(left, KindBoolean, name); err != nil {
		return 0, err
	}
	if err := expect(right, KindBoolean, name); err != nil {
		return 0, err
	}
	return KindBoolean, nil
}

func expect(n ast.Node, want Kind, parent string) error {
	got, err := Validate(n)
	if err != nil {
		return err
	}
	if got != want {
		return &TypeMismatchError{Node: parent, Want: want, Got: got}
	}
	return nil
}

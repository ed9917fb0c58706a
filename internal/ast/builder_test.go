package ast

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jwtly10/tradedsl/internal/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleSet_Canonical(t *testing.T) {
	rs, err := ParseRuleSet("ENTRY: (close > SMA(close, 20)) AND volume[1] >= 1000 EXIT: close crosses_below low[2]")
	require.NoError(t, err)

	expectedEntry := &And{
		Left: &Comparison{
			Left:  &Series{Name: "close"},
			Op:    OpGreater,
			Right: &Indicator{Name: "sma", Operand: &Series{Name: "close"}, Period: 20},
		},
		Right: &Comparison{
			Left:  &Series{Name: "volume", Lag: 1},
			Op:    OpGreaterEqual,
			Right: &Constant{Value: 1000},
		},
	}
	expectedExit := &Cross{
		Direction: Below,
		Left:      &Series{Name: "close"},
		Right:     &Series{Name: "low", Lag: 2},
	}

	assert.Equal(t, expectedEntry, rs.Entry)
	assert.Equal(t, expectedExit, rs.Exit)
}

func TestParseRuleSet_EntryOnly(t *testing.T) {
	rs, err := ParseRuleSet("ENTRY: RSI(close, 14) < 30")
	require.NoError(t, err)
	assert.NotNil(t, rs.Entry)
	assert.Nil(t, rs.Exit, "absent exit section never triggers")
}

func TestParseRuleSet_PropagatesSyntaxError(t *testing.T) {
	_, err := ParseRuleSet("ENTRY: close >")
	var syntaxErr *dsl.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
}

func TestBuildRuleSet_DuplicateSection(t *testing.T) {
	cond := func(n string) *dsl.Tree {
		return &dsl.Tree{
			Rule:  dsl.RuleComparison,
			Token: dsl.Token{Kind: dsl.TokenOp, Text: ">"},
			Children: []*dsl.Tree{
				{Rule: dsl.RuleSeries, Token: dsl.Token{Kind: dsl.TokenName, Text: "close"}},
				{Rule: dsl.RuleNumber, Token: dsl.Token{Kind: dsl.TokenNumber, Text: n, Int: true}},
			},
		}
	}
	tree := &dsl.Tree{
		Rule: dsl.RuleStart,
		Children: []*dsl.Tree{
			{Rule: dsl.RuleEntry, Children: []*dsl.Tree{cond("1")}},
			{Rule: dsl.RuleEntry, Children: []*dsl.Tree{cond("2")}},
		},
	}

	_, err := BuildRuleSet(tree)
	var astErr *AstError
	require.True(t, errors.As(err, &astErr))
	assert.Equal(t, "entry", astErr.Section)

	tree.Children[1] = &dsl.Tree{Rule: dsl.RuleExit, Children: []*dsl.Tree{cond("1"), cond("2")}}
	_, err = BuildRuleSet(tree)
	require.True(t, errors.As(err, &astErr))
	assert.Equal(t, "exit", astErr.Section)
}

func TestBuild_RejectsUnknownProduction(t *testing.T) {
	_, err := Build(&dsl.Tree{Rule: dsl.Rule("bogus")})
	var astErr *AstError
	assert.True(t, errors.As(err, &astErr))
}

func TestString_RoundTrip(t *testing.T) {
	inputs := []string{
		"ENTRY: close > SMA(close, 20) AND volume > 1000000\nEXIT: RSI(close, 14) < 30",
		"ENTRY: (close > 1 OR close < 2) AND open[3] == 4.5",
		"ENTRY: close crosses_above high[1] OR EMA(close, 9) crosses_below SMA(close, 21)",
	}
	for _, in := range inputs {
		rs, err := ParseRuleSet(in)
		require.NoError(t, err)

		again, err := ParseRuleSet(rs.String())
		require.NoError(t, err, "rendered text should parse: %s", rs.String())
		assert.Equal(t, rs, again)
	}
}

func TestMarshalJSON_TaggedShape(t *testing.T) {
	rs, err := ParseRuleSet("ENTRY: SMA(close[1], 5) > 10")
	require.NoError(t, err)

	raw, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"entry": {
			"type": "comparison",
			"operator": ">",
			"left": {"type": "indicator", "name": "sma", "period": 5, "operand": {"type": "series", "name": "close", "lag": 1}},
			"right": {"type": "constant", "value": 10}
		},
		"exit": null
	}`, string(raw))
}

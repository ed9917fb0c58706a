package rules

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	obj := Object{
		Entry: []Condition{
			{Left: "close", Operator: ">", Right: "SMA(close, 20)"},
			{Left: "RSI(close, 14)", Operator: "<", Right: "30"},
		},
		Exit: []Condition{
			{Left: "close", Operator: "crosses_below", Right: "SMA(close, 20)"},
		},
	}

	assert.Equal(t,
		"ENTRY: close > SMA(close, 20) AND RSI(close, 14) < 30\nEXIT: close crosses_below SMA(close, 20)",
		Format(obj))
}

func TestFormat_EmptySections(t *testing.T) {
	assert.Equal(t, "ENTRY: volume > 1000", Format(Object{
		Entry: []Condition{{Left: "volume", Operator: ">", Right: "1000"}},
	}))
	assert.Equal(t, "EXIT: close < 10", Format(Object{
		Exit: []Condition{{Left: "close", Operator: "<", Right: "10"}},
	}))
	assert.Equal(t, "", Format(Object{}))
}

func TestObject_UnmarshalJSONNumbers(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`{"entry":[{"left":"RSI(close, 14)","operator":"<","right":30}],"exit":[{"left":"close","operator":">","right":101.5}]}`), &obj)
	require.NoError(t, err)

	assert.Equal(t, Operand("30"), obj.Entry[0].Right)
	assert.Equal(t, Operand("101.5"), obj.Exit[0].Right)

	err = json.Unmarshal([]byte(`{"entry":[{"left":true,"operator":">","right":1}]}`), &obj)
	assert.Error(t, err)
}

const strategyFile = `
strategies:
  - id: sma-cross
    name: SMA cross
    rules: |
      ENTRY: SMA(close, 10) crosses_above SMA(close, 30)
      EXIT: SMA(close, 10) crosses_below SMA(close, 30)
    initial_capital: 50000
    slippage: 0.01
    commission: 1
  - name: oversold
    conditions:
      entry:
        - left: RSI(close, 14)
          operator: "<"
          right: 30
      exit:
        - left: RSI(close, 14)
          operator: ">"
          right: 70
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strategyFile), 0o644))

	strategies, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, strategies, 2)

	first := strategies[0]
	assert.Equal(t, "sma-cross", first.ID)
	require.NotNil(t, first.InitialCapital)
	assert.Equal(t, 50000.0, *first.InitialCapital)
	require.NotNil(t, first.Slippage)
	assert.Equal(t, 0.01, *first.Slippage)
	require.NotNil(t, first.Commission)
	assert.Equal(t, 1.0, *first.Commission)
	assert.Contains(t, first.Text(), "ENTRY: SMA(close, 10) crosses_above SMA(close, 30)")

	second := strategies[1]
	assert.Equal(t, "oversold", second.ID, "id defaults to the name")
	assert.Equal(t, "ENTRY: RSI(close, 14) < 30\nEXIT: RSI(close, 14) > 70", second.Text())
	assert.Nil(t, second.InitialCapital, "settings left out of the file stay unset")
	assert.Nil(t, second.Commission)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "strategies: [\n"},
		{"missing name", "strategies:\n  - rules: \"ENTRY: close > 1\"\n"},
		{"no rules", "strategies:\n  - name: empty\n"},
		{"both forms", "strategies:\n  - name: both\n    rules: \"ENTRY: close > 1\"\n    conditions:\n      entry:\n        - {left: close, operator: \">\", right: 1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

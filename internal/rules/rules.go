// Package rules holds the structured rule-object form of a strategy and its
// rendering to rule text.
package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operand is one side of a condition. Numbers are accepted from JSON and kept as text.
type Operand string

func (o *Operand) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*o = Operand(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("operand must be a string or number, got %s", b)
	}
	*o = Operand(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Condition is a single `left operator right` rule, e.g. {close, >, SMA(close, 20)}.
type Condition struct {
	Left     Operand `json:"left" yaml:"left"`
	Operator string  `json:"operator" yaml:"operator"`
	Right    Operand `json:"right" yaml:"right"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", strings.TrimSpace(string(c.Left)), strings.TrimSpace(c.Operator), strings.TrimSpace(string(c.Right)))
}

// Object is the rule-object form: every condition in a section must hold.
type Object struct {
	Entry []Condition `json:"entry" yaml:"entry"`
	Exit  []Condition `json:"exit" yaml:"exit"`
}

func (o Object) Empty() bool {
	return len(o.Entry) == 0 && len(o.Exit) == 0
}

// Format flattens an object into rule text. Conditions within a section are joined
// with AND; empty sections are left out.
func Format(obj Object) string {
	var lines []string
	if s := join(obj.Entry); s != "" {
		lines = append(lines, "ENTRY: "+s)
	}
	if s := join(obj.Exit); s != "" {
		lines = append(lines, "EXIT: "+s)
	}
	return strings.Join(lines, "\n")
}

func join(conds []Condition) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " AND ")
}

package ast

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Node is an immutable expression tree node. The set of implementations is closed:
// *Series, *Indicator, *Comparison, *Cross, *And, *Or and *Constant.
type Node interface {
	node()
	String() string
}

type CompareOp string

const (
	OpGreater      CompareOp = ">"
	OpLess         CompareOp = "<"
	OpGreaterEqual CompareOp = ">="
	OpLessEqual    CompareOp = "<="
	OpEqual        CompareOp = "=="
)

type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

// Series references an OHLCV column, looking back Lag bars.
type Series struct {
	Name string
	Lag  int
}

// Indicator applies a named indicator to Operand. Name is lower case.
type Indicator struct {
	Name    string
	Operand Node
	Period  int
}

type Comparison struct {
	Left  Node
	Op    CompareOp
	Right Node
}

type Cross struct {
	Direction Direction
	Left      Node
	Right     Node
}

type And struct {
	Left  Node
	Right Node
}

type Or struct {
	Left  Node
	Right Node
}

type Constant struct {
	Value float64
}

func (*Series) node()     {}
func (*Indicator) node()  {}
func (*Comparison) node() {}
func (*Cross) node()      {}
func (*And) node()        {}
func (*Or) node()         {}
func (*Constant) node()   {}

// RuleSet holds at most one expression per section. A nil section never triggers.
type RuleSet struct {
	Entry Node
	Exit  Node
}

// String renders the rule set back to rule text.
func (r RuleSet) String() string {
	var parts []string
	if r.Entry != nil {
		parts = append(parts, "ENTRY: "+r.Entry.String())
	}
	if r.Exit != nil {
		parts = append(parts, "EXIT: "+r.Exit.String())
	}
	return strings.Join(parts, "\n")
}

func (s *Series) String() string {
	if s.Lag == 0 {
		return s.Name
	}
	return s.Name + "[" + strconv.Itoa(s.Lag) + "]"
}

func (n *Indicator) String() string {
	return strings.ToUpper(n.Name) + "(" + n.Operand.String() + ", " + strconv.Itoa(n.Period) + ")"
}

func (c *Comparison) String() string {
	return c.Left.String() + " " + string(c.Op) + " " + c.Right.String()
}

func (c *Cross) String() string {
	return c.Left.String() + " crosses_" + string(c.Direction) + " " + c.Right.String()
}

func (a *And) String() string {
	return andOperand(a.Left) + " AND " + andOperand(a.Right)
}

func (o *Or) String() string {
	// OR is the loosest operator, only a right-nested OR needs grouping to keep its shape
	right := o.Right.String()
	if _, ok := o.Right.(*Or); ok {
		right = "(" + right + ")"
	}
	return o.Left.String() + " OR " + right
}

func (c *Constant) String() string {
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

func andOperand(n Node) string {
	switch n.(type) {
	case *Or:
		return "(" + n.String() + ")"
	}
	return n.String()
}

// JSON uses the tagged shape {"type": "...", ...} with one tag per node kind.

func (s *Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Lag  int    `json:"lag"`
	}{"series", s.Name, s.Lag})
}

func (n *Indicator) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Name    string `json:"name"`
		Operand Node   `json:"operand"`
		Period  int    `json:"period"`
	}{"indicator", n.Name, n.Operand, n.Period})
}

func (c *Comparison) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string    `json:"type"`
		Left     Node      `json:"left"`
		Operator CompareOp `json:"operator"`
		Right    Node      `json:"right"`
	}{"comparison", c.Left, c.Op, c.Right})
}

func (c *Cross) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string    `json:"type"`
		Direction Direction `json:"direction"`
		Left      Node      `json:"left"`
		Right     Node      `json:"right"`
	}{"cross", c.Direction, c.Left, c.Right})
}

func (a *And) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Left  Node   `json:"left"`
		Right Node   `json:"right"`
	}{"and", a.Left, a.Right})
}

func (o *Or) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Left  Node   `json:"left"`
		Right Node   `json:"right"`
	}{"or", o.Left, o.Right})
}

func (c *Constant) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string  `json:"type"`
		Value float64 `json:"value"`
	}{"constant", c.Value})
}

func (r RuleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Entry Node `json:"entry"`
		Exit  Node `json:"exit"`
	}{r.Entry, r.Exit})
}

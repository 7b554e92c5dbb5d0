package domain

import (
	"fmt"
	"strings"
)

// FallbackColor is the fill used when no threshold rule matches.
const FallbackColor = "#7c3aed"

// Operator is one of the five comparison kinds a threshold rule can apply.
type Operator int

const (
	OpLess Operator = iota + 1
	OpLessOrEqual
	OpEqual
	OpGreaterOrEqual
	OpGreater
)

var operatorSymbols = map[Operator]string{
	OpLess:           "<",
	OpLessOrEqual:    "<=",
	OpEqual:          "=",
	OpGreaterOrEqual: ">=",
	OpGreater:        ">",
}

// Operators lists every operator in display order.
func Operators() []Operator {
	return []Operator{OpLess, OpLessOrEqual, OpEqual, OpGreaterOrEqual, OpGreater}
}

// ParseOperator maps a comparison symbol to its Operator.
func ParseOperator(s string) (Operator, error) {
	s = strings.TrimSpace(s)
	for op, sym := range operatorSymbols {
		if sym == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOperator, s)
}

// Valid reports whether o is one of the five defined operators.
func (o Operator) Valid() bool {
	_, ok := operatorSymbols[o]
	return ok
}

func (o Operator) String() string {
	if sym, ok := operatorSymbols[o]; ok {
		return sym
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// MarshalText encodes the operator as its symbol so JSON carries "<=" rather than an integer.
func (o Operator) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOperator, int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText decodes an operator symbol.
func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// ThresholdRule colors a value when the comparison `value <op> Value` holds.
type ThresholdRule struct {
	Operator Operator `json:"operator"`
	Value    float64  `json:"value"`
	Color    string   `json:"color"`
}

// Matches applies the rule's comparison to v. Equality is exact; there is no epsilon.
func (r ThresholdRule) Matches(v float64) bool {
	switch r.Operator {
	case OpLess:
		return v < r.Value
	case OpLessOrEqual:
		return v <= r.Value
	case OpEqual:
		return v == r.Value
	case OpGreaterOrEqual:
		return v >= r.Value
	case OpGreater:
		return v > r.Value
	default:
		return false
	}
}

// ResolveColor returns the color of the first rule in rules that matches value,
// or FallbackColor when none does. Rule order is significant.
func ResolveColor(value float64, rules []ThresholdRule) string {
	for _, r := range rules {
		if r.Matches(value) {
			return r.Color
		}
	}
	return FallbackColor
}

// DefaultRules is the rule set a polygon starts with until the user edits it.
func DefaultRules() []ThresholdRule {
	return []ThresholdRule{
		{Operator: OpGreaterOrEqual, Value: 25, Color: "green"},
		{Operator: OpLess, Value: 10, Color: "red"},
		{Operator: OpGreaterOrEqual, Value: 10, Color: "blue"},
	}
}

// NewRule is the rule appended by the editor's "add rule" action.
func NewRule() ThresholdRule {
	return ThresholdRule{Operator: OpLess, Value: 0, Color: "#ff0000"}
}

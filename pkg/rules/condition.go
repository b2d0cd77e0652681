// Package rules contains the pure compliance rule engine: condition tree
// evaluation, recurrence enumeration, due-date resolution and rule/override
// merging. Nothing in this package touches the database.
package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Ramsey-B/sage/pkg/models"
)

// Supported leaf operators
const (
	OpEq       = "eq"       // equality with type coercion
	OpNeq      = "neq"      // negated equality
	OpIn       = "in"       // profile value is a member of the rule's list
	OpGt       = "gt"       // numeric greater-than
	OpContains = "contains" // profile collection contains the rule's value
)

// ConditionNode is one node of a rule's match condition tree. A node is a
// conjunction (All), a disjunction (Any) or a leaf (Field/Op/Value). A node
// that is none of the three is malformed and evaluates to false; one bad
// rule must never abort a generation run.
type ConditionNode struct {
	All   []ConditionNode `json:"all,omitempty"`
	Any   []ConditionNode `json:"any,omitempty"`
	Field string          `json:"field,omitempty"`
	Op    string          `json:"op,omitempty"`
	Value any             `json:"value,omitempty"`
}

// ParseCondition parses a stored match condition. A parse error means the
// owning rule is not actionable.
func ParseCondition(raw json.RawMessage) (ConditionNode, error) {
	var node ConditionNode
	if len(raw) == 0 {
		return node, fmt.Errorf("condition is empty")
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return node, fmt.Errorf("condition is not a valid tree: %w", err)
	}
	return node, nil
}

// Evaluate applies the condition tree to a client profile. Evaluation is
// pure and total: unknown operators, unknown fields and malformed nodes all
// evaluate to "does not match".
func (n ConditionNode) Evaluate(profile models.ClientProfile) bool {
	switch {
	case len(n.All) > 0:
		for _, child := range n.All {
			if !child.Evaluate(profile) {
				return false
			}
		}
		return true

	case len(n.Any) > 0:
		for _, child := range n.Any {
			if child.Evaluate(profile) {
				return true
			}
		}
		return false

	case n.Field != "":
		return evaluateLeaf(profile, n)

	default:
		// malformed node
		return false
	}
}

func evaluateLeaf(profile models.ClientProfile, leaf ConditionNode) bool {
	value, ok := profile.Field(leaf.Field)
	if !ok {
		return false
	}

	switch leaf.Op {
	case OpEq:
		return valuesEqual(value, leaf.Value)

	case OpNeq:
		return !valuesEqual(value, leaf.Value)

	case OpIn:
		options, ok := toSlice(leaf.Value)
		if !ok {
			return false
		}
		for _, opt := range options {
			if valuesEqual(value, opt) {
				return true
			}
		}
		return false

	case OpGt:
		a, aok := toFloat(value)
		b, bok := toFloat(leaf.Value)
		if !aok || !bok {
			return false
		}
		return a > b

	case OpContains:
		items, ok := toSlice(value)
		if !ok {
			return false
		}
		for _, item := range items {
			if valuesEqual(item, leaf.Value) {
				return true
			}
		}
		return false

	default:
		// unknown operator
		return false
	}
}

// valuesEqual compares two values with type coercion: numbers compare
// numerically regardless of concrete type, strings compare
// case-insensitively, everything else via formatted equality.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.EqualFold(as, bs)
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

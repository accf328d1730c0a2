// Package comparator provides comparison-based handlers (if, switch).
package comparator

import (
	"context"
	"fmt"

	"github.com/coreza/coreza/pkg/handlers"
)

const Service = "comparator"

// Register wires the comparator handlers into the registry.
func Register(reg *handlers.Registry) {
	reg.Register(Service, "if", If)
	reg.Register(Service, "switch", Switch)
}

// If evaluates a list of conditions joined by a logical operator and reports
// the outcome on both the "true" and "false" keys so either branch can be
// referenced downstream.
func If(_ context.Context, inputs map[string]any) (map[string]any, error) {
	rawConditions, ok := inputs["conditions"]
	if !ok || rawConditions == nil {
		return map[string]any{"error": "conditions field is required"}, nil
	}

	conditions, ok := rawConditions.([]any)
	if !ok {
		return map[string]any{"error": "conditions must be a list"}, nil
	}

	logicalOp, _ := inputs["logicalOp"].(string)
	if logicalOp == "" {
		logicalOp = "AND"
	}

	results := make([]bool, 0, len(conditions))

	for _, raw := range conditions {
		condition, ok := raw.(map[string]any)
		if !ok {
			return map[string]any{"error": "conditions must be a list of objects"}, nil
		}

		outcome, err := evaluate(condition)
		if err != nil {
			return map[string]any{"error": err.Error()}, nil
		}

		results = append(results, outcome)
	}

	var passed bool

	switch logicalOp {
	case "AND":
		passed = true
		for _, r := range results {
			passed = passed && r
		}
	case "OR":
		for _, r := range results {
			passed = passed || r
		}
	default:
		return map[string]any{"error": fmt.Sprintf("unsupported logicalOp: %s", logicalOp)}, nil
	}

	return map[string]any{"true": passed, "false": !passed}, nil
}

func evaluate(condition map[string]any) (bool, error) {
	left := condition["left"]
	right := condition["right"]

	operator, _ := condition["operator"].(string)

	switch operator {
	case "===":
		return compareEqual(left, right), nil
	case "!==":
		return !compareEqual(left, right), nil
	case ">=":
		l, r, ok := numericPair(left, right)
		if !ok {
			return false, fmt.Errorf("operator %s requires numeric operands", operator)
		}

		return l >= r, nil
	case "<=":
		l, r, ok := numericPair(left, right)
		if !ok {
			return false, fmt.Errorf("operator %s requires numeric operands", operator)
		}

		return l <= r, nil
	default:
		return false, fmt.Errorf("unsupported operator: %s", operator)
	}
}

func compareEqual(left, right any) bool {
	if l, r, ok := numericPair(left, right); ok {
		return l == r
	}

	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func numericPair(left, right any) (float64, float64, bool) {
	l, lok := toFloat(left)
	r, rok := toFloat(right)

	return l, r, lok && rok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}

	return 0, false
}

// Switch matches a value against a list of cases and reports the matched
// case id, falling back to "default".
func Switch(_ context.Context, inputs map[string]any) (map[string]any, error) {
	value := inputs["value"]

	rawCases, ok := inputs["cases"].([]any)
	if !ok {
		return map[string]any{"error": "cases must be a list"}, nil
	}

	for _, raw := range rawCases {
		c, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		if compareEqual(value, c["match"]) {
			id, _ := c["id"].(string)

			return map[string]any{"case": id, "matched": true}, nil
		}
	}

	return map[string]any{"case": "default", "matched": false}, nil
}

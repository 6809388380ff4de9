package observability

import (
	"fmt"
	"strconv"
	"strings"
)

// BinaryOp compares two resolved values and returns a boolean result.
type BinaryOp func(left, right any) bool

// Evaluator evaluates small boolean expressions against a variable set,
// used by EventStore.Where to query traced events without pulling in a
// full expression-language dependency for what is always a flat
// field-comparison predicate.
type Evaluator struct {
	customOps map[string]BinaryOp
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithCustomOperator registers a named binary operator, usable as
// "left <name> right" in predicate strings.
func WithCustomOperator(name string, fn BinaryOp) EvaluatorOption {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// NewEvaluator creates an Evaluator with the given options.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate evaluates a boolean expression against the provided variables.
// Supports ==, !=, <, >, <=, >=, contains, and/or, not/!.
func (e *Evaluator) Evaluate(expr string, vars map[string]any) (bool, error) {
	return e.evaluateCondition(expr, vars)
}

func (e *Evaluator) evaluateCondition(expr string, vars map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, nil
	}

	if strings.HasPrefix(expr, "not ") {
		result, err := e.evaluateCondition(strings.TrimPrefix(expr, "not "), vars)
		return !result, err
	}
	if strings.HasPrefix(expr, "!") {
		result, err := e.evaluateCondition(strings.TrimPrefix(expr, "!"), vars)
		return !result, err
	}

	if parts := strings.SplitN(expr, " and ", 2); len(parts) == 2 {
		left, err := e.evaluateCondition(parts[0], vars)
		if err != nil {
			return false, err
		}
		right, err := e.evaluateCondition(parts[1], vars)
		if err != nil {
			return false, err
		}
		return left && right, nil
	}

	if parts := strings.SplitN(expr, " or ", 2); len(parts) == 2 {
		left, err := e.evaluateCondition(parts[0], vars)
		if err != nil {
			return false, err
		}
		right, err := e.evaluateCondition(parts[1], vars)
		if err != nil {
			return false, err
		}
		return left || right, nil
	}

	builtinOps := []struct {
		op      string
		compare BinaryOp
	}{
		{"==", func(l, r any) bool { return fmt.Sprintf("%v", l) == fmt.Sprintf("%v", r) }},
		{"!=", func(l, r any) bool { return fmt.Sprintf("%v", l) != fmt.Sprintf("%v", r) }},
		{">=", func(l, r any) bool { return toFloat(l) >= toFloat(r) }},
		{"<=", func(l, r any) bool { return toFloat(l) <= toFloat(r) }},
		{">", func(l, r any) bool { return toFloat(l) > toFloat(r) }},
		{"<", func(l, r any) bool { return toFloat(l) < toFloat(r) }},
		{" contains ", func(l, r any) bool {
			return strings.Contains(fmt.Sprintf("%v", l), fmt.Sprintf("%v", r))
		}},
	}

	for _, op := range builtinOps {
		if parts := strings.SplitN(expr, op.op, 2); len(parts) == 2 {
			left := resolve(strings.TrimSpace(parts[0]), vars)
			right := resolve(strings.TrimSpace(parts[1]), vars)
			return op.compare(left, right), nil
		}
	}

	for name, fn := range e.customOps {
		opPattern := " " + name + " "
		if parts := strings.SplitN(expr, opPattern, 2); len(parts) == 2 {
			left := resolve(strings.TrimSpace(parts[0]), vars)
			right := resolve(strings.TrimSpace(parts[1]), vars)
			return fn(left, right), nil
		}
	}

	val := resolve(expr, vars)
	return isTruthy(val), nil
}

// resolve looks up a token as a variable; falls back to treating it as a
// literal (quoted string, number, or bool).
func resolve(token string, vars map[string]any) any {
	if v, ok := vars[token]; ok {
		return v
	}
	if len(token) >= 2 && (token[0] == '"' || token[0] == '\'') && token[len(token)-1] == token[0] {
		return token[1 : len(token)-1]
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(token); err == nil {
		return b
	}
	return token
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "false"
	case nil:
		return false
	default:
		return true
	}
}

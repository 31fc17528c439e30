package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ExpressionEvaluator evaluates expressions of sequence flow conditions, multi-instance cardinalities, collections and completion conditions.
type ExpressionEvaluator interface {
	// Evaluate evaluates an expression against the variables, which are visible from an execution.
	Evaluate(expression string, variables map[string]any) (any, error)
}

// NewExpressionEvaluator returns an evaluator, which supports a small subset of the unified expression language:
//
//   - ${name} resolves a variable
//   - ${!name} negates a boolean
//   - ${a == b}, ${a != b}, ${a >= b}, ${a <= b}, ${a > b} and ${a < b} compare variables and literals
//   - ${x && y} and ${x || y} combine boolean terms
//   - true, false, null, numbers and quoted strings are literals
//
// A value, which is not enclosed by ${ and }, is evaluated as a single literal or returned as string.
func NewExpressionEvaluator() ExpressionEvaluator {
	return expressionEvaluator{}
}

var identifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type expressionEvaluator struct{}

func (e expressionEvaluator) Evaluate(expression string, variables map[string]any) (any, error) {
	s := strings.TrimSpace(expression)
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		if v, ok := parseLiteral(s); ok {
			return v, nil
		}
		return s, nil
	}

	inner := strings.TrimSpace(s[2 : len(s)-1])
	if inner == "" {
		return nil, fmt.Errorf("expression %s is empty", expression)
	}

	v, err := e.evaluateOr(inner, variables)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %s: %v", expression, err)
	}
	return v, nil
}

func (e expressionEvaluator) evaluateOr(s string, variables map[string]any) (any, error) {
	terms := splitOutsideQuotes(s, "||")
	if len(terms) == 1 {
		return e.evaluateAnd(s, variables)
	}

	for _, term := range terms {
		v, err := e.evaluateAnd(term, variables)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("term %s is not boolean", strings.TrimSpace(term))
		}
		if b {
			return true, nil
		}
	}
	return false, nil
}

func (e expressionEvaluator) evaluateAnd(s string, variables map[string]any) (any, error) {
	terms := splitOutsideQuotes(s, "&&")
	if len(terms) == 1 {
		return e.evaluateComparison(s, variables)
	}

	for _, term := range terms {
		v, err := e.evaluateComparison(term, variables)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("term %s is not boolean", strings.TrimSpace(term))
		}
		if !b {
			return false, nil
		}
	}
	return true, nil
}

func (e expressionEvaluator) evaluateComparison(s string, variables map[string]any) (any, error) {
	s = strings.TrimSpace(s)

	i, op := findOperator(s)
	if i == -1 {
		if strings.HasPrefix(s, "!") {
			v, err := resolveOperand(s[1:], variables)
			if err != nil {
				return nil, err
			}
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("operand %s is not boolean", strings.TrimSpace(s[1:]))
			}
			return !b, nil
		}
		return resolveOperand(s, variables)
	}

	left, err := resolveOperand(s[:i], variables)
	if err != nil {
		return nil, err
	}
	right, err := resolveOperand(s[i+len(op):], variables)
	if err != nil {
		return nil, err
	}

	switch op {
	case "==":
		return equals(left, right), nil
	case "!=":
		return !equals(left, right), nil
	}

	c, err := compare(left, right)
	if err != nil {
		return nil, err
	}

	switch op {
	case ">=":
		return c >= 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	default:
		return c < 0, nil
	}
}

func compare(left any, right any) (int, error) {
	if l, ok := toFloat(left); ok {
		if r, ok := toFloat(right); ok {
			switch {
			case l < r:
				return -1, nil
			case l > r:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if l, ok := left.(string); ok {
		if r, ok := right.(string); ok {
			return strings.Compare(l, r), nil
		}
	}
	return 0, fmt.Errorf("values %v and %v are not comparable", left, right)
}

func equals(left any, right any) bool {
	if l, ok := toFloat(left); ok {
		r, ok := toFloat(right)
		return ok && l == r
	}
	switch l := left.(type) {
	case nil:
		return right == nil
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	case string:
		r, ok := right.(string)
		return ok && l == r
	default:
		return false
	}
}

// findOperator finds the first comparison operator outside of quotes.
func findOperator(s string) (int, string) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		if i+1 < len(s) {
			switch s[i : i+2] {
			case ">=", "<=", "==", "!=":
				return i, s[i : i+2]
			}
		}
		if c == '>' || c == '<' {
			return i, s[i : i+1]
		}
	}
	return -1, ""
}

func parseLiteral(s string) (any, bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null":
		return nil, true
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	return nil, false
}

func resolveOperand(s string, variables map[string]any) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("missing operand")
	}
	if v, ok := parseLiteral(s); ok {
		return v, nil
	}
	if !identifierRegexp.MatchString(s) {
		return nil, fmt.Errorf("invalid operand %s", s)
	}

	v, ok := variables[s]
	if !ok {
		return nil, fmt.Errorf("unknown variable %s", s)
	}
	return v, nil
}

func splitOutsideQuotes(s string, sep string) []string {
	var (
		parts []string
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		if strings.HasPrefix(s[i:], sep) {
			parts = append(parts, s[start:i])
			start = i + len(sep)
			i += len(sep) - 1
		}
	}
	return append(parts, s[start:])
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
	default:
		return 0, false
	}
}

// Package filter evaluates schedule step queries against record data.
//
// Evaluation is pure: no I/O, no state, deterministic for a given record and
// query. Filters are advisory rather than type-checked, so a predicate whose
// operand types do not line up simply fails instead of erroring.
package filter

import (
	"encoding/json"
	"strings"

	"github.com/bevelworks/cadent/pkg/models"
)

// Evaluate reports whether a record's data matches a step query. A zero query
// matches everything; the structured form is preferred and the legacy
// free-text form is kept for schedules that predate it.
func Evaluate(data map[string]any, query models.StepQuery) bool {
	if query.IsZero() {
		return true
	}

	if query.Structured != nil {
		return evaluateStructured(data, query.Structured)
	}

	return matchText(data, query.Text)
}

func evaluateStructured(data map[string]any, query *models.StructuredQuery) bool {
	// An empty filter list matches all records under both logics. The legacy
	// behavior for OR was undefined; matching all keeps empty queries from
	// silently producing empty-result schedules.
	if len(query.Filters) == 0 {
		return true
	}

	if query.Logic == models.QueryLogicOr {
		for _, f := range query.Filters {
			if applyFilter(data, f) {
				return true
			}
		}

		return false
	}

	for _, f := range query.Filters {
		if !applyFilter(data, f) {
			return false
		}
	}

	return true
}

func applyFilter(data map[string]any, f models.QueryFilter) bool {
	value, present := data[f.Field]

	switch f.Operator {
	case models.OperatorIsEmpty:
		return !present || isEmptyValue(value)
	case models.OperatorIsNotEmpty:
		return present && !isEmptyValue(value)
	}

	// A missing field is an absent sentinel: it fails every remaining
	// predicate rather than raising an error.
	if !present {
		return false
	}

	switch f.Operator {
	case models.OperatorEquals:
		return looseEqual(value, f.Value)
	case models.OperatorNotEquals:
		return !looseEqual(value, f.Value)
	case models.OperatorContains:
		return contains(value, f.Value)
	case models.OperatorGreaterThan:
		return compareNumeric(value, f.Value, func(a, b float64) bool { return a > b })
	case models.OperatorLessThan:
		return compareNumeric(value, f.Value, func(a, b float64) bool { return a < b })
	case models.OperatorGreaterOrEqual:
		return compareNumeric(value, f.Value, func(a, b float64) bool { return a >= b })
	case models.OperatorLessOrEqual:
		return compareNumeric(value, f.Value, func(a, b float64) bool { return a <= b })
	default:
		return false
	}
}

// matchText is the legacy free-text path: case-insensitive substring match of
// the whole query against the serialized record data, or of any single
// whitespace-separated token of the query.
func matchText(data map[string]any, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}

	serialized, err := json.Marshal(data)
	if err != nil {
		return false
	}

	haystack := strings.ToLower(string(serialized))
	if strings.Contains(haystack, strings.ToLower(text)) {
		return true
	}

	for _, token := range strings.Fields(text) {
		if strings.Contains(haystack, strings.ToLower(token)) {
			return true
		}
	}

	return false
}

func looseEqual(a, b any) bool {
	if na, ok := asNumber(a); ok {
		nb, bok := asNumber(b)

		return bok && na == nb
	}

	if ba, ok := a.(bool); ok {
		bb, bok := b.(bool)

		return bok && ba == bb
	}

	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return sa == sb
	}

	return false
}

func contains(value, operand any) bool {
	switch v := value.(type) {
	case string:
		needle, ok := operand.(string)
		if !ok {
			return false
		}

		return strings.Contains(strings.ToLower(v), strings.ToLower(needle))
	case []any:
		for _, item := range v {
			if looseEqual(item, operand) {
				return true
			}
		}

		return false
	default:
		return false
	}
}

func compareNumeric(value, operand any, cmp func(a, b float64) bool) bool {
	a, aok := asNumber(value)
	b, bok := asNumber(operand)

	if !aok || !bok {
		return false
	}

	return cmp(a, b)
}

func asNumber(v any) (float64, bool) {
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
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}

func isEmptyValue(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(value) == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	default:
		return false
	}
}

package alerts

import (
	"strconv"
	"strings"
)

// evalCondition evaluates a rule condition string against an overview
// snapshot map.
//
// Supported expressions (field operator value):
//
//	error_rate > 5
//	request_rate < 1
//	p50_latency > 200
//	p95_latency > 500
//	p99_latency > 1000
//	active_connections > 10000
//
// The field must name a numeric snapshot entry. Returns (fires bool,
// triggering value float64); (false, 0) if the expression cannot be parsed
// or the field is absent or non-numeric.
func evalCondition(cond string, snap map[string]any) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	value, ok := numericField(snap, field)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}

	switch op {
	case ">":
		return value > threshold, value
	case ">=":
		return value >= threshold, value
	case "<":
		return value < threshold, value
	case "<=":
		return value <= threshold, value
	case "==":
		return value == threshold, value
	default:
		return false, 0
	}
}

// numericField extracts a float64-ish snapshot entry.
func numericField(snap map[string]any, field string) (float64, bool) {
	v, ok := snap[field]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

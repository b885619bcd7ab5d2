package fan

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Source tells whether a cached value came from the device or was written
// locally ahead of the device confirming it.
type Source int

const (
	// Confirmed values were read from, or acknowledged by, the device.
	Confirmed Source = iota
	// Predicted values were written locally before the RPC completed.
	// The next successful read replaces them.
	Predicted
)

// String returns the lowercase source name.
func (s Source) String() string {
	if s == Predicted {
		return "predicted"
	}
	return "confirmed"
}

// Reading is one cached property value.
type Reading struct {
	Value     any
	Source    Source
	UpdatedAt time.Time
}

// Snapshot is a flat map of property name to last known value.
type Snapshot map[string]any

// asInt coerces a decoded JSON value to int. Non-numeric values yield 0.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		f, _ := n.Float64()
		return int(f)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

// asFloat coerces a decoded JSON value to float64.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

// isNumber reports whether v holds a numeric value.
func isNumber(v any) bool {
	switch v.(type) {
	case int, int64, float64, json.Number:
		return true
	}
	return false
}

// sameValue compares a decoded value with a profile constant, treating all
// numeric types as equal when their values match.
func sameValue(v, want any) bool {
	if isNumber(v) && isNumber(want) {
		return asFloat(v) == asFloat(want)
	}
	switch w := want.(type) {
	case string:
		s, ok := v.(string)
		return ok && s == w
	case bool:
		b, ok := v.(bool)
		return ok && b == w
	}
	return false
}

// ceilDiv divides and rounds up, matching how timers in seconds are shown in
// minutes.
func ceilDiv(n, d int) int {
	return int(math.Ceil(float64(n) / float64(d)))
}

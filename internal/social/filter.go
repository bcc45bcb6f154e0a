package social

// Filter matching is conjunctive exact equality over typed values. Supported
// value kinds are strings, bools, and numbers; JSON decoding turns all
// numbers into float64, so numeric comparison happens in float64 space.
// Unsupported kinds never match and are rejected at subscribe time.

// SupportedFilterValue reports whether v is a comparable filter value.
func SupportedFilterValue(v any) bool {
	switch v.(type) {
	case string, bool,
		float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// MatchFilters reports whether payload satisfies every (key, value) pair in
// filters. An absent payload key counts as a non-match.
func MatchFilters(payload map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := payload[key]
		if !ok {
			return false
		}
		if !filterValuesEqual(got, want) {
			return false
		}
	}
	return true
}

func filterValuesEqual(got, want any) bool {
	switch w := want.(type) {
	case string:
		g, ok := got.(string)
		return ok && g == w
	case bool:
		g, ok := got.(bool)
		return ok && g == w
	default:
		wf, wok := asFloat64(want)
		gf, gok := asFloat64(got)
		return wok && gok && wf == gf
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

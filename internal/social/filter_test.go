package social

import "testing"

func TestMatchFiltersExactEquality(t *testing.T) {
	filters := map[string]any{"department": "CS"}

	if MatchFilters(map[string]any{}, filters) {
		t.Fatalf("absent key should not match")
	}
	if MatchFilters(map[string]any{"department": "EE"}, filters) {
		t.Fatalf("different value should not match")
	}
	if !MatchFilters(map[string]any{"department": "CS"}, filters) {
		t.Fatalf("equal value should match")
	}
}

func TestMatchFiltersConjunctive(t *testing.T) {
	filters := map[string]any{"department": "CS", "year": float64(3)}
	payload := map[string]any{"department": "CS", "year": float64(3), "extra": "x"}
	if !MatchFilters(payload, filters) {
		t.Fatalf("all keys equal should match")
	}
	payload["year"] = float64(4)
	if MatchFilters(payload, filters) {
		t.Fatalf("one mismatching key should fail the whole filter")
	}
}

func TestMatchFiltersNumericKinds(t *testing.T) {
	// JSON payloads carry float64; filters built in-process may carry int.
	if !MatchFilters(map[string]any{"n": float64(7)}, map[string]any{"n": 7}) {
		t.Fatalf("int filter should equal float64 payload")
	}
	if MatchFilters(map[string]any{"n": "7"}, map[string]any{"n": 7}) {
		t.Fatalf("string payload must not coerce to number")
	}
}

func TestMatchFiltersBool(t *testing.T) {
	if !MatchFilters(map[string]any{"public": true}, map[string]any{"public": true}) {
		t.Fatalf("bool equality")
	}
	if MatchFilters(map[string]any{"public": true}, map[string]any{"public": false}) {
		t.Fatalf("bool inequality")
	}
}

func TestSupportedFilterValue(t *testing.T) {
	for _, v := range []any{"s", true, 1, int64(2), 3.5} {
		if !SupportedFilterValue(v) {
			t.Fatalf("%T should be supported", v)
		}
	}
	for _, v := range []any{[]string{"a"}, map[string]any{}, nil, struct{}{}} {
		if SupportedFilterValue(v) {
			t.Fatalf("%T should be rejected", v)
		}
	}
}

func TestMatchFiltersUnsupportedNeverMatches(t *testing.T) {
	// A filter value of unsupported kind can only come from in-process misuse;
	// it must fail closed.
	if MatchFilters(map[string]any{"tags": []any{"a"}}, map[string]any{"tags": []any{"a"}}) {
		t.Fatalf("unsupported kinds must not match")
	}
}

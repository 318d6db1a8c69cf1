package domain

import "testing"

func TestParseFieldType(t *testing.T) {
	for _, raw := range []string{"text", " NUMBER ", "Enum", "image", "month_range"} {
		if _, ok := ParseFieldType(raw); !ok {
			t.Fatalf("expected %q to parse", raw)
		}
	}
	if _, ok := ParseFieldType("BOOLEAN"); ok {
		t.Fatalf("expected unknown type to be rejected")
	}
	if len(FieldTypes()) != 5 {
		t.Fatalf("expected five field types")
	}
}

func TestMonthRangeContains(t *testing.T) {
	plain := MonthRange{Begin: 3, End: 6}
	wrap := MonthRange{Begin: 11, End: 2}
	cases := []struct {
		r     MonthRange
		month int
		want  bool
	}{
		{plain, 3, true},
		{plain, 6, true},
		{plain, 2, false},
		{plain, 7, false},
		{wrap, 11, true},
		{wrap, 12, true},
		{wrap, 1, true},
		{wrap, 2, true},
		{wrap, 3, false},
		{wrap, 10, false},
		{MonthRange{Begin: 5, End: 5}, 5, true},
		{plain, 0, false},
		{plain, 13, false},
	}
	for _, tc := range cases {
		if got := tc.r.Contains(tc.month); got != tc.want {
			t.Fatalf("%s contains %d: expected %v", tc.r, tc.month, tc.want)
		}
	}
	if !wrap.Wraps() || plain.Wraps() {
		t.Fatalf("unexpected wrap detection")
	}
	if (MonthRange{Begin: 0, End: 4}).Valid() {
		t.Fatalf("expected month 0 to be invalid")
	}
	if wrap.String() != "11-2" {
		t.Fatalf("unexpected canonical form %q", wrap.String())
	}
}

func TestFieldHasOption(t *testing.T) {
	f := Field{Type: FieldEnum, Options: []string{"Least Concern", "Endangered"}}
	if !f.HasOption("Endangered") || f.HasOption("endangered") {
		t.Fatalf("options must match exactly")
	}
}

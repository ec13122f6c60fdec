package operators

import (
	"testing"

	"github.com/flagwell/flagwell/internal/model"
)

func TestEq(t *testing.T) {
	cases := []struct {
		attr any
		cv   []string
		want bool
	}{
		{"US", []string{"US", "CA"}, true},
		{"UK", []string{"US", "CA"}, false},
		{42.0, []string{"42"}, true},
		{true, []string{"true"}, true},
		{false, []string{"true"}, false},
		{[]any{"a"}, []string{"a"}, false}, // array attr -> false for non in/not_in
		{nil, []string{"x"}, false},
	}
	for _, c := range cases {
		if got := Evaluate(model.OpEq, c.attr, c.cv); got != c.want {
			t.Errorf("eq(%v, %v) = %v, want %v", c.attr, c.cv, got, c.want)
		}
	}
}

func TestNeqIsNegationOfEq(t *testing.T) {
	if !Evaluate(model.OpNeq, "UK", []string{"US"}) {
		t.Fatal("expected neq true")
	}
	if Evaluate(model.OpNeq, "US", []string{"US"}) {
		t.Fatal("expected neq false")
	}
}

func TestNumericComparisons(t *testing.T) {
	if !Evaluate(model.OpGt, 5.0, []string{"3"}) {
		t.Error("5 > 3 should be true")
	}
	if Evaluate(model.OpGt, "not-a-number", []string{"3"}) {
		t.Error("non-numeric attr should collapse to false")
	}
	if Evaluate(model.OpLte, 3.0, []string{"not-a-number"}) {
		t.Error("non-numeric constraint should collapse to false")
	}
}

func TestInNotIn(t *testing.T) {
	if !Evaluate(model.OpIn, "a", []string{"a", "b"}) {
		t.Error("expected in=true")
	}
	if !Evaluate(model.OpNotIn, "z", []string{"a", "b"}) {
		t.Error("expected not_in=true")
	}
	// coercion failure: in is false, not_in is true
	if Evaluate(model.OpIn, nil, []string{"a"}) {
		t.Error("expected in=false on coercion failure")
	}
	if !Evaluate(model.OpNotIn, nil, []string{"a"}) {
		t.Error("expected not_in=true on coercion failure")
	}
	// array attribute: any element in cv
	if !Evaluate(model.OpIn, []any{"x", "y"}, []string{"y", "z"}) {
		t.Error("expected array in=true when any element matches")
	}
}

func TestStringOps(t *testing.T) {
	if !Evaluate(model.OpContains, "hello world", []string{"wor"}) {
		t.Error("expected contains=true")
	}
	if !Evaluate(model.OpStartsWith, "hello", []string{"he"}) {
		t.Error("expected starts_with=true")
	}
	if !Evaluate(model.OpEndsWith, "hello", []string{"lo"}) {
		t.Error("expected ends_with=true")
	}
}

func TestMatches(t *testing.T) {
	if !Evaluate(model.OpMatches, "user-123", []string{"^user-\\d+$"}) {
		t.Error("expected regex match")
	}
	if Evaluate(model.OpMatches, "abc", []string{"("}) {
		t.Error("unparsable regex should collapse to false")
	}
}

func TestSemver(t *testing.T) {
	if !Evaluate(model.OpSemverGt, "2.0.0", []string{"1.9.9"}) {
		t.Error("expected semver_gt true")
	}
	if !Evaluate(model.OpSemverEq, "1.2.3", []string{"1.2.3"}) {
		t.Error("expected semver_eq true")
	}
	if Evaluate(model.OpSemverGt, "not-a-version", []string{"1.0.0"}) {
		t.Error("unparsable version should collapse to false")
	}
}

func TestUnknownOperator(t *testing.T) {
	if Evaluate(model.Operator("bogus"), "x", []string{"x"}) {
		t.Error("unknown operator should never match")
	}
}

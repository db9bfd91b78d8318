package condition

import "testing"

func TestEvaluate(t *testing.T) {
	e := New()

	cases := []struct {
		expr    string
		context map[string]any
		want    bool
	}{
		{"$x > 5", map[string]any{"x": 10}, true},
		{"$x > 5", map[string]any{"x": 2}, false},
		{"true", nil, true},
		{"false", nil, false},
		{`$status == "done"`, map[string]any{"status": "done"}, true},
		{`$status == "done"`, map[string]any{"status": "pending"}, false},
		{"$a && $b", map[string]any{"a": true, "b": false}, false},
		{"$a || $b", map[string]any{"a": true, "b": false}, true},
		{"$count < 3", map[string]any{"count": 0}, true},
		{"$iteration < 2", map[string]any{"iteration": 2}, false},
		{"$missing == nil", map[string]any{}, true},
		{"x > 5", map[string]any{"x": 10}, true}, // bare identifiers resolve too
	}

	for _, tc := range cases {
		got, err := e.Evaluate(tc.expr, tc.context)
		if err != nil {
			t.Errorf("Evaluate(%q, %v): %v", tc.expr, tc.context, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Evaluate(%q, %v) = %v, want %v", tc.expr, tc.context, got, tc.want)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	e := New()

	if _, err := e.Evaluate("not an expression !!!", nil); err == nil {
		t.Error("expected compile error")
	}
	if _, err := e.Evaluate("1 + 1", nil); err == nil {
		t.Error("expected error for non-boolean result")
	}
}

func TestSubstitute(t *testing.T) {
	ctx := map[string]any{
		"x":    10,
		"name": "alice",
		"flag": true,
	}

	cases := map[string]string{
		"$x > 5":          "10 > 5",
		`$name == "bob"`:  `"alice" == "bob"`,
		"$flag":           "true",
		"$missing":        "nil",
		"no refs at all":  "no refs at all",
		"$x + $x == 20":   "10 + 10 == 20",
	}
	for in, want := range cases {
		if got := Substitute(in, ctx); got != want {
			t.Errorf("Substitute(%q) = %q, want %q", in, got, want)
		}
	}
}

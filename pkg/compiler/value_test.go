package compiler

import (
	"testing"
)

func TestCanonicalize_Numbers(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{42, 42},
		{int64(7), 7},
		{uint8(255), 255},
		{float32(1.5), 1.5},
		{3.25, 3.25},
	}
	for _, tc := range cases {
		got, err := Canonicalize(tc.in)
		if err != nil {
			t.Fatalf("Canonicalize(%v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Canonicalize(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalize_Nested(t *testing.T) {
	got, err := Canonicalize(map[string]any{
		"flags": []any{"a", 1, true},
	})
	if err != nil {
		t.Fatal(err)
	}
	m := got.(map[string]any)
	flags := m["flags"].([]any)
	if flags[1] != float64(1) {
		t.Errorf("nested int not widened: %v (%T)", flags[1], flags[1])
	}
}

func TestCanonicalize_Rejected(t *testing.T) {
	if _, err := Canonicalize(struct{}{}); err == nil {
		t.Error("expected error for struct value")
	}
	if _, err := Canonicalize(make(chan int)); err == nil {
		t.Error("expected error for channel value")
	}
}

func TestDiffMetadata(t *testing.T) {
	prev := Metadata{"a": "x", "b": float64(1)}

	if d := diffMetadata(prev, Metadata{"a": "x", "b": float64(1)}); d != "" {
		t.Errorf("equal metadata reported diff: %q", d)
	}
	if d := diffMetadata(prev, Metadata{"a": "x", "b": float64(1), "c": true}); d == "" {
		t.Error("added key not reported")
	}
	if d := diffMetadata(prev, Metadata{"a": "y", "b": float64(1)}); d == "" {
		t.Error("modified value not reported")
	}
	if d := diffMetadata(prev, Metadata{"a": "x"}); d == "" {
		t.Error("removed key not reported")
	}
}

func TestDiffMetadata_IgnoresTransientKeys(t *testing.T) {
	prev := Metadata{"a": "x"}
	cur := Metadata{"a": "x", "_display_name": "thing"}
	if d := diffMetadata(prev, cur); d != "" {
		t.Errorf("transient key reported as diff: %q", d)
	}
}

func TestPersistable_StripsTransientKeys(t *testing.T) {
	m := persistable(Metadata{"a": "x", "_tmp": "y"})
	if _, ok := m["_tmp"]; ok {
		t.Error("transient key survived persistable()")
	}
	if m["a"] != "x" {
		t.Error("regular key dropped")
	}
}

func TestValuesEqual_CrossType(t *testing.T) {
	if valuesEqual("1", float64(1)) {
		t.Error("string and number compared equal")
	}
	if !valuesEqual([]any{"a", "b"}, []any{"a", "b"}) {
		t.Error("equal slices compared unequal")
	}
	if valuesEqual([]any{"a", "b"}, []any{"b", "a"}) {
		t.Error("order ignored in slice comparison")
	}
}

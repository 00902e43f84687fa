package domain

import "testing"

func TestValue_TaintedFor(t *testing.T) {
	raw := Tainted("<b>")

	if !raw.TaintedFor(FamilyHTML) || !raw.TaintedFor(FamilySQL) {
		t.Fatal("expected raw value to be tainted for every family")
	}

	naive := raw.With("<b>", AppliedPolicy{Policy: PolicyHTMLNaiveScriptStrip, Family: FamilyHTML, Class: ClassNaive})
	if !naive.TaintedFor(FamilyHTML) {
		t.Error("naive policy must not clear taint")
	}

	escaped := naive.With("&lt;b&gt;", AppliedPolicy{Policy: PolicyHTMLEscape, Family: FamilyHTML, Class: ClassProper})
	if escaped.TaintedFor(FamilyHTML) {
		t.Error("proper html policy should clear html taint")
	}
	if !escaped.TaintedFor(FamilySQL) {
		t.Error("html policy must not clear sql taint")
	}

	trimmed := raw.With("x", AppliedPolicy{Policy: PolicySQLTrim, Family: FamilySQL, Class: ClassBindingDependent})
	if !trimmed.TaintedFor(FamilySQL) {
		t.Error("binding-dependent policy must not clear taint on its own")
	}

	if Trusted("x").TaintedFor(FamilySQL) {
		t.Error("trusted value should never be tainted")
	}
}

func TestValue_WithDoesNotAlias(t *testing.T) {
	base := Tainted("a").With("a", AppliedPolicy{Policy: PolicySQLTrim})
	first := base.With("b", AppliedPolicy{Policy: PolicySQLNaiveQuoteStrip})
	second := base.With("c", AppliedPolicy{Policy: PolicySQLKeywordStrip})

	if len(base.Trail) != 1 {
		t.Fatalf("base trail mutated: %v", base.Trail)
	}
	if first.Trail[1].Policy != PolicySQLNaiveQuoteStrip || second.Trail[1].Policy != PolicySQLKeywordStrip {
		t.Errorf("trails share storage: %v / %v", first.Trail, second.Trail)
	}
}

func TestValue_StringAndEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		str   string
		empty bool
	}{
		{name: "nil", value: Tainted(nil), str: "", empty: true},
		{name: "empty string", value: Tainted(""), str: "", empty: true},
		{name: "string", value: Tainted("alice"), str: "alice", empty: false},
		{name: "number", value: Tainted(float64(42)), str: "42", empty: false},
		{name: "bool", value: Tainted(true), str: "true", empty: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			if got := tt.value.IsEmpty(); got != tt.empty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.empty)
			}
		})
	}
}

func TestValue_Equal(t *testing.T) {
	a := Tainted("a;b")
	if !a.Equal(Tainted("a;b")) {
		t.Error("expected equal values")
	}
	if a.Equal(Trusted("a;b")) {
		t.Error("taint must participate in equality")
	}
	if Tainted([]any{1}).Equal(Tainted([]any{1})) {
		t.Error("uncomparable data should compare unequal without panicking")
	}
}

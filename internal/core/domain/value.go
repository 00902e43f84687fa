// Package domain provides the canonical types that flow through the
// propagation pipeline: tainted values, sanitization policies, dispatch
// configuration, sink results and the error taxonomy.
package domain

import "fmt"

// Family groups sanitization policies and sinks by the output context they
// protect.
type Family string

const (
	FamilySQL  Family = "sql"
	FamilyHTML Family = "html"
)

// Class is the fixed correctness classification of a sanitization policy.
type Class string

const (
	// ClassNaive policies transform input but leave known bypasses open.
	ClassNaive Class = "naive"
	// ClassProper policies neutralize the value for their family.
	ClassProper Class = "proper"
	// ClassBindingDependent policies perform no neutralization themselves and
	// are only adequate when the value is later bound as a parameter.
	ClassBindingDependent Class = "binding-dependent"
)

// PolicyID names a sanitization policy.
type PolicyID string

const (
	PolicySQLNaiveQuoteStrip   PolicyID = "sql-naive-quote-strip"
	PolicySQLKeywordStrip      PolicyID = "sql-keyword-strip"
	PolicySQLTrim              PolicyID = "sql-trim"
	PolicyHTMLNaiveScriptStrip PolicyID = "html-naive-script-strip"
	PolicyHTMLNaiveAttrStrip   PolicyID = "html-naive-attr-strip"
	PolicyHTMLEscape           PolicyID = "html-escape"
)

// AppliedPolicy is one entry of a value's sanitization trail.
type AppliedPolicy struct {
	Policy PolicyID `json:"policy"`
	Family Family   `json:"family"`
	Class  Class    `json:"class"`
}

// Value is a datum supplied by an external source together with the record
// of every policy it passed through. Data is usually a string, but JSON
// bodies may deliver numbers, booleans or null.
type Value struct {
	Data    any             `json:"data"`
	Tainted bool            `json:"tainted"`
	Trail   []AppliedPolicy `json:"trail,omitempty"`
}

// Tainted wraps data from an untrusted source.
func Tainted(data any) Value {
	return Value{Data: data, Tainted: true}
}

// Trusted wraps data produced by the system itself.
func Trusted(data any) Value {
	return Value{Data: data}
}

// TaintedFor reports whether the value is still unsafe to embed in an output
// of the given family. Only a proper policy of the same family clears taint.
func (v Value) TaintedFor(f Family) bool {
	if !v.Tainted {
		return false
	}
	for _, p := range v.Trail {
		if p.Family == f && p.Class == ClassProper {
			return false
		}
	}
	return true
}

// Passed reports whether the policy appears in the trail.
func (v Value) Passed(id PolicyID) bool {
	for _, p := range v.Trail {
		if p.Policy == id {
			return true
		}
	}
	return false
}

// With returns a copy of v carrying data and the applied policy appended to
// its trail. The receiver is not modified.
func (v Value) With(data any, applied AppliedPolicy) Value {
	trail := make([]AppliedPolicy, len(v.Trail), len(v.Trail)+1)
	copy(trail, v.Trail)
	return Value{
		Data:    data,
		Tainted: v.Tainted,
		Trail:   append(trail, applied),
	}
}

// String renders Data the way an interpolating sink would see it.
// A nil Data renders as the empty string.
func (v Value) String() string {
	switch d := v.Data.(type) {
	case nil:
		return ""
	case string:
		return d
	default:
		return fmt.Sprint(d)
	}
}

// IsEmpty reports whether the value carries no data or an empty string.
func (v Value) IsEmpty() bool {
	switch d := v.Data.(type) {
	case nil:
		return true
	case string:
		return d == ""
	default:
		return false
	}
}

// Equal reports whether two values carry the same data, taint and trail.
func (v Value) Equal(o Value) bool {
	if v.Tainted != o.Tainted || len(v.Trail) != len(o.Trail) {
		return false
	}
	for i := range v.Trail {
		if v.Trail[i] != o.Trail[i] {
			return false
		}
	}
	return sameData(v.Data, o.Data)
}

// sameData compares Data without panicking on uncomparable dynamic types.
func sameData(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}

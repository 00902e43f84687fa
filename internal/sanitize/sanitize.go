// Package sanitize implements the named sanitization policies.
//
// Every policy is a pure, total function with a static correctness class.
// SQL policies leave non-string input unchanged and report a
// *domain.TypeMismatchError; HTML policies coerce numbers and other scalars
// to strings. Neither family fails on nil input.
package sanitize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tjfontaine/taintpath/internal/core/domain"
)

// Policy is a registered sanitization policy.
type Policy struct {
	ID          domain.PolicyID
	Family      domain.Family
	Class       domain.Class
	Description string

	transform func(string) string
}

var (
	quotes         = regexp.MustCompile(`['"]`)
	semicolons     = regexp.MustCompile(`;`)
	sqlKeywords    = regexp.MustCompile(`(?i)\b(UNION|SELECT|INSERT|DELETE|UPDATE|DROP|OR|AND|WHERE|FROM)\b`)
	whitespaceRuns = regexp.MustCompile(`\s+`)

	// scriptInline only matches single-line blocks; multi-line scripts survive.
	scriptInline = regexp.MustCompile(`(?i)<script.*?>.*?</script>`)
	scriptBlock  = regexp.MustCompile(`(?i)<script[\s\S]*?>[\s\S]*?</script>`)
	eventAttr    = regexp.MustCompile(`(?i)\son[A-Za-z0-9\-]*\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
	jsScheme     = regexp.MustCompile(`(?i)(href|src)\s*=\s*(['"]?)\s*javascript\s*:`)

	htmlEntities = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
)

var registry = map[domain.PolicyID]Policy{
	domain.PolicySQLNaiveQuoteStrip: {
		ID:          domain.PolicySQLNaiveQuoteStrip,
		Family:      domain.FamilySQL,
		Class:       domain.ClassNaive,
		Description: "removes quote characters only; other meta-characters pass",
		transform: func(s string) string {
			return quotes.ReplaceAllString(s, "")
		},
	},
	domain.PolicySQLKeywordStrip: {
		ID:          domain.PolicySQLKeywordStrip,
		Family:      domain.FamilySQL,
		Class:       domain.ClassNaive,
		Description: "removes quotes, semicolons and a fixed keyword list; bypassable via alternate syntax",
		transform: func(s string) string {
			s = quotes.ReplaceAllString(s, "")
			s = semicolons.ReplaceAllString(s, "")
			s = sqlKeywords.ReplaceAllString(s, "")
			s = whitespaceRuns.ReplaceAllString(s, " ")
			return strings.TrimSpace(s)
		},
	},
	domain.PolicySQLTrim: {
		ID:          domain.PolicySQLTrim,
		Family:      domain.FamilySQL,
		Class:       domain.ClassBindingDependent,
		Description: "trims surrounding whitespace; adequate only ahead of parameter binding",
		transform:   strings.TrimSpace,
	},
	domain.PolicyHTMLNaiveScriptStrip: {
		ID:          domain.PolicyHTMLNaiveScriptStrip,
		Family:      domain.FamilyHTML,
		Class:       domain.ClassNaive,
		Description: "removes single-line <script> blocks by pattern; nested and obfuscated tags survive",
		transform: func(s string) string {
			return scriptInline.ReplaceAllString(s, "")
		},
	},
	domain.PolicyHTMLNaiveAttrStrip: {
		ID:          domain.PolicyHTMLNaiveAttrStrip,
		Family:      domain.FamilyHTML,
		Class:       domain.ClassNaive,
		Description: "removes <script> blocks, on* handlers and javascript: schemes; obfuscation bypasses it",
		transform: func(s string) string {
			s = scriptBlock.ReplaceAllString(s, "")
			s = eventAttr.ReplaceAllString(s, "")
			return jsScheme.ReplaceAllString(s, "${1}=${2}")
		},
	},
	domain.PolicyHTMLEscape: {
		ID:          domain.PolicyHTMLEscape,
		Family:      domain.FamilyHTML,
		Class:       domain.ClassProper,
		Description: `escapes & < > " ' to entities`,
		transform:   htmlEntities.Replace,
	},
}

// Lookup returns the policy registered under id.
func Lookup(id domain.PolicyID) (Policy, bool) {
	p, ok := registry[id]
	return p, ok
}

// All returns every registered policy ordered by id.
func All() []Policy {
	out := make([]Policy, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Apply runs the policy named id over v. Unknown ids are a programming error
// and panic. A *domain.TypeMismatchError is returned, together with v
// unchanged, when a SQL policy receives non-string data; callers treat it as
// a bypass and continue.
func Apply(id domain.PolicyID, v domain.Value) (domain.Value, error) {
	p, ok := registry[id]
	if !ok {
		panic(fmt.Sprintf("sanitize: unknown policy %q", id))
	}
	return p.Apply(v)
}

// Apply runs the policy over v and records it on the value's trail.
func (p Policy) Apply(v domain.Value) (domain.Value, error) {
	applied := domain.AppliedPolicy{Policy: p.ID, Family: p.Family, Class: p.Class}

	switch d := v.Data.(type) {
	case string:
		return v.With(p.transform(d), applied), nil
	case nil:
		if p.Family == domain.FamilySQL {
			return v, &domain.TypeMismatchError{Policy: p.ID, Got: "nil"}
		}
		return v.With(nil, applied), nil
	default:
		if p.Family == domain.FamilySQL {
			return v, &domain.TypeMismatchError{Policy: p.ID, Got: fmt.Sprintf("%T", d)}
		}
		return v.With(p.transform(fmt.Sprint(d)), applied), nil
	}
}

// String applies a policy to a plain string. It is a convenience for callers
// that hold no taint record.
func String(id domain.PolicyID, s string) string {
	out, _ := Apply(id, domain.Tainted(s))
	return out.String()
}

package scenario

import "github.com/tjfontaine/taintpath/internal/core/domain"

// Operation names.
const (
	OpFetchByName      = "fetch-by-name"
	OpSearchByTerm     = "search-by-term"
	OpCreateUser       = "create-user"
	OpCommentBad       = "comment-bad"
	OpCommentBadDirect = "comment-bad-direct"
	OpCommentGood      = "comment-good"
	OpDeadDelete       = "dead-delete"
)

// Operation describes one propagation path and the sinks it can reach.
type Operation struct {
	Name      string
	Sanitizer domain.PolicyID
	Hops      []string
	Sinks     []domain.SinkID
	Expected  domain.Exposure
}

// Catalog lists every entry operation in the module graph, mounted or not.
var Catalog = []Operation{
	{
		Name:     OpFetchByName,
		Hops:     []string{"forwarder", "async", "dispatch"},
		Sinks:    []domain.SinkID{domain.SinkCommandUnsafeEquals},
		Expected: domain.ExposureVulnerable,
	},
	{
		Name:      OpSearchByTerm,
		Sanitizer: domain.PolicySQLTrim,
		Hops:      []string{"dispatch"},
		Sinks:     []domain.SinkID{domain.SinkCommandParameterized},
		Expected:  domain.ExposureSafe,
	},
	{
		Name:     OpCreateUser,
		Sinks:    []domain.SinkID{domain.SinkCommandInsert},
		Expected: domain.ExposureVulnerable,
	},
	{
		Name:      OpCommentBad,
		Sanitizer: domain.PolicyHTMLNaiveScriptStrip,
		Hops:      []string{"dispatch"},
		Sinks:     []domain.SinkID{domain.SinkRenderUnsafe},
		Expected:  domain.ExposureVulnerable,
	},
	{
		Name:      OpCommentBadDirect,
		Sanitizer: domain.PolicyHTMLNaiveScriptStrip,
		Sinks:     []domain.SinkID{domain.SinkRenderUnsafe},
		Expected:  domain.ExposureVulnerable,
	},
	{
		Name:      OpCommentGood,
		Sanitizer: domain.PolicyHTMLEscape,
		Hops:      []string{"dispatch"},
		Sinks:     []domain.SinkID{domain.SinkRenderSafe},
		Expected:  domain.ExposureSafe,
	},
	{
		Name:      OpDeadDelete,
		Sanitizer: domain.PolicySQLNaiveQuoteStrip,
		Sinks:     []domain.SinkID{domain.SinkCommandDelete},
		Expected:  domain.ExposureVulnerable,
	},
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Operation, bool) {
	for _, op := range Catalog {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

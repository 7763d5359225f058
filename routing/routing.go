// Package routing decides, per query, which context sources feed the
// composer. Classification is a single-shot heuristic over the query text
// and the passages already fetched from the document store.
package routing

import (
	"github.com/hupe1980/ragmesh/evaluation"
	"github.com/hupe1980/ragmesh/policy"
)

// Decision is the set of context sources selected for a query.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionDocuments
	DecisionWeb
	DecisionBoth
)

// String returns the lower-case decision name.
func (d Decision) String() string {
	switch d {
	case DecisionDocuments:
		return "documents"
	case DecisionWeb:
		return "web"
	case DecisionBoth:
		return "both"
	default:
		return "none"
	}
}

// UsesWeb reports whether the decision includes web search.
func (d Decision) UsesWeb() bool { return d == DecisionWeb || d == DecisionBoth }

// UsesDocuments reports whether the decision includes document passages.
func (d Decision) UsesDocuments() bool { return d == DecisionDocuments || d == DecisionBoth }

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Route is a routing decision together with the signals behind it.
type Route struct {
	Decision       Decision          `json:"decision"`
	Evaluation     evaluation.Result `json:"evaluation"`
	NeedsWeb       bool              `json:"needs_web"`
	NeedsDocuments bool              `json:"needs_documents"`
}

// Options configures a Router.
type Options struct {
	// WebFallback sends insufficient document results to the web. Disable
	// when no web searcher is configured.
	WebFallback bool
	// CrossValidate selects both sources when the query carries freshness and
	// domain signals and the passages are sufficient. Experimental.
	CrossValidate bool
	Policy        policy.Source
	Evaluator     *evaluation.Evaluator
}

// Router classifies queries.
type Router struct {
	opts Options
}

// New creates a Router with web fallback enabled.
func New(optFns ...func(o *Options)) *Router {
	opts := Options{WebFallback: true}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Policy == nil {
		opts.Policy = policy.Static(policy.Default())
	}
	if opts.Evaluator == nil {
		src := opts.Policy
		opts.Evaluator = evaluation.New(func(o *evaluation.Options) { o.Policy = src })
	}
	return &Router{opts: opts}
}

// NeedsWeb reports whether the query asks for real-time information.
func (r *Router) NeedsWeb(query string) bool {
	return policy.MatchesAny(query, r.opts.Policy.Current().FreshnessKeywords)
}

// NeedsDocuments reports whether the query touches the document corpus domain.
func (r *Router) NeedsDocuments(query string) bool {
	return policy.MatchesAny(query, r.opts.Policy.Current().DomainKeywords)
}

// Route picks the context sources for query given the retrieved passages.
//
// A freshness signal routes to the web and excludes documents even when they
// would be sufficient. Otherwise sufficient passages route to documents and
// insufficient ones fall back to the web, or to none when fallback is off.
func (r *Router) Route(query string, passages []string) Route {
	rt := Route{
		Evaluation:     r.opts.Evaluator.Evaluate(query, passages),
		NeedsWeb:       r.NeedsWeb(query),
		NeedsDocuments: r.NeedsDocuments(query),
	}

	switch {
	case r.opts.CrossValidate && rt.NeedsWeb && rt.NeedsDocuments && r.opts.Evaluator.EvaluatePassages(query, passages).Sufficient:
		rt.Decision = DecisionBoth
	case rt.NeedsWeb:
		rt.Decision = DecisionWeb
	case rt.Evaluation.Sufficient:
		rt.Decision = DecisionDocuments
	case r.opts.WebFallback:
		rt.Decision = DecisionWeb
	default:
		rt.Decision = DecisionNone
	}
	return rt
}

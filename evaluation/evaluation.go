package evaluation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hupe1980/ragmesh/policy"
)

// Reasons reported by Evaluate.
const (
	ReasonNoDocuments = "no documents found"
	ReasonRealTime    = "query requires real-time information"
	ReasonNotRelevant = "not relevant"
	ReasonTooShort    = "insufficient length"
	ReasonSufficient  = "sufficient document content found"
)

const (
	inspectedPassages = 2
	minTokenRunes     = 3
	defaultMinOverlap = 2
	defaultMinLength  = 100
)

// Result is the sufficiency verdict for a query and its passages.
type Result struct {
	Sufficient bool   `json:"sufficient"`
	Reason     string `json:"reason"`
}

// Options configures an Evaluator.
type Options struct {
	// MinOverlap is the number of distinct query terms that must occur in
	// the inspected passages.
	MinOverlap int
	// MinLength is the minimum character count of the trimmed passage text.
	MinLength int
	// Policy supplies the freshness keywords.
	Policy policy.Source
}

// Evaluator scores retrieved passages against a query.
type Evaluator struct {
	opts Options
}

// New creates an Evaluator.
func New(optFns ...func(o *Options)) *Evaluator {
	opts := Options{
		MinOverlap: defaultMinOverlap,
		MinLength:  defaultMinLength,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Policy == nil {
		opts.Policy = policy.Static(policy.Default())
	}
	return &Evaluator{opts: opts}
}

// Evaluate reports whether passages can answer query on their own.
func (e *Evaluator) Evaluate(query string, passages []string) Result {
	if len(passages) == 0 {
		return Result{Reason: ReasonNoDocuments}
	}
	if RequiresRealTime(query, e.opts.Policy.Current()) {
		return Result{Reason: ReasonRealTime}
	}
	return e.EvaluatePassages(query, passages)
}

// EvaluatePassages applies the relevance and length checks only, skipping
// the real-time short circuit.
func (e *Evaluator) EvaluatePassages(query string, passages []string) Result {
	if len(passages) == 0 {
		return Result{Reason: ReasonNoDocuments}
	}

	inspected := passages
	if len(inspected) > inspectedPassages {
		inspected = inspected[:inspectedPassages]
	}
	text := strings.Join(inspected, " ")

	if Overlap(query, text) < e.opts.MinOverlap {
		return Result{Reason: ReasonNotRelevant}
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < e.opts.MinLength {
		return Result{Reason: ReasonTooShort}
	}
	return Result{Sufficient: true, Reason: ReasonSufficient}
}

// RequiresRealTime reports whether the query mentions a freshness keyword.
func RequiresRealTime(query string, p *policy.Policy) bool {
	return policy.MatchesAny(query, p.FreshnessKeywords)
}

// Terms returns the distinct lower-cased query terms longer than two runes,
// with surrounding punctuation removed.
func Terms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		t := strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if utf8.RuneCountInString(t) < minTokenRunes {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

// Overlap counts the query terms occurring as substrings of text.
func Overlap(query, text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, t := range Terms(query) {
		if strings.Contains(lower, t) {
			n++
		}
	}
	return n
}

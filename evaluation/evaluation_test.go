package evaluation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/ragmesh/policy"
)

const amazonPassage = "In 2023 Amazon revenue grew 12% year over year to $575 billion, " +
	"driven by strong performance in AWS and advertising, while operating income improved significantly."

func TestEvaluate_Reasons(t *testing.T) {
	e := New()

	tests := []struct {
		name       string
		query      string
		passages   []string
		sufficient bool
		reason     string
	}{
		{"no passages", "Amazon revenue", nil, false, ReasonNoDocuments},
		{"freshness wins over good passages", "What is Amazon's stock price today?", []string{amazonPassage}, false, ReasonRealTime},
		{"inflected freshness keyword", "What are Amazon's stock prices in 2023?", []string{amazonPassage}, false, ReasonRealTime},
		{"freshness suffix", "Amazon revenue currently", []string{amazonPassage}, false, ReasonRealTime},
		{"freshness plural", "Amazon revenue forecasts", []string{amazonPassage}, false, ReasonRealTime},
		{"keyword inside a word", "What do you know about Amazon's revenue in 2023?", []string{amazonPassage}, true, ReasonSufficient},
		{"no overlap", "how do penguins swim", []string{amazonPassage}, false, ReasonNotRelevant},
		{"overlap but short", "Amazon revenue growth", []string{"Amazon revenue rose."}, false, ReasonTooShort},
		{"sufficient", "What was Amazon's revenue in 2023?", []string{amazonPassage}, true, ReasonSufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.query, tt.passages)
			assert.Equal(t, tt.sufficient, got.Sufficient)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestEvaluate_OnlyFirstTwoPassagesInspected(t *testing.T) {
	e := New()
	filler := strings.Repeat("lorem ipsum dolor sit amet ", 5)
	passages := []string{filler, filler, amazonPassage}

	got := e.Evaluate("Amazon revenue", passages)
	assert.False(t, got.Sufficient)
	assert.Equal(t, ReasonNotRelevant, got.Reason)
}

func TestEvaluate_Options(t *testing.T) {
	e := New(func(o *Options) {
		o.MinOverlap = 1
		o.MinLength = 10
	})
	got := e.Evaluate("Amazon", []string{"Amazon is a company."})
	assert.True(t, got.Sufficient)
}

func TestEvaluate_CustomFreshnessPolicy(t *testing.T) {
	p := policy.Default()
	p.FreshnessKeywords = []string{"tonight"}
	e := New(func(o *Options) { o.Policy = policy.Static(p) })

	assert.Equal(t, ReasonRealTime, e.Evaluate("Amazon revenue tonight", []string{amazonPassage}).Reason)
	assert.True(t, e.Evaluate("What is the latest Amazon revenue?", []string{amazonPassage}).Sufficient)
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"what", "was", "amazon's", "revenue"}, Terms("What was Amazon's revenue? in in"))
	assert.Equal(t, []string{"aws"}, Terms("AWS, aws! (AWS)"))
	assert.Empty(t, Terms("a an it"))
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 2, Overlap("Amazon revenue growth", "amazon REVENUE fell"))
	assert.Equal(t, 0, Overlap("", "anything"))
}

func TestEvaluatePassages_SkipsFreshness(t *testing.T) {
	e := New()
	got := e.EvaluatePassages("Amazon revenue today", []string{amazonPassage})
	assert.True(t, got.Sufficient)
	assert.Equal(t, ReasonRealTime, e.Evaluate("Amazon revenue today", []string{amazonPassage}).Reason)
}

package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/ragmesh/evaluation"
)

const amazonPassage = "In 2023 Amazon revenue grew 12% year over year to $575 billion, " +
	"driven by strong performance in AWS and advertising, while operating income improved significantly."

func TestRouter_Decisions(t *testing.T) {
	tests := []struct {
		name     string
		opts     func(o *Options)
		query    string
		passages []string
		want     Decision
		reason   string
	}{
		{
			name:     "freshness routes to web and excludes documents",
			query:    "What's the weather today in Seattle?",
			passages: []string{amazonPassage},
			want:     DecisionWeb,
			reason:   evaluation.ReasonRealTime,
		},
		{
			name:     "plural freshness keyword routes to web",
			query:    "What are Amazon's stock prices?",
			passages: []string{amazonPassage},
			want:     DecisionWeb,
			reason:   evaluation.ReasonRealTime,
		},
		{
			name:     "adverbial freshness keyword routes to web",
			query:    "What happened recently with Amazon revenue in 2023?",
			passages: []string{amazonPassage},
			want:     DecisionWeb,
			reason:   evaluation.ReasonRealTime,
		},
		{
			name:     "sufficient documents",
			query:    "What was Amazon's revenue in 2023?",
			passages: []string{amazonPassage},
			want:     DecisionDocuments,
			reason:   evaluation.ReasonSufficient,
		},
		{
			name:   "no documents falls back to web",
			query:  "Who wrote Moby Dick?",
			want:   DecisionWeb,
			reason: evaluation.ReasonNoDocuments,
		},
		{
			name:     "irrelevant documents without fallback",
			opts:     func(o *Options) { o.WebFallback = false },
			query:    "how do penguins swim",
			passages: []string{amazonPassage},
			want:     DecisionNone,
			reason:   evaluation.ReasonNotRelevant,
		},
		{
			name:     "cross validation selects both",
			opts:     func(o *Options) { o.CrossValidate = true },
			query:    "latest Amazon revenue in 2023",
			passages: []string{amazonPassage},
			want:     DecisionBoth,
			reason:   evaluation.ReasonRealTime,
		},
		{
			name:     "cross validation needs sufficient passages",
			opts:     func(o *Options) { o.CrossValidate = true },
			query:    "latest Amazon revenue",
			passages: []string{"Amazon revenue."},
			want:     DecisionWeb,
			reason:   evaluation.ReasonRealTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r *Router
			if tt.opts != nil {
				r = New(tt.opts)
			} else {
				r = New()
			}
			got := r.Route(tt.query, tt.passages)
			assert.Equal(t, tt.want, got.Decision)
			assert.Equal(t, tt.reason, got.Evaluation.Reason)
		})
	}
}

func TestRouter_Signals(t *testing.T) {
	r := New()
	assert.True(t, r.NeedsWeb("Any breaking news?"))
	assert.False(t, r.NeedsWeb("What do you know about AWS?"))
	assert.True(t, r.NeedsWeb("Is it raining currently in Paris?"))
	assert.True(t, r.NeedsWeb("Any forecasts for Seattle?"))
	assert.True(t, r.NeedsWeb("Amazon stock prices"))
	assert.True(t, r.NeedsDocuments("Amazon's revenues and profits"))
	assert.True(t, r.NeedsDocuments("What did the CEO say about AWS?"))
	assert.False(t, r.NeedsDocuments("Tell me a joke"))
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "none", DecisionNone.String())
	assert.Equal(t, "documents", DecisionDocuments.String())
	assert.Equal(t, "web", DecisionWeb.String())
	assert.Equal(t, "both", DecisionBoth.String())
	assert.True(t, DecisionBoth.UsesWeb())
	assert.True(t, DecisionBoth.UsesDocuments())
	assert.False(t, DecisionWeb.UsesDocuments())
	assert.False(t, DecisionNone.UsesWeb())
}

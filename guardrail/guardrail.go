package guardrail

import (
	"context"
	"time"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/policy"
)

// Reason names the stage that blocked a query.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonPolicyTopic       Reason = "policy_topic"
	ReasonModerationFlagged Reason = "moderation_flagged"
)

// Verdict is the outcome of a guardrail check.
type Verdict struct {
	Blocked bool   `json:"blocked"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Allowed is the verdict returned for queries that pass both stages.
var Allowed = Verdict{}

// Options configures a Filter.
type Options struct {
	// Moderator is consulted in stage two. Nil skips moderation.
	Moderator core.Moderator
	// Policy supplies the deny-list and refusal messages. Defaults to
	// policy.Static(policy.Default()).
	Policy policy.Source
	Logger logging.Logger
}

// Filter applies the two-stage content check.
type Filter struct {
	opts Options
}

// New creates a Filter.
func New(optFns ...func(o *Options)) *Filter {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Policy == nil {
		opts.Policy = policy.Static(policy.Default())
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Filter{opts: opts}
}

// Check classifies query. It is safe for concurrent use.
func (f *Filter) Check(ctx context.Context, query string) Verdict {
	p := f.opts.Policy.Current()

	if policy.ContainsAny(query, p.DenyList) {
		f.opts.Logger.Info("Query blocked by topic policy", "policy_version", p.Version)
		return Verdict{Blocked: true, Reason: ReasonPolicyTopic, Message: p.TopicRefusal}
	}

	if f.opts.Moderator == nil {
		return Allowed
	}

	start := time.Now()
	res, err := f.opts.Moderator.Moderate(ctx, query)
	logging.LogExternalCall(f.opts.Logger, "moderation", time.Since(start), err == nil, err)
	if err != nil {
		// fail open
		return Allowed
	}
	if res.Flagged {
		f.opts.Logger.Info("Query blocked by moderation", "categories", res.Categories)
		return Verdict{Blocked: true, Reason: ReasonModerationFlagged, Message: p.ModerationRefusal}
	}
	return Allowed
}

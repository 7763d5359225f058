package engine

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hupe1980/ragmesh/composer"
	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/guardrail"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/memory"
	"github.com/hupe1980/ragmesh/model"
	"github.com/hupe1980/ragmesh/routing"
)

const (
	webContextLabel = "Current web information: "
	docContextLabel = "Document context: "
)

// Config holds the retrieval limits of the pipeline.
//
// Example:
//
//	cfg := Config{
//	    MaxDocResults: 5,
//	    MaxWebResults: 3,
//	}
type Config struct {
	// MaxDocResults is the passage limit passed to the retriever.
	MaxDocResults int

	// MaxWebResults is the result limit passed to the web searcher.
	MaxWebResults int

	// WebPassages is how many web results with content feed the composer.
	WebPassages int

	// WebPassageRunes truncates each web result's content.
	WebPassageRunes int

	// DocPassages is how many retrieved passages feed the composer.
	DocPassages int
}

// DefaultConfig provides the default retrieval limits.
var DefaultConfig = Config{
	MaxDocResults:   3,
	MaxWebResults:   3,
	WebPassages:     3,
	WebPassageRunes: 800,
	DocPassages:     2,
}

// Options configures an Engine instance using the functional options pattern.
//
// Only the completion model is required. Every other collaborator has a
// default: a guardrail with the default policy and no moderation, a router
// whose web fallback follows the presence of a WebSearcher, a memory store
// that summarizes with the completion model and a composer on that model.
//
// Example:
//
//	eng, err := New(llm, func(o *Options) {
//	    o.Retriever = store
//	    o.WebSearcher = tavily
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains the retrieval limits. Defaults to DefaultConfig.
	Config Config

	// Retriever queries the document store. Nil means no documents.
	Retriever core.Retriever

	// WebSearcher queries live web search. Nil disables web context.
	WebSearcher core.WebSearcher

	Guardrail *guardrail.Filter
	Router    *routing.Router
	Memory    *memory.Store
	Composer  *composer.Composer

	// Callbacks observe the pipeline. Optional.
	Callbacks *CallbackManager

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Result describes the outcome of one query.
type Result struct {
	InvocationID string            `json:"invocation_id"`
	SessionID    string            `json:"session_id"`
	Answer       string            `json:"answer"`
	Verdict      guardrail.Verdict `json:"verdict"`
	Route        *routing.Route    `json:"route,omitempty"`
	Sources      []string          `json:"sources"`
	Failed       bool              `json:"failed"`
}

// Engine runs the query pipeline:
//
//	guardrail -> retrieve -> route -> gather -> memory -> compose -> update
//
// Every external failure is absorbed where it happens; the pipeline always
// produces an answer. The Engine is safe for concurrent use.
type Engine struct {
	config      Config
	retriever   core.Retriever
	webSearcher core.WebSearcher
	guardrail   *guardrail.Filter
	router      *routing.Router
	memory      *memory.Store
	composer    *composer.Composer
	callbacks   *CallbackManager
	logger      logging.Logger
}

// New creates an Engine that composes answers with m.
func New(m model.Model, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{Config: DefaultConfig}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if opts.Guardrail == nil {
		opts.Guardrail = guardrail.New(func(o *guardrail.Options) { o.Logger = opts.Logger })
	}
	if opts.Router == nil {
		webFallback := opts.WebSearcher != nil
		opts.Router = routing.New(func(o *routing.Options) { o.WebFallback = webFallback })
	}
	if opts.Memory == nil {
		store, err := memory.New(func(o *memory.Options) {
			o.Summarizer = m
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, err
		}
		opts.Memory = store
	}
	if opts.Composer == nil {
		opts.Composer = composer.New(m, func(o *composer.Options) { o.Logger = opts.Logger })
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	return &Engine{
		config:      opts.Config,
		retriever:   opts.Retriever,
		webSearcher: opts.WebSearcher,
		guardrail:   opts.Guardrail,
		router:      opts.Router,
		memory:      opts.Memory,
		composer:    opts.Composer,
		callbacks:   opts.Callbacks,
		logger:      opts.Logger,
	}, nil
}

// Memory returns the session store used by the engine.
func (e *Engine) Memory() *memory.Store { return e.memory }

// Callbacks returns the callback registry.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Process answers query within sessionID.
func (e *Engine) Process(ctx context.Context, sessionID, query string) Result {
	res, in, ok := e.prepare(ctx, sessionID, query)
	if !ok {
		return res
	}

	out := e.composer.Compose(ctx, in)
	e.finish(ctx, &res, query, out, true)
	return res
}

// Stream answers query within sessionID as a fragment stream. The returned
// Result carries everything known before composition; the channel yields
// the answer fragments. Session memory is updated after the last fragment
// and before the channel closes, unless ctx ended before every fragment was
// delivered. Blocked queries yield the refusal as the only fragment.
func (e *Engine) Stream(ctx context.Context, sessionID, query string) (Result, <-chan string) {
	res, in, ok := e.prepare(ctx, sessionID, query)
	out := make(chan string)
	if !ok {
		go func() {
			defer close(out)
			select {
			case out <- res.Answer:
			case <-ctx.Done():
			}
		}()
		return res, out
	}

	frags, done := e.composer.ComposeStream(ctx, in)
	final := res
	go func() {
		defer close(out)
		delivered := true
		for f := range frags {
			select {
			case out <- f:
			case <-ctx.Done():
				delivered = false
			}
		}
		if !delivered {
			e.logger.Info("Stream cancelled, answer not recorded",
				"session_id", sessionID, "invocation_id", final.InvocationID)
		}
		e.finish(ctx, &final, query, <-done, delivered)
	}()
	return res, out
}

// prepare runs every step up to composition. ok is false when the query was
// blocked; res then holds the refusal.
func (e *Engine) prepare(ctx context.Context, sessionID, query string) (Result, composer.Input, bool) {
	res := Result{
		InvocationID: uuid.NewString(),
		SessionID:    sessionID,
		Sources:      []string{},
	}
	log := logging.With(e.logger, "session_id", sessionID, "invocation_id", res.InvocationID)
	cc := &CallbackContext{InvocationID: res.InvocationID, SessionID: sessionID, Query: query}
	e.runCallbacks(ctx, CallbackBeforeQuery, cc)

	res.Verdict = e.guardrail.Check(ctx, query)
	cc.Verdict = &res.Verdict
	e.runCallbacks(ctx, CallbackAfterGuardrail, cc)

	if res.Verdict.Blocked {
		res.Answer = res.Verdict.Message
		log.Info("Query refused", "reason", string(res.Verdict.Reason))
		cc.Answer = res.Answer
		e.runCallbacks(ctx, CallbackAfterAnswer, cc)
		return res, composer.Input{}, false
	}

	passages := e.retrieve(ctx, query)
	route := e.router.Route(query, passages)
	res.Route = &route
	logging.LogRoute(log, route.Decision.String(), route.Evaluation.Reason)
	cc.Route = &route
	e.runCallbacks(ctx, CallbackAfterRoute, cc)

	in := composer.Input{Query: query}
	if route.Decision.UsesWeb() {
		if web := e.webContext(ctx, query); web != "" {
			in.Parts = append(in.Parts, webContextLabel+web)
			in.Sources = append(in.Sources, composer.SourceWeb)
		}
	}
	if route.Decision.UsesDocuments() && len(passages) > 0 {
		docs := passages
		if len(docs) > e.config.DocPassages {
			docs = docs[:e.config.DocPassages]
		}
		in.Parts = append(in.Parts, docContextLabel+strings.Join(docs, "\n"))
		in.Sources = append(in.Sources, composer.SourceDocuments)
	}
	res.Sources = append(res.Sources, in.Sources...)

	if hist := e.memory.Context(sessionID); hist != memory.NoHistory {
		in.Memory = hist
	}
	return res, in, true
}

// finish records the composed answer and updates memory on success.
func (e *Engine) finish(ctx context.Context, res *Result, query string, out composer.Output, record bool) {
	res.Answer = out.Text
	res.Failed = out.Failed

	if record && !out.Failed {
		if err := e.memory.Append(ctx, res.SessionID, query, out.Text); err != nil {
			e.logger.Warn("Failed to record exchange", "session_id", res.SessionID, "error", err.Error())
		}
	}

	e.runCallbacks(ctx, CallbackAfterAnswer, &CallbackContext{
		InvocationID: res.InvocationID,
		SessionID:    res.SessionID,
		Query:        query,
		Verdict:      &res.Verdict,
		Route:        res.Route,
		Answer:       res.Answer,
		Failed:       res.Failed,
	})
}

func (e *Engine) retrieve(ctx context.Context, query string) []string {
	if e.retriever == nil {
		return nil
	}
	start := time.Now()
	passages, err := e.retriever.Query(ctx, query, e.config.MaxDocResults)
	logging.LogExternalCall(e.logger, "retrieval", time.Since(start), err == nil, err)
	if err != nil {
		return nil
	}
	return passages
}

// webContext searches the web and renders the usable results, or returns
// an empty string.
func (e *Engine) webContext(ctx context.Context, query string) string {
	if e.webSearcher == nil {
		return ""
	}
	start := time.Now()
	results, err := e.webSearcher.Search(ctx, query, e.config.MaxWebResults)
	logging.LogExternalCall(e.logger, "websearch", time.Since(start), err == nil, err)
	if err != nil {
		return ""
	}

	var contents []string
	for _, r := range results {
		if len(contents) == e.config.WebPassages {
			break
		}
		if r.Content == "" {
			continue
		}
		contents = append(contents, truncate(r.Content, e.config.WebPassageRunes))
	}
	joined := strings.Join(contents, "\n")
	if strings.TrimSpace(joined) == "" {
		return ""
	}
	return joined
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (e *Engine) runCallbacks(ctx context.Context, t CallbackType, cc *CallbackContext) {
	for _, err := range e.callbacks.ExecuteCallbacks(ctx, t, cc) {
		e.logger.Warn("Callback failed", "callback", string(t), "error", err.Error())
	}
}

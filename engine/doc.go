// Package engine implements the query pipeline of ragmesh.
//
// The Engine is the coordination point between the guardrail, the document
// store, the web searcher, the router, session memory and the response
// composer. Each query is handled on the caller's goroutine (plus one
// goroutine per streamed answer); there are no background workers.
//
// # Pipeline
//
//	┌────────────┐   blocked   ┌─────────────────────┐
//	│ Guardrail  │────────────▶│ refusal (no further │
//	└─────┬──────┘             │ calls, no memory)   │
//	      │ allowed            └─────────────────────┘
//	┌─────▼──────┐
//	│ Retrieve   │  document passages, always attempted
//	└─────┬──────┘
//	┌─────▼──────┐
//	│ Route      │  NONE | DOCUMENTS | WEB | BOTH
//	└─────┬──────┘
//	┌─────▼──────┐
//	│ Gather     │  web search only when the decision includes WEB
//	└─────┬──────┘
//	┌─────▼──────┐
//	│ Compose    │  memory context + gathered parts
//	└─────┬──────┘
//	┌─────▼──────┐
//	│ Update     │  append exchange, compact when full
//	└────────────┘
//
// # Error Handling
//
// External failures never abort a query:
//   - retrieval or web search errors yield empty results
//   - moderation errors fail open (see package guardrail)
//   - summarization errors fall back to truncation (see package memory)
//   - composition errors yield an apologetic answer with Result.Failed set;
//     failed answers are not recorded in session memory
//
// Every absorbed failure is logged at Warn level through the configured
// logging.Logger.
//
// # Callbacks
//
// A CallbackManager lets callers observe the pipeline at four points
// (before query, after guardrail, after route, after answer) for metrics or
// auditing. Callbacks cannot change the outcome of a query.
//
// # Usage
//
//	eng, err := engine.New(llm, func(o *engine.Options) {
//	    o.Retriever = store
//	    o.WebSearcher = tavily
//	})
//	if err != nil {
//	    return err
//	}
//	res := eng.Process(ctx, "session-1", "What was Amazon's revenue in 2023?")
//	fmt.Println(res.Answer, res.Route.Decision)
//
// Streaming:
//
//	res, frags := eng.Stream(ctx, "session-1", "What's the weather today?")
//	for f := range frags {
//	    fmt.Print(f)
//	}
package engine

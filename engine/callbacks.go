package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/ragmesh/guardrail"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/routing"
)

// CallbackType defines the pipeline points where callbacks run.
//
// Callbacks observe a query as it moves through the pipeline without
// modifying core logic. They run synchronously on the request goroutine.
//
// Available callback types:
//   - BeforeQuery: a query was received, before any check
//   - AfterGuardrail: the guardrail verdict is known
//   - AfterRoute: retrieval ran and a routing decision was made
//   - AfterAnswer: the final answer (or refusal) is known
//
// Unlike model or tool hooks, pipeline callbacks cannot abort a query: a
// callback error is logged at Warn level and the query continues.
type CallbackType string

const (
	// CallbackBeforeQuery is triggered when a query enters the engine.
	CallbackBeforeQuery CallbackType = "before_query"

	// CallbackAfterGuardrail is triggered after the guardrail check.
	CallbackAfterGuardrail CallbackType = "after_guardrail"

	// CallbackAfterRoute is triggered after the routing decision.
	CallbackAfterRoute CallbackType = "after_route"

	// CallbackAfterAnswer is triggered once the answer is complete. For
	// streamed queries this is after the last fragment.
	CallbackAfterAnswer CallbackType = "after_answer"
)

// CallbackContext carries what is known about the query at a callback point.
// Fields that are not yet known are zero or nil.
type CallbackContext struct {
	InvocationID string
	SessionID    string
	Query        string

	// Verdict is set from CallbackAfterGuardrail on.
	Verdict *guardrail.Verdict

	// Route is set from CallbackAfterRoute on. Blocked queries never have one.
	Route *routing.Route

	// Answer and Failed are set for CallbackAfterAnswer.
	Answer string
	Failed bool

	CallbackType CallbackType
	Metadata     map[string]any
}

// Callback defines the interface for pipeline hooks.
//
// Implementations should be fast (they block the query) and safe for
// concurrent use (queries on different sessions run in parallel).
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackAfterRoute,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        metrics.Inc(cc.Route.Decision.String())
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is a registry of callbacks keyed by type. Callbacks of one
// type run in registration order. Registration and execution are safe for
// concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs every callback registered for callbackType. All
// callbacks run even if one fails; the returned slice holds their errors.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) []error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	var errs []error
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// LoggingCallback writes a structured log line for a pipeline point.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logging.OrNoOp(logger),
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the callback point with the fields known so far.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{
		"callback", string(cc.CallbackType),
		"session_id", cc.SessionID,
		"invocation_id", cc.InvocationID,
	}
	if cc.Verdict != nil {
		args = append(args, "blocked", cc.Verdict.Blocked)
	}
	if cc.Route != nil {
		args = append(args, "decision", cc.Route.Decision.String(), "reason", cc.Route.Evaluation.Reason)
	}
	if cc.CallbackType == CallbackAfterAnswer {
		args = append(args, "failed", cc.Failed, "answer_chars", len(cc.Answer))
	}
	c.logger.Info("Pipeline event", args...)
	return nil
}

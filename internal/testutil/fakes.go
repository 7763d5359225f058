package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ragmesh/core"
)

// Retriever is a scripted core.Retriever.
type Retriever struct {
	Passages []string
	Err      error

	calls     atomic.Int32
	mu        sync.Mutex
	lastQuery string
}

// Query implements core.Retriever.
func (r *Retriever) Query(_ context.Context, text string, limit int) ([]string, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.lastQuery = text
	r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := r.Passages
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]string(nil), out...), nil
}

// Calls returns the number of Query invocations.
func (r *Retriever) Calls() int { return int(r.calls.Load()) }

// LastQuery returns the text of the most recent Query.
func (r *Retriever) LastQuery() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastQuery
}

// WebSearcher is a scripted core.WebSearcher.
type WebSearcher struct {
	Results []core.WebResult
	Err     error

	calls atomic.Int32
}

// Search implements core.WebSearcher.
func (w *WebSearcher) Search(_ context.Context, _ string, limit int) ([]core.WebResult, error) {
	w.calls.Add(1)
	if w.Err != nil {
		return nil, w.Err
	}
	out := w.Results
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]core.WebResult(nil), out...), nil
}

// Calls returns the number of Search invocations.
func (w *WebSearcher) Calls() int { return int(w.calls.Load()) }

// Moderator is a scripted core.Moderator.
type Moderator struct {
	Flagged    bool
	Categories []string
	Err        error

	calls atomic.Int32
}

// Moderate implements core.Moderator.
func (m *Moderator) Moderate(context.Context, string) (core.ModerationResult, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return core.ModerationResult{}, m.Err
	}
	return core.ModerationResult{Flagged: m.Flagged, Categories: m.Categories}, nil
}

// Calls returns the number of Moderate invocations.
func (m *Moderator) Calls() int { return int(m.calls.Load()) }

var (
	_ core.Retriever   = (*Retriever)(nil)
	_ core.WebSearcher = (*WebSearcher)(nil)
	_ core.Moderator   = (*Moderator)(nil)
)

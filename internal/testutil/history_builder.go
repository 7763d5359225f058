package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/ragmesh/core"
)

// HistoryBuilder provides a fluent helper for constructing session histories.
// Example:
//
//	h := NewHistoryBuilder().Exchange("hi", "hello").Numbered(3).Build()
type HistoryBuilder struct {
	start     time.Time
	exchanges []core.Exchange
}

// NewHistoryBuilder creates an empty builder with a fixed base timestamp.
func NewHistoryBuilder() *HistoryBuilder {
	return &HistoryBuilder{start: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Exchange appends a single exchange (chainable).
func (b *HistoryBuilder) Exchange(user, assistant string) *HistoryBuilder {
	b.exchanges = append(b.exchanges, core.Exchange{
		User:      user,
		Assistant: assistant,
		Timestamp: b.start.Add(time.Duration(len(b.exchanges)) * time.Minute),
	})
	return b
}

// Numbered appends n exchanges "q<i>"/"a<i>" continuing the current count (chainable).
func (b *HistoryBuilder) Numbered(n int) *HistoryBuilder {
	for i := 0; i < n; i++ {
		idx := len(b.exchanges) + 1
		b.Exchange(fmt.Sprintf("q%d", idx), fmt.Sprintf("a%d", idx))
	}
	return b
}

// Build returns the constructed history.
func (b *HistoryBuilder) Build() []core.Exchange {
	return append([]core.Exchange(nil), b.exchanges...)
}

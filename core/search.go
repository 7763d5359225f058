package core

import "context"

// WebResult is a single ranked hit returned by a live web search provider.
type WebResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// ModerationResult is the outcome of a content moderation call.
type ModerationResult struct {
	Flagged    bool     `json:"flagged"`
	Categories []string `json:"categories,omitempty"`
}

// Retriever returns ranked text passages for a query from a persistent
// document index. Implementations return an empty slice when nothing matches.
type Retriever interface {
	Query(ctx context.Context, text string, limit int) ([]string, error)
}

// WebSearcher returns ranked results for a query from a live search provider.
type WebSearcher interface {
	Search(ctx context.Context, text string, limit int) ([]WebResult, error)
}

// Moderator classifies text with an external moderation service.
type Moderator interface {
	Moderate(ctx context.Context, text string) (ModerationResult, error)
}

// RetrieverFunc adapts a plain function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, text string, limit int) ([]string, error)

// Query implements Retriever.
func (f RetrieverFunc) Query(ctx context.Context, text string, limit int) ([]string, error) {
	return f(ctx, text, limit)
}

// WebSearcherFunc adapts a plain function to the WebSearcher interface.
type WebSearcherFunc func(ctx context.Context, text string, limit int) ([]WebResult, error)

// Search implements WebSearcher.
func (f WebSearcherFunc) Search(ctx context.Context, text string, limit int) ([]WebResult, error) {
	return f(ctx, text, limit)
}

// ModeratorFunc adapts a plain function to the Moderator interface.
type ModeratorFunc func(ctx context.Context, text string) (ModerationResult, error)

// Moderate implements Moderator.
func (f ModeratorFunc) Moderate(ctx context.Context, text string) (ModerationResult, error) {
	return f(ctx, text)
}

// Package websearch implements core.WebSearcher on the Tavily search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/ragmesh/core"
)

// DefaultEndpoint is the Tavily search URL.
const DefaultEndpoint = "https://api.tavily.com/search"

// ErrMissingAPIKey is returned when no Tavily API key is configured.
var ErrMissingAPIKey = errors.New("tavily: API key is missing")

// Options configures a Tavily client.
type Options struct {
	Endpoint string
	// Depth is Tavily's search_depth parameter (basic or advanced).
	Depth      string
	HTTPClient *http.Client
}

// Tavily calls the Tavily search API. Failed calls are not retried.
type Tavily struct {
	apiKey string
	opts   Options
}

// NewTavily constructs a Tavily search provider.
func NewTavily(apiKey string, optFns ...func(o *Options)) *Tavily {
	opts := Options{
		Endpoint:   DefaultEndpoint,
		Depth:      "basic",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tavily{apiKey: apiKey, opts: opts}
}

// Search posts a query to Tavily and returns at most limit results.
func (t *Tavily) Search(ctx context.Context, query string, limit int) ([]core.WebResult, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if limit <= 0 {
		return []core.WebResult{}, nil
	}

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"api_key":      t.apiKey,
		"search_depth": t.opts.Depth,
		"max_results":  limit,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.opts.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	results := make([]core.WebResult, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, core.WebResult{Title: r.Title, URL: r.URL, Content: r.Content})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

var _ core.WebSearcher = (*Tavily)(nil)

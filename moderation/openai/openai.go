// Package openai implements core.Moderator on the OpenAI moderation endpoint.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/ragmesh/core"
)

// DefaultModel is the moderation model used when none is configured.
const DefaultModel = "omni-moderation-latest"

// Options configures a Moderator.
type Options struct {
	Model string
}

// Moderator classifies text with the OpenAI moderation API.
type Moderator struct {
	client *openai.Client
	opts   Options
}

// NewModerator creates a Moderator using the official client with SDK
// retries disabled.
func NewModerator(optFns ...func(o *Options)) *Moderator {
	client := openai.NewClient(option.WithMaxRetries(0))
	return NewModeratorFromClient(&client, optFns...)
}

// NewModeratorFromClient creates a Moderator from an existing client.
func NewModeratorFromClient(client *openai.Client, optFns ...func(o *Options)) *Moderator {
	opts := Options{Model: DefaultModel}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Moderator{client: client, opts: opts}
}

// Moderate implements core.Moderator.
func (m *Moderator) Moderate(ctx context.Context, text string) (core.ModerationResult, error) {
	resp, err := m.client.Moderations.New(ctx, openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.ModerationModel(m.opts.Model),
	})
	if err != nil {
		return core.ModerationResult{}, fmt.Errorf("openai moderation error: %w", err)
	}
	if len(resp.Results) == 0 {
		return core.ModerationResult{}, errors.New("openai moderation: no results returned")
	}

	r := resp.Results[0]
	return core.ModerationResult{
		Flagged:    r.Flagged,
		Categories: flaggedCategories(r.Categories.RawJSON()),
	}, nil
}

// flaggedCategories extracts the names of categories set to true.
func flaggedCategories(raw string) []string {
	if raw == "" {
		return nil
	}
	var cats map[string]bool
	if err := json.Unmarshal([]byte(raw), &cats); err != nil {
		return nil
	}
	var out []string
	for name, hit := range cats {
		if hit {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

var _ core.Moderator = (*Moderator)(nil)

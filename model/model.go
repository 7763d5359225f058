package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrEmptyPrompt is returned when a request carries no prompt text.
var ErrEmptyPrompt = errors.New("model: empty prompt")

// Request captures the normalized model input.
type Request struct {
	Instructions string `json:"instructions"` // System instructions
	Prompt       string `json:"prompt"`       // User content
	MaxTokens    int64  `json:"max_tokens,omitempty"`
	Stream       bool   `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry an incremental fragment; the final chunk carries the full text.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Model is the minimal interface required to drive generation.
//
// Generate returns a response channel and an error channel; both are closed
// when generation ends. At most one error is delivered.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete runs a non-streaming generation and returns the final text.
func Complete(ctx context.Context, m Model, req Request) (string, error) {
	req.Stream = false
	respCh, errCh := m.Generate(ctx, req)

	var (
		final    string
		partials strings.Builder
		gotFinal bool
	)
	for resp := range respCh {
		if resp.Partial {
			partials.WriteString(resp.Text)
			continue
		}
		final = resp.Text
		gotFinal = true
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	if !gotFinal {
		final = partials.String()
	}
	return final, nil
}

// Stream runs a streaming generation and forwards text fragments in order.
// Providers that only emit a final response produce a single fragment. The
// error channel receives at most one error after the fragment channel closes.
func Stream(ctx context.Context, m Model, req Request) (<-chan string, <-chan error) {
	req.Stream = true
	out := make(chan string)
	errOut := make(chan error, 1)

	go func() {
		defer close(errOut)

		respCh, errCh := m.Generate(ctx, req)
		forwarded := false
		failed := false
		for resp := range respCh {
			if failed {
				continue // drain
			}
			if !resp.Partial && forwarded {
				continue
			}
			if resp.Text == "" {
				continue
			}
			select {
			case out <- resp.Text:
				forwarded = true
			case <-ctx.Done():
				failed = true
			}
		}
		close(out)

		if err := <-errCh; err != nil {
			errOut <- err
			return
		}
		if failed {
			errOut <- ctx.Err()
		}
	}()
	return out, errOut
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	err       error
	failAfter int
	failErr   error
	requests  []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
		failAfter: -1,
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetError makes every subsequent generation fail before producing output.
// A nil err restores normal behaviour.
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetStreamFailure makes streaming generations fail with err after emitting
// n fragments.
func (m *MockModel) SetStreamFailure(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.failErr = err
}

// Requests returns a copy of every request received.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model; emits per-rune streaming chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	full, ok := m.responses[req.Prompt]
	genErr, failAfter, failErr := m.err, m.failAfter, m.failErr
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if genErr != nil {
			errCh <- genErr
			return
		}
		if req.Prompt == "" {
			errCh <- ErrEmptyPrompt
			return
		}
		if !ok {
			full = fmt.Sprintf("Mock response to: %s", req.Prompt)
		}
		if req.Stream {
			i := 0
			for _, r := range full {
				if failAfter >= 0 && i == failAfter {
					errCh <- failErr
					return
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
				i++
			}
		}
		respCh <- Response{Text: full, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/model"
)

var _ model.Model = (*Model)(nil)

func newTestModel(t *testing.T, h http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client := anthropic.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client)
}

func TestModel_Complete(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"AWS grew."}],
			"stop_reason":"end_turn","stop_sequence":null,
			"usage":{"input_tokens":7,"output_tokens":3}}`)
	})

	text, err := model.Complete(context.Background(), m, model.Request{
		Instructions: "be brief",
		Prompt:       "How did AWS do?",
		MaxTokens:    200,
	})
	require.NoError(t, err)
	assert.Equal(t, "AWS grew.", text)
	assert.EqualValues(t, 200, body["max_tokens"])
	system, ok := body["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "be brief", system[0].(map[string]any)["text"])
}

func TestModel_Stream(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":1,"output_tokens":0}}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"AWS "}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"grew."}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`,
			`{"type":"message_stop"}`,
		}
		for _, ev := range events {
			var head struct{ Type string }
			_ = json.Unmarshal([]byte(ev), &head)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", head.Type, ev)
		}
	})

	frags, errs := model.Stream(context.Background(), m, model.Request{Prompt: "q"})
	var got []string
	for f := range frags {
		got = append(got, f)
	}
	require.NoError(t, <-errs)
	assert.Equal(t, []string{"AWS ", "grew."}, got)
}

func TestModel_EmptyPrompt(t *testing.T) {
	m := NewModelFromClient(nil)
	_, err := model.Complete(context.Background(), m, model.Request{})
	assert.ErrorIs(t, err, model.ErrEmptyPrompt)
}

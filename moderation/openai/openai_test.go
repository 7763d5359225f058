package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T, h http.HandlerFunc) *Moderator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client := openai.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	return NewModeratorFromClient(&client)
}

func TestModerator_Flagged(t *testing.T) {
	var body map[string]any
	m := newTestModerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/moderations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"modr-1","model":"omni-moderation-latest","results":[{"flagged":true,
			"categories":{"harassment":true,"hate":false,"violence":true},
			"category_scores":{"harassment":0.9,"hate":0.01,"violence":0.8}}]}`)
	})

	res, err := m.Moderate(context.Background(), "bad words")
	require.NoError(t, err)
	assert.True(t, res.Flagged)
	assert.Equal(t, []string{"harassment", "violence"}, res.Categories)
	assert.Equal(t, "bad words", body["input"])
	assert.Equal(t, DefaultModel, body["model"])
}

func TestModerator_Clean(t *testing.T) {
	m := newTestModerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"modr-2","model":"omni-moderation-latest","results":[{"flagged":false,
			"categories":{"harassment":false},"category_scores":{"harassment":0.0}}]}`)
	})

	res, err := m.Moderate(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, res.Flagged)
	assert.Empty(t, res.Categories)
}

func TestModerator_ErrorNotRetried(t *testing.T) {
	calls := 0
	m := newTestModerator(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"down"}}`)
	})

	_, err := m.Moderate(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFlaggedCategories(t *testing.T) {
	assert.Nil(t, flaggedCategories(""))
	assert.Nil(t, flaggedCategories("not json"))
	assert.Equal(t, []string{"a", "b"}, flaggedCategories(`{"b":true,"a":true,"c":false}`))
}

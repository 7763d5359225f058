package ragmesh

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/composer"
	"github.com/hupe1980/ragmesh/config"
	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/guardrail"
	"github.com/hupe1980/ragmesh/internal/testutil"
	"github.com/hupe1980/ragmesh/model"
	"github.com/hupe1980/ragmesh/routing"
)

const letter = "Amazon's revenue in 2023 increased 12% year-over-year to $575 billion. " +
	"North America segment revenue grew 12% and AWS segment revenue grew 13% to $91 billion."

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Provider: config.ProviderOpenAI,
		Model:    config.ModelConfig{OpenAIModel: "gpt-3.5-turbo", MaxTokens: 600},
		Retrieval: config.RetrievalConfig{
			StorePath:  t.TempDir(),
			Collection: "documents",
			ChunkSize:  1000,
			MaxResults: 3,
		},
		Web:    config.WebConfig{MaxResults: 3, Fallback: true},
		Memory: config.MemoryConfig{MaxExchanges: 20, KeepRecent: 5, ContextExchanges: 10, SummaryMaxTokens: 200},
		Log:    config.LogConfig{Level: "error", Format: "text"},
	}
}

func newMesh(t *testing.T, cfg *config.Config, optFns ...func(o *Options)) (*RAGMesh, *model.MockModel) {
	t.Helper()
	llm := model.NewMockModel("mock", "mock")
	m, err := New(cfg, append([]func(o *Options){func(o *Options) {
		o.Model = llm
		o.Logger = &testutil.RecordingLogger{}
	}}, optFns...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, llm
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	cfg := testConfig(t)
	cfg.Memory.KeepRecent = cfg.Memory.MaxExchanges
	_, err = New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestAsk_AnswersFromIngestedDocuments(t *testing.T) {
	web := &testutil.WebSearcher{}
	m, llm := newMesh(t, testConfig(t), func(o *Options) { o.WebSearcher = web })

	n, err := m.Ingest(context.Background(), "letters/2023.txt", letter)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	docs, err := m.Documents()
	require.NoError(t, err)
	assert.EqualValues(t, 1, docs)

	res := m.Ask(context.Background(), "s1", "What was Amazon's 2023 revenue?")

	require.NotNil(t, res.Route)
	assert.Equal(t, routing.DecisionDocuments, res.Route.Decision)
	assert.Equal(t, []string{composer.SourceDocuments}, res.Sources)
	assert.Zero(t, web.Calls())
	assert.False(t, res.Failed)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "Document context: "+letter)
	assert.Len(t, m.History("s1"), 1)
}

func TestAsk_NoWebSearcherDisablesFallback(t *testing.T) {
	m, _ := newMesh(t, testConfig(t))

	res := m.Ask(context.Background(), "s1", "Tell me a story about dragons")

	require.NotNil(t, res.Route)
	assert.Equal(t, routing.DecisionNone, res.Route.Decision)
	assert.Empty(t, res.Sources)
}

func TestAsk_WebFallbackWhenDocumentsInsufficient(t *testing.T) {
	web := &testutil.WebSearcher{Results: []core.WebResult{{Title: "Dragons", Content: "Dragons are mythical."}}}
	m, _ := newMesh(t, testConfig(t), func(o *Options) { o.WebSearcher = web })

	res := m.Ask(context.Background(), "s1", "Tell me a story about dragons")

	assert.Equal(t, routing.DecisionWeb, res.Route.Decision)
	assert.Equal(t, 1, web.Calls())
}

func TestAsk_PolicyFileDenyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: test\ndeny_list: [\"secret project\"]\ntopic_refusal: \"Not here.\"\n"), 0o600))

	cfg := testConfig(t)
	cfg.Policy.File = path
	moderator := &testutil.Moderator{}
	m, llm := newMesh(t, cfg, func(o *Options) { o.Moderator = moderator })

	res := m.Ask(context.Background(), "s1", "Tell me about the Secret Project")

	assert.True(t, res.Verdict.Blocked)
	assert.Equal(t, guardrail.ReasonPolicyTopic, res.Verdict.Reason)
	assert.Equal(t, "Not here.", res.Answer)
	assert.Zero(t, moderator.Calls())
	assert.Empty(t, llm.Requests())
	assert.Empty(t, m.History("s1"))
}

func TestNew_MissingPolicyFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Policy.File = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(cfg, func(o *Options) {
		o.Model = model.NewMockModel("mock", "mock")
		o.Logger = &testutil.RecordingLogger{}
	})
	require.Error(t, err)
}

func TestStream_RecordsAnswer(t *testing.T) {
	m, _ := newMesh(t, testConfig(t))

	_, frags := m.Stream(context.Background(), "s1", "hello there")
	var b strings.Builder
	for f := range frags {
		b.WriteString(f)
	}

	history := m.History("s1")
	require.Len(t, history, 1)
	assert.Equal(t, b.String(), history[0].Assistant)
}

func TestStatsAndClear(t *testing.T) {
	m, _ := newMesh(t, testConfig(t))
	m.Ask(context.Background(), "s1", "hello there")

	st := m.Stats("s1")
	assert.Equal(t, 1, st.Exchanges)
	assert.Positive(t, st.Chars)
	assert.Equal(t, st.Chars/4, st.EstimatedTokens)

	m.Clear("s1")
	assert.Zero(t, m.Stats("s1").Exchanges)
}

func TestReopenKeepsDocuments(t *testing.T) {
	cfg := testConfig(t)
	m, _ := newMesh(t, cfg)
	_, err := m.Ingest(context.Background(), "letters/2023.txt", letter)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, _ := newMesh(t, cfg)
	docs, err := reopened.Documents()
	require.NoError(t, err)
	assert.EqualValues(t, 1, docs)
}

func TestClose_Twice(t *testing.T) {
	m, _ := newMesh(t, testConfig(t))
	require.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestNew_InstructionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instructions.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("Be terse. Sources: {{.Sources}}"), 0o600))

	cfg := testConfig(t)
	cfg.Model.InstructionsFile = path
	m, llm := newMesh(t, cfg)

	m.Ask(context.Background(), "s1", "hello there")
	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Be terse. Sources: general knowledge", reqs[0].Instructions)

	require.NoError(t, os.WriteFile(path, []byte("{{.Sources"), 0o600))
	_, err := New(cfg, func(o *Options) {
		o.Model = model.NewMockModel("mock", "mock")
		o.Logger = &testutil.RecordingLogger{}
	})
	assert.Error(t, err)
}

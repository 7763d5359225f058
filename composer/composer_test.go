package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/internal/testutil"
	"github.com/hupe1980/ragmesh/model"
)

func TestRequest_NoContext(t *testing.T) {
	c := New(model.NewMockModel("mock", "mock"))
	req := c.Request(Input{Query: "Who wrote Moby Dick?"})

	assert.Contains(t, req.Instructions, "Sources available: general knowledge")
	assert.Equal(t, "Context: No specific context available.\n\nQuestion: Who wrote Moby Dick?", req.Prompt)
	assert.EqualValues(t, 600, req.MaxTokens)
}

func TestRequest_WithMemoryAndParts(t *testing.T) {
	c := New(model.NewMockModel("mock", "mock"), func(o *Options) { o.MaxTokens = 100 })
	req := c.Request(Input{
		Query:   "And AWS?",
		Memory:  "User: hi\nAssistant: hello",
		Parts:   []string{"Current web information: sunny", "Document context: revenue grew"},
		Sources: []string{SourceWeb, SourceDocuments},
	})

	assert.Contains(t, req.Instructions, "Sources available: web search, documents")
	assert.Equal(t, "Context: Previous conversation:\nUser: hi\nAssistant: hello\n\n"+
		"Current web information: sunny\nDocument context: revenue grew\n\nQuestion: And AWS?", req.Prompt)
	assert.EqualValues(t, 100, req.MaxTokens)
}

func TestCompose(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	c := New(m)
	in := Input{Query: "q"}
	m.AddResponse(c.Request(in).Prompt, "the answer")

	out := c.Compose(context.Background(), in)
	assert.Equal(t, Output{Text: "the answer"}, out)
}

func TestCompose_Failure(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetError(errors.New("timeout"))
	log := &testutil.RecordingLogger{}
	c := New(m, func(o *Options) { o.Logger = log })

	out := c.Compose(context.Background(), Input{Query: "q"})
	assert.True(t, out.Failed)
	assert.Equal(t, DefaultFailureMessage, out.Text)
	assert.Contains(t, strings.ToLower(out.Text), "error")
	assert.Equal(t, 1, log.Count("WARN"))
}

func drain(frags <-chan string, done <-chan Output) ([]string, Output) {
	var got []string
	for f := range frags {
		got = append(got, f)
	}
	return got, <-done
}

func TestComposeStream_EqualsBatch(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	c := New(m)
	in := Input{Query: "q", Parts: []string{"Document context: x"}, Sources: []string{SourceDocuments}}
	m.AddResponse(c.Request(in).Prompt, "Amazon grew.")

	frags, done := c.ComposeStream(context.Background(), in)
	got, out := drain(frags, done)

	require.False(t, out.Failed)
	assert.Equal(t, "Amazon grew.", strings.Join(got, ""))
	assert.Equal(t, c.Compose(context.Background(), in).Text, out.Text)
}

func TestComposeStream_FailureIsLastFragment(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	c := New(m)
	in := Input{Query: "q"}
	m.AddResponse(c.Request(in).Prompt, "partial answer")
	m.SetStreamFailure(4, errors.New("reset"))

	frags, done := c.ComposeStream(context.Background(), in)
	got, out := drain(frags, done)

	require.True(t, out.Failed)
	require.NotEmpty(t, got)
	assert.Equal(t, "\n\n"+DefaultFailureMessage, got[len(got)-1])
	assert.Equal(t, "part\n\n"+DefaultFailureMessage, out.Text)
}

func TestComposeStream_FailureBeforeOutput(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetError(errors.New("down"))
	c := New(m)

	got, out := drain(c.ComposeStream(context.Background(), Input{Query: "q"}))
	assert.Equal(t, []string{DefaultFailureMessage}, got)
	assert.True(t, out.Failed)
}

func TestRequest_CustomInstructions(t *testing.T) {
	log := &testutil.RecordingLogger{}
	c := New(model.NewMockModel("mock", "mock"), func(o *Options) {
		o.Instructions = "Answer briefly from {{.Sources | upper}}.{{if .HasMemory}} Continue the conversation.{{end}}"
		o.Logger = log
	})

	req := c.Request(Input{Query: "q", Memory: "User: a\nAssistant: b", Sources: []string{SourceDocuments}})
	assert.Equal(t, "Answer briefly from DOCUMENTS. Continue the conversation.", req.Instructions)

	req = c.Request(Input{Query: "q"})
	assert.Equal(t, "Answer briefly from GENERAL KNOWLEDGE.", req.Instructions)
	assert.Zero(t, log.Count("WARN"))
}

func TestNew_InvalidInstructionsFallBackToDefault(t *testing.T) {
	log := &testutil.RecordingLogger{}
	c := New(model.NewMockModel("mock", "mock"), func(o *Options) {
		o.Instructions = "{{.Sources"
		o.Logger = log
	})

	req := c.Request(Input{Query: "q"})
	assert.Contains(t, req.Instructions, "Sources available: general knowledge")
	assert.Equal(t, 1, log.Count("ERROR"))
}

func TestParseInstructions(t *testing.T) {
	_, err := ParseInstructions("{{.Sources}}")
	require.NoError(t, err)
	_, err = ParseInstructions("{{end}}")
	assert.Error(t, err)
}

// Package composer turns a query and its gathered context into a final
// answer using a completion model, in batch or streaming mode.
//
// Composition never returns an error to the caller. A failed completion is
// reported through Output.Failed together with a message stating that an
// error occurred; in streaming mode that message is the last fragment.
package composer

import (
	"context"
	"strings"
	"text/template"
	"time"

	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/model"
)

// Source labels used in the system instructions.
const (
	SourceWeb       = "web search"
	SourceDocuments = "documents"
)

const (
	defaultMaxTokens = 600
	noContext        = "No specific context available."
	generalKnowledge = "general knowledge"
	// DefaultFailureMessage is returned when the completion call fails.
	DefaultFailureMessage = "I'm sorry, an error occurred while generating a response. Please try again."
)

// Input is everything the composer needs for one answer.
type Input struct {
	Query string
	// Memory is the rendered conversation history; empty means none.
	Memory string
	// Parts are labelled context blocks such as "Document context: ...".
	Parts []string
	// Sources name the origins of Parts, e.g. SourceWeb.
	Sources []string
}

// Output is a composed answer.
type Output struct {
	Text   string
	Failed bool
}

// Options configures a Composer.
type Options struct {
	MaxTokens      int64
	FailureMessage string
	// Instructions overrides DefaultInstructions. A template that fails to
	// parse is logged and replaced by the default.
	Instructions string
	Logger       logging.Logger
}

// Composer produces answers with a completion model.
type Composer struct {
	model        model.Model
	opts         Options
	instructions *template.Template
}

// New creates a Composer.
func New(m model.Model, optFns ...func(o *Options)) *Composer {
	opts := Options{
		MaxTokens:      defaultMaxTokens,
		FailureMessage: DefaultFailureMessage,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	c := &Composer{model: m, opts: opts, instructions: defaultInstructions}
	if opts.Instructions != "" {
		tmpl, err := ParseInstructions(opts.Instructions)
		if err != nil {
			opts.Logger.Error("Invalid instructions template, using default", "error", err.Error())
		} else {
			c.instructions = tmpl
		}
	}
	return c
}

// Request builds the completion request for in.
func (c *Composer) Request(in Input) model.Request {
	sources := generalKnowledge
	if len(in.Sources) > 0 {
		sources = strings.Join(in.Sources, ", ")
	}

	var memory string
	if in.Memory != "" {
		memory = "Previous conversation:\n" + in.Memory + "\n\n"
	}
	body := noContext
	if len(in.Parts) > 0 {
		body = strings.Join(in.Parts, "\n")
	}

	data := InstructionsData{Sources: sources, Query: in.Query, HasMemory: in.Memory != ""}
	instructions, err := render(c.instructions, data)
	if err != nil {
		c.opts.Logger.Warn("Instructions template failed, using default", "error", err.Error())
		instructions, _ = render(defaultInstructions, data)
	}

	return model.Request{
		Instructions: instructions,
		Prompt:       "Context: " + memory + body + "\n\nQuestion: " + in.Query,
		MaxTokens:    c.opts.MaxTokens,
	}
}

// Compose generates a complete answer.
func (c *Composer) Compose(ctx context.Context, in Input) Output {
	start := time.Now()
	text, err := model.Complete(ctx, c.model, c.Request(in))
	logging.LogExternalCall(c.opts.Logger, "completion", time.Since(start), err == nil, err)
	if err != nil {
		return Output{Text: c.opts.FailureMessage, Failed: true}
	}
	return Output{Text: text}
}

// ComposeStream generates an answer as a fragment stream. The fragment
// channel closes after the last fragment; the output channel then yields
// the concatenated answer exactly once.
func (c *Composer) ComposeStream(ctx context.Context, in Input) (<-chan string, <-chan Output) {
	out := make(chan string)
	done := make(chan Output, 1)

	go func() {
		defer close(done)
		defer close(out)

		send := func(s string) {
			select {
			case out <- s:
			case <-ctx.Done():
			}
		}

		start := time.Now()
		frags, errs := model.Stream(ctx, c.model, c.Request(in))

		var sb strings.Builder
		for f := range frags {
			sb.WriteString(f)
			send(f)
		}
		err := <-errs
		logging.LogExternalCall(c.opts.Logger, "completion", time.Since(start), err == nil, err)

		if err != nil {
			msg := c.opts.FailureMessage
			if sb.Len() > 0 {
				msg = "\n\n" + msg
			}
			send(msg)
			done <- Output{Text: sb.String() + msg, Failed: true}
			return
		}
		done <- Output{Text: sb.String()}
	}()
	return out, done
}

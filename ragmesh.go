// Package ragmesh provides a high-level façade over the query engine and its
// collaborators (document index, web search, moderation, session memory and
// completion provider). Most applications interact with this package by:
//  1. Loading a config.Config (usually via config.Load)
//  2. Creating a RAGMesh via New, optionally overriding collaborators
//  3. Asking questions with Ask (batched) or Stream (incremental)
//
// The façade wires defaults from the configuration and owns the lifecycle of
// everything it opened; Close releases the index, the moderation cache and
// the policy watcher.
package ragmesh

import (
	"context"
	"errors"
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/hupe1980/ragmesh/composer"
	"github.com/hupe1980/ragmesh/config"
	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/engine"
	"github.com/hupe1980/ragmesh/guardrail"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/memory"
	"github.com/hupe1980/ragmesh/model"
	"github.com/hupe1980/ragmesh/model/anthropic"
	"github.com/hupe1980/ragmesh/model/openai"
	"github.com/hupe1980/ragmesh/moderation"
	moderationopenai "github.com/hupe1980/ragmesh/moderation/openai"
	"github.com/hupe1980/ragmesh/policy"
	"github.com/hupe1980/ragmesh/retrieval"
	"github.com/hupe1980/ragmesh/routing"
	"github.com/hupe1980/ragmesh/websearch"
)

// WelcomeMessage greets a new conversation.
const WelcomeMessage = "Hello! I'm your AI assistant with access to documents and web search. " +
	"I can help you with questions about Amazon's 2023 shareholder letter or current information. " +
	"How can I assist you today?"

// Options overrides collaborators that New would otherwise build from the
// configuration. Nil fields use the configured default.
type Options struct {
	// Model composes answers and summaries. Defaults to the configured provider.
	Model model.Model

	// Moderator backs the guardrail's second stage. Defaults to OpenAI
	// moderation behind a TTL cache when an OpenAI key is configured.
	Moderator core.Moderator

	// WebSearcher defaults to Tavily when TAVILY_API_KEY is set.
	WebSearcher core.WebSearcher

	// Callbacks observe the pipeline.
	Callbacks *engine.CallbackManager

	// Logger defaults to a slog logger built from the log settings, writing to stderr.
	Logger logging.Logger
}

// RAGMesh is the high-level façade aggregating the engine and its services.
type RAGMesh struct {
	cfg    *config.Config
	engine *engine.Engine
	store  *retrieval.Store
	logger logging.Logger

	closers []func() error
}

// New creates a RAGMesh from cfg.
func New(cfg *config.Config, optFns ...func(o *Options)) (*RAGMesh, error) {
	if cfg == nil {
		return nil, errors.New("ragmesh: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(&logging.LoggerConfig{
			Level:     logging.ParseLevel(cfg.Log.Level),
			Format:    cfg.Log.Format,
			Output:    os.Stderr,
			Component: "ragmesh",
		})
	}

	m := &RAGMesh{cfg: cfg, logger: opts.Logger}
	if err := m.build(opts); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

func (m *RAGMesh) build(opts Options) error {
	cfg := m.cfg

	llm := opts.Model
	if llm == nil {
		llm = newProviderModel(cfg)
	}

	var src policy.Source = policy.Static(policy.Default())
	if cfg.Policy.File != "" {
		if cfg.Policy.Watch {
			w, err := policy.NewWatcher(cfg.Policy.File, func(o *policy.WatcherOptions) {
				o.Logger = m.component("policy")
			})
			if err != nil {
				return err
			}
			m.closers = append(m.closers, w.Close)
			src = w
		} else {
			p, err := policy.Load(cfg.Policy.File)
			if err != nil {
				return err
			}
			src = policy.Static(p)
		}
	}

	moderator := opts.Moderator
	if moderator == nil && cfg.ModerationAvailable() {
		client := openaisdk.NewClient(openaiopt.WithAPIKey(cfg.Model.OpenAIAPIKey), openaiopt.WithMaxRetries(0))
		cache, err := moderation.NewCache(moderationopenai.NewModeratorFromClient(&client),
			func(o *moderation.CacheOptions) { o.TTL = cfg.Moderation.CacheTTL })
		if err != nil {
			return fmt.Errorf("create moderation cache: %w", err)
		}
		m.closers = append(m.closers, func() error { cache.Close(); return nil })
		moderator = cache
	}
	if moderator == nil {
		m.logger.Warn("Moderation disabled", "reason", "no moderator configured")
	}

	var instructions string
	if cfg.Model.InstructionsFile != "" {
		data, err := os.ReadFile(cfg.Model.InstructionsFile)
		if err != nil {
			return fmt.Errorf("read instructions: %w", err)
		}
		if _, err := composer.ParseInstructions(string(data)); err != nil {
			return err
		}
		instructions = string(data)
	}

	webSearcher := opts.WebSearcher
	if webSearcher == nil && cfg.WebEnabled() {
		webSearcher = websearch.NewTavily(cfg.Web.TavilyAPIKey)
	}

	store, err := retrieval.Open(func(o *retrieval.Options) {
		o.Path = cfg.Retrieval.StorePath
		o.Collection = cfg.Retrieval.Collection
		o.ChunkSize = cfg.Retrieval.ChunkSize
		o.Logger = m.component("retrieval")
	})
	if err != nil {
		return err
	}
	m.store = store
	m.closers = append(m.closers, store.Close)

	mem, err := memory.New(func(o *memory.Options) {
		o.Policy = memory.Policy{
			MaxExchanges:     cfg.Memory.MaxExchanges,
			KeepRecent:       cfg.Memory.KeepRecent,
			ContextExchanges: cfg.Memory.ContextExchanges,
			SummaryMaxTokens: cfg.Memory.SummaryMaxTokens,
		}
		o.Summarizer = llm
		o.Logger = m.component("memory")
	})
	if err != nil {
		return err
	}
	m.closers = append(m.closers, mem.Close)

	engineCfg := engine.DefaultConfig
	engineCfg.MaxDocResults = cfg.Retrieval.MaxResults
	engineCfg.MaxWebResults = cfg.Web.MaxResults

	eng, err := engine.New(llm, func(o *engine.Options) {
		o.Config = engineCfg
		o.Retriever = store
		o.WebSearcher = webSearcher
		o.Guardrail = guardrail.New(func(g *guardrail.Options) {
			g.Moderator = moderator
			g.Policy = src
			g.Logger = m.component("guardrail")
		})
		o.Router = routing.New(func(r *routing.Options) {
			r.WebFallback = cfg.Web.Fallback && webSearcher != nil
			r.CrossValidate = cfg.Web.CrossValidate
			r.Policy = src
		})
		o.Memory = mem
		o.Composer = composer.New(llm, func(c *composer.Options) {
			c.MaxTokens = cfg.Model.MaxTokens
			c.Instructions = instructions
			c.Logger = m.component("composer")
		})
		o.Callbacks = opts.Callbacks
		o.Logger = m.component("engine")
	})
	if err != nil {
		return err
	}
	m.engine = eng

	info := llm.Info()
	docs, _ := store.Count()
	m.logger.Info("RAGMesh ready",
		"provider", info.Provider,
		"model", info.Name,
		"web_search", webSearcher != nil,
		"moderation", moderator != nil,
		"documents", docs)
	return nil
}

func (m *RAGMesh) component(name string) logging.Logger {
	return logging.With(m.logger, "component", name)
}

func newProviderModel(cfg *config.Config) model.Model {
	if cfg.Provider == config.ProviderAnthropic {
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Model.AnthropicModel)
			o.MaxTokens = cfg.Model.MaxTokens
			o.APIKey = cfg.Model.AnthropicAPIKey
		})
	}
	clientOpts := []openaiopt.RequestOption{openaiopt.WithMaxRetries(0)}
	if cfg.Model.OpenAIAPIKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(cfg.Model.OpenAIAPIKey))
	}
	client := openaisdk.NewClient(clientOpts...)
	return openai.NewModelFromClient(&client, func(o *openai.Options) {
		o.Model = cfg.Model.OpenAIModel
		o.MaxCompletionTokens = cfg.Model.MaxTokens
	})
}

// Ask answers query within sessionID.
func (m *RAGMesh) Ask(ctx context.Context, sessionID, query string) engine.Result {
	return m.engine.Process(ctx, sessionID, query)
}

// Stream answers query within sessionID fragment by fragment.
func (m *RAGMesh) Stream(ctx context.Context, sessionID, query string) (engine.Result, <-chan string) {
	return m.engine.Stream(ctx, sessionID, query)
}

// Ingest chunks text and indexes it under source.
func (m *RAGMesh) Ingest(ctx context.Context, source, text string) (int, error) {
	return m.store.Ingest(ctx, source, text)
}

// Clear forgets the session history.
func (m *RAGMesh) Clear(sessionID string) { m.engine.Memory().Clear(sessionID) }

// Stats reports the session history size.
func (m *RAGMesh) Stats(sessionID string) memory.Stats { return m.engine.Memory().Stats(sessionID) }

// History returns the session exchanges, oldest first.
func (m *RAGMesh) History(sessionID string) []core.Exchange {
	return m.engine.Memory().History(sessionID)
}

// Documents returns the number of indexed chunks.
func (m *RAGMesh) Documents() (uint64, error) { return m.store.Count() }

// Callbacks returns the pipeline callback registry.
func (m *RAGMesh) Callbacks() *engine.CallbackManager { return m.engine.Callbacks() }

// Logger returns the logger shared by every component.
func (m *RAGMesh) Logger() logging.Logger { return m.logger }

// Close releases every resource opened by New in reverse order.
func (m *RAGMesh) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

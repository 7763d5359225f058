package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/model"
)

// NoHistory is returned by Context for sessions without exchanges.
const NoHistory = "No previous conversation."

const summaryInstruction = "Please provide a concise summary of this conversation history, " +
	"focusing on key topics discussed and important information shared:\n\n"

var (
	// ErrInvalidPolicy is returned by New for inconsistent limits.
	ErrInvalidPolicy = errors.New("memory: invalid policy")
	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("memory: store closed")
)

// Policy bounds session histories.
type Policy struct {
	// MaxExchanges triggers compaction when the history reaches this length.
	MaxExchanges int
	// KeepRecent is the number of newest exchanges kept verbatim.
	KeepRecent int
	// ContextExchanges is the number of newest exchanges rendered by Context.
	ContextExchanges int
	// SummaryMaxTokens bounds the summarization completion.
	SummaryMaxTokens int64
}

// DefaultPolicy returns the default limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxExchanges:     20,
		KeepRecent:       5,
		ContextExchanges: 10,
		SummaryMaxTokens: 200,
	}
}

// Validate checks the policy limits.
func (p Policy) Validate() error {
	switch {
	case p.MaxExchanges <= 0:
		return fmt.Errorf("%w: max exchanges must be positive", ErrInvalidPolicy)
	case p.KeepRecent < 0:
		return fmt.Errorf("%w: keep recent must not be negative", ErrInvalidPolicy)
	case p.KeepRecent >= p.MaxExchanges:
		return fmt.Errorf("%w: keep recent (%d) must be less than max exchanges (%d)",
			ErrInvalidPolicy, p.KeepRecent, p.MaxExchanges)
	case p.ContextExchanges <= 0:
		return fmt.Errorf("%w: context exchanges must be positive", ErrInvalidPolicy)
	}
	return nil
}

// Stats summarizes a session history.
type Stats struct {
	Exchanges       int `json:"exchanges"`
	Chars           int `json:"chars"`
	EstimatedTokens int `json:"estimated_tokens"`
}

// Options configures a Store.
type Options struct {
	Policy Policy
	// Summarizer condenses old exchanges. Nil disables summaries: compaction
	// then keeps only the newest exchanges.
	Summarizer model.Model
	Logger     logging.Logger
	// Now returns the timestamp for new exchanges.
	Now func() time.Time
}

type session struct {
	mu        sync.Mutex
	exchanges []core.Exchange
}

// Store is a process-local multi-session history store.
type Store struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
}

// New creates a Store.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Policy: DefaultPolicy(), Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{opts: opts, sessions: make(map[string]*session)}, nil
}

// lookup returns the session, creating it when create is set.
func (s *Store) lookup(id string, create bool) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok || !create {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[id]; ok || s.closed {
		return sess
	}
	sess = &session{}
	s.sessions[id] = sess
	return sess
}

// Context renders the newest ContextExchanges exchanges as alternating
// "User:" and "Assistant:" lines.
func (s *Store) Context(sessionID string) string {
	sess := s.lookup(sessionID, false)
	if sess == nil {
		return NoHistory
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.exchanges) == 0 {
		return NoHistory
	}

	recent := sess.exchanges
	if n := s.opts.Policy.ContextExchanges; len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	return render(recent)
}

func render(exchanges []core.Exchange) string {
	lines := make([]string, 0, 2*len(exchanges))
	for _, ex := range exchanges {
		lines = append(lines, "User: "+ex.User, "Assistant: "+ex.Assistant)
	}
	return strings.Join(lines, "\n")
}

// Append records an exchange and compacts the session when it reaches the
// limit. Compaction problems are logged, never returned.
func (s *Store) Append(ctx context.Context, sessionID, user, assistant string) error {
	sess, err := s.acquire(sessionID)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	sess.exchanges = append(sess.exchanges, core.Exchange{
		User:      user,
		Assistant: assistant,
		Timestamp: s.opts.Now(),
	})
	s.compactLocked(ctx, sessionID, sess)
	return nil
}

// acquire returns the locked live session for id, creating it if needed.
// A session removed by Clear between lookup and lock is not written to; the
// lookup is retried so the exchange lands in the fresh session.
func (s *Store) acquire(id string) (*session, error) {
	for {
		sess := s.lookup(id, true)
		if sess == nil {
			return nil, ErrClosed
		}
		sess.mu.Lock()

		s.mu.RLock()
		live, closed := s.sessions[id] == sess, s.closed
		s.mu.RUnlock()

		switch {
		case closed:
			sess.mu.Unlock()
			return nil, ErrClosed
		case live:
			return sess, nil
		}
		sess.mu.Unlock()
	}
}

// MaybeCompact compacts the session if it has reached MaxExchanges and
// reports whether it did.
func (s *Store) MaybeCompact(ctx context.Context, sessionID string) bool {
	sess := s.lookup(sessionID, false)
	if sess == nil {
		return false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.compactLocked(ctx, sessionID, sess)
}

func (s *Store) compactLocked(ctx context.Context, sessionID string, sess *session) bool {
	p := s.opts.Policy
	if len(sess.exchanges) < p.MaxExchanges {
		return false
	}

	cut := len(sess.exchanges) - p.KeepRecent
	old := sess.exchanges[:cut]
	tail := append([]core.Exchange(nil), sess.exchanges[cut:]...)

	summary, err := s.summarize(ctx, old)
	if err != nil {
		s.opts.Logger.Warn("Conversation summarization failed, keeping recent exchanges only",
			"session_id", sessionID, "dropped", len(old), "error", err.Error())
		sess.exchanges = tail
		return true
	}

	sess.exchanges = append([]core.Exchange{{
		User:      core.SummaryUser,
		Assistant: summary,
		Timestamp: s.opts.Now(),
	}}, tail...)
	s.opts.Logger.Debug("Conversation compacted", "session_id", sessionID, "summarized", len(old))
	return true
}

func (s *Store) summarize(ctx context.Context, old []core.Exchange) (string, error) {
	if s.opts.Summarizer == nil {
		return "", errors.New("no summarizer configured")
	}
	start := time.Now()
	text, err := model.Complete(ctx, s.opts.Summarizer, model.Request{
		Prompt:    summaryInstruction + render(old),
		MaxTokens: s.opts.Policy.SummaryMaxTokens,
	})
	logging.LogExternalCall(s.opts.Logger, "summarization", time.Since(start), err == nil, err)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty summary")
	}
	return text, nil
}

// Clear drops the session history. Clearing an unknown session is a no-op.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Stats reports size information for the session.
func (s *Store) Stats(sessionID string) Stats {
	sess := s.lookup(sessionID, false)
	if sess == nil {
		return Stats{}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	st := Stats{Exchanges: len(sess.exchanges)}
	for _, ex := range sess.exchanges {
		st.Chars += ex.Chars()
	}
	st.EstimatedTokens = st.Chars / 4
	return st
}

// History returns a copy of the session exchanges, oldest first.
func (s *Store) History(sessionID string) []core.Exchange {
	sess := s.lookup(sessionID, false)
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]core.Exchange(nil), sess.exchanges...)
}

// Sessions returns the number of live sessions.
func (s *Store) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close drops every session. Later appends fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = make(map[string]*session)
	return nil
}

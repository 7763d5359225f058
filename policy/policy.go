// Package policy holds the versioned keyword configuration shared by the
// guardrail filter, the sufficiency evaluator and the router: the topic
// deny-list, the freshness keyword set and the corpus domain keyword set.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// DefaultVersion identifies the built-in keyword sets.
const DefaultVersion = "2024.1"

// ErrInvalidPolicy is returned when a loaded policy fails validation.
var ErrInvalidPolicy = errors.New("invalid policy")

// Policy is the single configuration artifact for every lexical rule used
// during routing and filtering.
type Policy struct {
	Version           string   `yaml:"version"`
	DenyList          []string `yaml:"deny_list"`
	FreshnessKeywords []string `yaml:"freshness_keywords"`
	DomainKeywords    []string `yaml:"domain_keywords"`
	TopicRefusal      string   `yaml:"topic_refusal"`
	ModerationRefusal string   `yaml:"moderation_refusal"`
}

// Default returns the canonical policy for the Amazon shareholder-letter corpus.
func Default() *Policy {
	return &Policy{
		Version: DefaultVersion,
		DenyList: []string{
			"taiwan politics", "taiwanese politics", "taiwan election", "taiwan government",
			"dpp", "kmt", "taiwan independence", "taiwan unification", "cross-strait",
			"taiwan china", "taiwan president", "taiwan democracy", "taiwan party",
			"pan-blue", "pan-green", "taiwan political", "taiwan vote", "taiwan campaign",
		},
		FreshnessKeywords: []string{
			"weather", "today", "current", "now", "latest", "recent", "news",
			"stock price", "live", "temperature", "forecast", "today's",
			"what's happening", "breaking news", "current events",
		},
		DomainKeywords: []string{
			"amazon", "aws", "revenue", "profit", "financial", "shareholder",
			"earnings", "business", "company", "growth", "investment", "strategy",
			"annual", "letter", "ceo", "jassy", "prime", "retail",
			"operating income", "free cash flow",
		},
		TopicRefusal: "I appreciate your interest in current affairs! However, I'm designed to focus on " +
			"helpful, informative topics rather than political discussions. I'd be happy to help " +
			"you with questions about technology, business, weather, or other topics. " +
			"What else can I assist you with?",
		ModerationRefusal: "I understand you're looking for information, but I'm designed to have respectful, " +
			"helpful conversations. Could we explore something else I can assist you with today?",
	}
}

// Clone returns a deep copy of the policy.
func (p *Policy) Clone() *Policy {
	cp := *p
	cp.DenyList = append([]string(nil), p.DenyList...)
	cp.FreshnessKeywords = append([]string(nil), p.FreshnessKeywords...)
	cp.DomainKeywords = append([]string(nil), p.DomainKeywords...)
	return &cp
}

// Merge applies non-empty values from source into p.
func (p *Policy) Merge(source *Policy) {
	if source.Version != "" {
		p.Version = source.Version
	}
	if len(source.DenyList) > 0 {
		p.DenyList = normalize(source.DenyList)
	}
	if len(source.FreshnessKeywords) > 0 {
		p.FreshnessKeywords = normalize(source.FreshnessKeywords)
	}
	if len(source.DomainKeywords) > 0 {
		p.DomainKeywords = normalize(source.DomainKeywords)
	}
	if source.TopicRefusal != "" {
		p.TopicRefusal = source.TopicRefusal
	}
	if source.ModerationRefusal != "" {
		p.ModerationRefusal = source.ModerationRefusal
	}
}

// Validate checks that the policy can drive the filter and router.
func (p *Policy) Validate() error {
	if strings.TrimSpace(p.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidPolicy)
	}
	if p.TopicRefusal == "" || p.ModerationRefusal == "" {
		return fmt.Errorf("%w: refusal messages are required", ErrInvalidPolicy)
	}
	return nil
}

// Parse decodes a YAML policy document and merges it over Default. An empty
// document is rejected so a truncated file never silently resets the policy.
func Parse(data []byte) (*Policy, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidPolicy)
	}
	var loaded Policy
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	p := Default()
	p.Merge(&loaded)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads a YAML policy file and merges it over Default.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// ContainsAny reports whether the lower-cased text contains any of the
// phrases as a plain substring.
func ContainsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// MatchesAny reports whether the lower-cased text contains any keyword
// starting at a word boundary. Suffixes are allowed, so "stock price" fires on
// "stock prices" and "current" on "currently", while "now" does not fire on
// "know".
func MatchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && hasWordPrefix(lower, kw) {
			return true
		}
	}
	return false
}

func hasWordPrefix(text, kw string) bool {
	for start := 0; start <= len(text)-len(kw); {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		if i == 0 {
			return true
		}
		if r, _ := utf8.DecodeLastRuneInString(text[:i]); !isWordRune(r) {
			return true
		}
		start = i + 1
	}
	return false
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

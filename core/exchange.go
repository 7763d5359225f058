package core

import "time"

// SummaryUser is the sentinel user field of the synthetic exchange that
// replaces a compacted history prefix.
const SummaryUser = "[Previous conversation summary]"

// Exchange is one user query and the assistant answer it produced. Exchanges
// are immutable once appended to a session history.
type Exchange struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

// IsSummary reports whether the exchange is a compaction summary.
func (e Exchange) IsSummary() bool { return e.User == SummaryUser }

// Chars returns the combined length of the user and assistant text.
func (e Exchange) Chars() int { return len(e.User) + len(e.Assistant) }

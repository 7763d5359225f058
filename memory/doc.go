// Package memory keeps bounded per-session conversation histories.
//
// Each session is an append-only list of core.Exchange values created lazily
// on first write. When a history reaches MaxExchanges, the oldest exchanges
// are summarized by a completion model and replaced by a single synthetic
// exchange whose user field is core.SummaryUser; the KeepRecent newest
// exchanges are kept verbatim. If summarization fails, only the newest
// exchanges are kept and the failure is logged. Compaction never fails the
// caller and is never retried.
//
// Concurrency: a store-level RWMutex guards the session map; every session
// has its own mutex so operations on different sessions never block each
// other while append and compaction on one session are serialized.
package memory

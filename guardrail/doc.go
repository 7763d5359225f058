// Package guardrail screens incoming queries before any retrieval, search or
// composition work is done.
//
// A Filter runs two stages in order:
//  1. Policy topics: a case-insensitive substring match against the active
//     policy deny-list. No network call is made.
//  2. Moderation: the query is sent to a core.Moderator. A flagged verdict
//     blocks the query. A moderation error fails open: the query is allowed
//     and the failure is logged at Warn level. There is no retry.
//
// Check never touches session memory and always returns a Verdict.
package guardrail

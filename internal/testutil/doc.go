// Package testutil contains fakes and builders shared by package tests:
// scripted collaborators (retriever, web searcher, moderator) that count
// their calls, a logger that records entries and a fluent builder for
// session histories. Not intended for production usage.
package testutil

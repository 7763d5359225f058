// Package moderation contains helpers around core.Moderator implementations.
// Provider adapters live in sub-packages (moderation/openai); this package
// offers a TTL verdict cache so identical queries are not re-sent to the
// moderation service on every turn.
package moderation

// Package model defines the provider-agnostic abstraction for text
// completion inside ragmesh.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (model/openai, model/anthropic) implement Model so higher layers
// (composer, memory summarization) remain decoupled from vendor SDKs. The
// Complete and Stream helpers adapt the channel pair returned by Generate to
// a single string or a fragment stream.
package model

// Package model defines the provider‑agnostic abstractions for interacting
// with language models inside SessionMesh.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Report completion status (FinishReason) so callers can distinguish a
//     successful reply from a truncated or filtered one
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface in
// sub-packages so the dispatcher and summarizer remain decoupled from vendor
// SDKs.
package model

// Package core provides the foundational domain types and interfaces used by
// SessionMesh. It defines the core abstractions for:
//
//   - Sessions (one bounded conversation between one user and the bot)
//   - Events (inbound user messages arriving from the routing surface)
//   - Interactions (the persisted {input, response} pairs)
//   - Pluggable collaborators: delivery channels, response generation,
//     summarization and encrypted transcript storage
//
// The package intentionally keeps implementation concerns (persistence,
// backends, the conversation loop) out of scope, exposing small interfaces so
// that concrete transports and stores can be selected at wiring time.
package core

// Package engine implements the inbound routing layer of SessionMesh.
//
// The Engine receives every inbound event of the chat surface and decides,
// without blocking, what happens to it:
//
//	event ──► bot / command prefix? ──► ignored
//	      └─► user has an open session?
//	             ├─ other channel ─────────► ignored
//	             ├─ summon phrase ─────────► busy (no second session)
//	             └─ otherwise ─────────────► routed to the session inbox
//	      └─► summon phrase? ──► acquire registry slot ──► start loop goroutine
//
// # Concurrency
//
// Handle is safe for concurrent use. Session start is linearized by the
// session.Registry: of two concurrent summons for the same user exactly one
// starts a session. Each session runs on its own goroutine and owns its
// state; the engine only holds the cancel scope shared by all sessions.
//
// # Shutdown
//
// Shutdown stops accepting new sessions, cancels every running loop and
// waits for their teardown (notice, summary, release) to finish or for the
// caller's context to expire.
package engine

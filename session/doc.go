// Package session houses the Session Registry: the process-wide set of users
// that currently own an active conversation.
//
// The registry replaces three loosely coupled per-user maps (chat mode,
// channel binding, active set) with a single guarded map whose entries carry
// the whole binding. Acquisition is a single check-and-insert under one lock,
// so two near-simultaneous summons for the same user can never both succeed.
//
// Add alternative implementations (e.g. a distributed lease) in sub-packages
// without changing any calling code; the engine depends only on the methods
// below.
package session

package testutil

import (
	"github.com/hupe1980/sessionmesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("u1").Mode(core.ModeCode).Turn("q", "a").Build()
type SessionBuilder struct {
	userID     string
	channelRef string
	mode       core.Mode
	history    []core.Interaction
}

// NewSessionBuilder creates a builder for a normal-mode session of userID in
// "channel-1".
func NewSessionBuilder(userID string) *SessionBuilder {
	return &SessionBuilder{userID: userID, channelRef: "channel-1", mode: core.ModeNormal}
}

// Channel sets the bound channel (chainable).
func (b *SessionBuilder) Channel(ref string) *SessionBuilder { b.channelRef = ref; return b }

// Mode sets the session mode (chainable).
func (b *SessionBuilder) Mode(m core.Mode) *SessionBuilder { b.mode = m; return b }

// Turn appends one interaction to the history (chainable).
func (b *SessionBuilder) Turn(input, response string) *SessionBuilder {
	b.history = append(b.history, core.Interaction{Input: input, Response: response})
	return b
}

// Build returns a *core.Session with pre-populated history.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.userID, b.channelRef, b.mode)
	for _, in := range b.history {
		s.Append(in)
	}
	return s
}

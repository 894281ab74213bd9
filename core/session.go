package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode selects the response-generation variant of a session. It is fixed when
// the session is created and never changes afterwards.
type Mode string

const (
	// ModeNormal uses the default persona backend.
	ModeNormal Mode = "normal"
	// ModeCode uses the technical/coding persona backend.
	ModeCode Mode = "code"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeNormal || m == ModeCode }

// State is the lifecycle state of a session.
type State string

const (
	StateCreated       State = "created"
	StateActive        State = "active"
	StateAwaitingInput State = "awaiting_input"
	StateTerminating   State = "terminating"
	StateClosed        State = "closed"
)

// EndReason records which terminal trigger closed a session.
type EndReason string

const (
	// EndDismissed means the user sent a dismiss word.
	EndDismissed EndReason = "dismissed"
	// EndTimedOut means no qualifying utterance arrived within the idle window.
	EndTimedOut EndReason = "timed_out"
	// EndFailed means computing or delivering a response failed.
	EndFailed EndReason = "failed"
	// EndShutdown means the hosting process cancelled the session.
	EndShutdown EndReason = "shutdown"
)

// Interaction is one {input, response} pair of a conversation.
type Interaction struct {
	Input    string `json:"input"`
	Response string `json:"response"`
}

// Session is one bounded conversation between a user and the bot. It is owned
// by the conversation loop that created it; readers on other goroutines (logs,
// metrics, tests) only ever see copies.
//
// Contract:
//   - History is append-only and kept in arrival order
//   - Mode and ChannelRef are immutable after NewSession
//   - History returns a copy
type Session struct {
	ID         string
	UserID     string
	ChannelRef string
	Mode       Mode
	Created    time.Time

	mu      sync.RWMutex
	state   State
	history []Interaction
	updated time.Time
}

// NewSession creates a session bound to a user and a channel. The session ID
// is a fresh UUIDv7 and is never reused.
func NewSession(userID, channelRef string, mode Mode) *Session {
	now := time.Now()
	return &Session{
		ID:         NewSessionID(),
		UserID:     userID,
		ChannelRef: channelRef,
		Mode:       mode,
		Created:    now,
		state:      StateCreated,
		updated:    now,
	}
}

// NewSessionID generates a new opaque session identifier.
func NewSessionID() string { return uuid.Must(uuid.NewV7()).String() }

// Append adds an interaction to the end of the history.
func (s *Session) Append(in Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, in)
	s.updated = time.Now()
}

// History returns a copy of the full interaction history.
func (s *Session) History() []Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Interaction, len(s.history))
	copy(out, s.history)
	return out
}

// Tail returns a copy of the last n interactions (fewer if the history is
// shorter). n <= 0 yields an empty slice.
func (s *Session) Tail(n int) []Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TailOf(s.history, n)
}

// Len returns the number of interactions in the history.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState moves the session to st. Transitions out of StateClosed are
// rejected.
func (s *Session) SetState(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed && st != StateClosed {
		return fmt.Errorf("session %s is closed", s.ID)
	}
	s.state = st
	s.updated = time.Now()
	return nil
}

// Updated returns the time of the last mutation.
func (s *Session) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// TailOf returns a copy of the last n elements of history.
func TailOf(history []Interaction, n int) []Interaction {
	if n <= 0 {
		return []Interaction{}
	}
	if n > len(history) {
		n = len(history)
	}
	out := make([]Interaction, n)
	copy(out, history[len(history)-n:])
	return out
}

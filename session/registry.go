package session

import (
	"sort"
	"sync"

	"github.com/hupe1980/sessionmesh/core"
)

// DefaultInboxSize bounds how many qualifying utterances may queue for a
// session while it is computing a response.
const DefaultInboxSize = 16

// Binding is the registry entry for one active session: where the session
// lives and how to reach its conversation loop.
type Binding struct {
	SessionID  string
	ChannelRef string
	Mode       core.Mode

	mu     sync.Mutex // guards closed against concurrent Deliver
	closed bool
	inbox  chan core.Event
}

// NewBinding creates a binding with a bounded inbox.
func NewBinding(sessionID, channelRef string, mode core.Mode, inboxSize int) *Binding {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &Binding{
		SessionID:  sessionID,
		ChannelRef: channelRef,
		Mode:       mode,
		inbox:      make(chan core.Event, inboxSize),
	}
}

// Inbox returns the receive side consumed by the conversation loop.
func (b *Binding) Inbox() <-chan core.Event { return b.inbox }

// Deliver enqueues ev without blocking. It returns false when the inbox is
// full or closed.
func (b *Binding) Deliver(ev core.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.inbox <- ev:
		return true
	default:
		return false
	}
}

// Close stops the binding from accepting events and returns the events that
// were queued but never consumed. The inbox channel itself stays open.
func (b *Binding) Close() []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true

	var pending []core.Event
	for {
		select {
		case ev := <-b.inbox:
			pending = append(pending, ev)
		default:
			return pending
		}
	}
}

// Closed reports whether Close was called.
func (b *Binding) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Registry is a concurrency-safe set of active sessions keyed by user.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*Binding
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Binding)}
}

// TryAcquire marks userID as active with binding b. It returns false, and
// leaves the existing entry untouched, when the user already has a session.
func (r *Registry) TryAcquire(userID string, b *Binding) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.active[userID]; exists {
		return false
	}
	r.active[userID] = b
	return true
}

// Release removes userID from the registry. It is idempotent.
func (r *Registry) Release(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, userID)
}

// ReleaseIf removes userID only while it is still bound to sessionID, so a
// late release from a finished session can never evict a newer one.
func (r *Registry) ReleaseIf(userID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.active[userID]; ok && b.SessionID == sessionID {
		delete(r.active, userID)
	}
}

// CloseIf closes the inbox of userID while it is still bound to sessionID and
// returns the utterances left unread. The user stays active until released.
func (r *Registry) CloseIf(userID, sessionID string) []core.Event {
	r.mu.RLock()
	b, ok := r.active[userID]
	r.mu.RUnlock()
	if !ok || b.SessionID != sessionID {
		return nil
	}
	return b.Close()
}

// IsActive reports whether userID currently owns a session.
func (r *Registry) IsActive(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.active[userID]
	return ok
}

// Lookup returns the binding of userID.
func (r *Registry) Lookup(userID string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.active[userID]
	return b, ok
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Active returns the sorted user IDs of all active sessions.
func (r *Registry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.active))
	for u := range r.active {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

package transcript

import (
	"context"
	"sync"
)

// InMemoryBackend is a volatile Backend storing sealed records in process
// local maps. It is safe for concurrent access and best suited for tests or
// ephemeral deployments; records are lost on restart.
type InMemoryBackend struct {
	mu           sync.RWMutex
	interactions map[string]map[string][]SealedInteraction // userRef -> sessionID -> records
	summaries    map[string][]SealedSummary                // userRef -> summaries in insertion order
}

// NewInMemoryBackend creates an empty in-memory backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		interactions: make(map[string]map[string][]SealedInteraction),
		summaries:    make(map[string][]SealedSummary),
	}
}

// AppendInteraction implements Backend.
func (b *InMemoryBackend) AppendInteraction(_ context.Context, userRef, sessionID string, rec SealedInteraction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sessions, ok := b.interactions[userRef]
	if !ok {
		sessions = make(map[string][]SealedInteraction)
		b.interactions[userRef] = sessions
	}
	sessions[sessionID] = append(sessions[sessionID], SealedInteraction{
		Input:    cloneBytes(rec.Input),
		Response: cloneBytes(rec.Response),
	})
	return nil
}

// Interactions implements Backend.
func (b *InMemoryBackend) Interactions(_ context.Context, userRef, sessionID string) ([]SealedInteraction, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	recs := b.interactions[userRef][sessionID]
	out := make([]SealedInteraction, len(recs))
	copy(out, recs)
	return out, nil
}

// PutSummary implements Backend.
func (b *InMemoryBackend) PutSummary(_ context.Context, userRef, sessionID string, content []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summaries[userRef] = append(b.summaries[userRef], SealedSummary{SessionID: sessionID, Content: cloneBytes(content)})
	return nil
}

// LatestSummary implements Backend.
func (b *InMemoryBackend) LatestSummary(_ context.Context, userRef string) (SealedSummary, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	all := b.summaries[userRef]
	if len(all) == 0 {
		return SealedSummary{}, false, nil
	}
	return all[len(all)-1], true, nil
}

// Close implements Backend.
func (b *InMemoryBackend) Close() error { return nil }

func cloneBytes(p []byte) []byte { return append([]byte(nil), p...) }

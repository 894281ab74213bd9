package transcript

import "context"

// SealedInteraction is an interaction whose fields are already encrypted.
type SealedInteraction struct {
	Input    []byte
	Response []byte
}

// SealedSummary is an encrypted summary plus the session that produced it.
type SealedSummary struct {
	SessionID string
	Content   []byte
}

// Backend stores opaque sealed records keyed by an obscured user reference.
// Implementations must preserve insertion order within a session and must be
// safe for concurrent use.
type Backend interface {
	// AppendInteraction adds a record to the session group, creating the
	// group on first write.
	AppendInteraction(ctx context.Context, userRef, sessionID string, rec SealedInteraction) error
	// Interactions returns the session's records in insertion order (empty,
	// not an error, when the session has none).
	Interactions(ctx context.Context, userRef, sessionID string) ([]SealedInteraction, error)
	// PutSummary stores a summary produced by sessionID.
	PutSummary(ctx context.Context, userRef, sessionID string, content []byte) error
	// LatestSummary returns the most recently inserted summary for userRef.
	LatestSummary(ctx context.Context, userRef string) (SealedSummary, bool, error)
	// Close releases backend resources.
	Close() error
}

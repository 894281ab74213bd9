package core

import "context"

// Channel delivers outbound text to a destination on the routing surface.
// Send returns a platform message identifier (may be empty).
type Channel interface {
	Send(ctx context.Context, channelRef, text string) (string, error)
}

// MessageDeleter is implemented by channels that can retract a previously sent
// message. It is used to remove the cosmetic "processing" placeholder.
type MessageDeleter interface {
	Delete(ctx context.Context, channelRef, messageID string) error
}

// Responder produces the reply to a user utterance given the session mode and
// history. Implementations select the trailing context window themselves.
// Failures are reported as *GenerationError.
type Responder interface {
	Generate(ctx context.Context, mode Mode, utterance string, history []Interaction) (string, error)
}

// Summarizer condenses the tail of a session into a carry-over summary.
type Summarizer interface {
	Summarize(ctx context.Context, tail []Interaction) (string, error)
}

// TranscriptStore persists encrypted interactions and summaries. Every
// failure matches ErrStoreUnavailable.
type TranscriptStore interface {
	Append(ctx context.Context, userID, sessionID string, in Interaction) error
	LoadSession(ctx context.Context, userID, sessionID string) ([]Interaction, error)
	WriteSummary(ctx context.Context, userID, sessionID, summary string) error
	// ReadLatestSummary returns the most recently written summary of the user
	// across all sessions; ok is false when none exists.
	ReadLatestSummary(ctx context.Context, userID string) (summary string, ok bool, err error)
}

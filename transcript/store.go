package transcript

import (
	"context"
	"fmt"

	"github.com/hupe1980/sessionmesh/core"
)

// Store implements core.TranscriptStore on top of a Sealer and a Backend.
type Store struct {
	sealer  *Sealer
	backend Backend
}

// NewStore creates a Store. The Store takes ownership of backend (see Close).
func NewStore(sealer *Sealer, backend Backend) *Store {
	return &Store{sealer: sealer, backend: backend}
}

// Append seals and persists one interaction.
func (s *Store) Append(ctx context.Context, userID, sessionID string, in core.Interaction) error {
	input, err := s.sealer.Seal(userID, sessionID, KindInput, []byte(in.Input))
	if err != nil {
		return storeErr("append", err)
	}
	response, err := s.sealer.Seal(userID, sessionID, KindResponse, []byte(in.Response))
	if err != nil {
		return storeErr("append", err)
	}
	rec := SealedInteraction{Input: input, Response: response}
	if err := s.backend.AppendInteraction(ctx, s.sealer.Reference(userID), sessionID, rec); err != nil {
		return storeErr("append", err)
	}
	return nil
}

// LoadSession returns the decrypted interactions of a session in order.
func (s *Store) LoadSession(ctx context.Context, userID, sessionID string) ([]core.Interaction, error) {
	recs, err := s.backend.Interactions(ctx, s.sealer.Reference(userID), sessionID)
	if err != nil {
		return nil, storeErr("load session", err)
	}
	out := make([]core.Interaction, 0, len(recs))
	for i, rec := range recs {
		input, err := s.sealer.Open(userID, sessionID, KindInput, rec.Input)
		if err != nil {
			return nil, storeErr("load session", fmt.Errorf("record %d input: %w", i, err))
		}
		response, err := s.sealer.Open(userID, sessionID, KindResponse, rec.Response)
		if err != nil {
			return nil, storeErr("load session", fmt.Errorf("record %d response: %w", i, err))
		}
		out = append(out, core.Interaction{Input: string(input), Response: string(response)})
	}
	return out, nil
}

// WriteSummary seals and persists a session summary.
func (s *Store) WriteSummary(ctx context.Context, userID, sessionID, summary string) error {
	sealed, err := s.sealer.Seal(userID, sessionID, KindSummary, []byte(summary))
	if err != nil {
		return storeErr("write summary", err)
	}
	if err := s.backend.PutSummary(ctx, s.sealer.Reference(userID), sessionID, sealed); err != nil {
		return storeErr("write summary", err)
	}
	return nil
}

// ReadLatestSummary returns the user's most recently written summary.
func (s *Store) ReadLatestSummary(ctx context.Context, userID string) (string, bool, error) {
	rec, ok, err := s.backend.LatestSummary(ctx, s.sealer.Reference(userID))
	if err != nil {
		return "", false, storeErr("read summary", err)
	}
	if !ok {
		return "", false, nil
	}
	plaintext, err := s.sealer.Open(userID, rec.SessionID, KindSummary, rec.Content)
	if err != nil {
		return "", false, storeErr("read summary", err)
	}
	return string(plaintext), true, nil
}

// Close closes the underlying backend.
func (s *Store) Close() error { return s.backend.Close() }

func storeErr(op string, err error) error {
	return &core.StoreError{Op: op, Err: err}
}

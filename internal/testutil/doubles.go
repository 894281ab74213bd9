package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/transcript"
)

// ResponderCall records one Generate invocation.
type ResponderCall struct {
	Mode      core.Mode
	Utterance string
	History   []core.Interaction
}

// ScriptedResponder implements core.Responder with a caller supplied
// function. Without a function it echoes "re: <utterance>".
type ScriptedResponder struct {
	mu    sync.Mutex
	fn    func(mode core.Mode, utterance string) (string, error)
	calls []ResponderCall
}

// NewScriptedResponder creates a responder backed by fn (may be nil).
func NewScriptedResponder(fn func(mode core.Mode, utterance string) (string, error)) *ScriptedResponder {
	return &ScriptedResponder{fn: fn}
}

// Generate implements core.Responder.
func (r *ScriptedResponder) Generate(_ context.Context, mode core.Mode, utterance string, history []core.Interaction) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, ResponderCall{
		Mode:      mode,
		Utterance: utterance,
		History:   append([]core.Interaction{}, history...),
	})
	fn := r.fn
	r.mu.Unlock()
	if fn == nil {
		return "re: " + utterance, nil
	}
	return fn(mode, utterance)
}

// Calls returns the recorded invocations.
func (r *ScriptedResponder) Calls() []ResponderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ResponderCall(nil), r.calls...)
}

// SummarizerSpy implements core.Summarizer and records every tail it was
// given.
type SummarizerSpy struct {
	Result string
	Err    error

	mu    sync.Mutex
	tails [][]core.Interaction
}

// Summarize implements core.Summarizer.
func (s *SummarizerSpy) Summarize(_ context.Context, tail []core.Interaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tails = append(s.tails, append([]core.Interaction{}, tail...))
	if s.Err != nil {
		return "", s.Err
	}
	if len(tail) == 0 {
		return "", nil
	}
	return s.Result, nil
}

// Tails returns the recorded tails, one per call.
func (s *SummarizerSpy) Tails() [][]core.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]core.Interaction(nil), s.tails...)
}

// FlakyBackend wraps transcript.InMemoryBackend; while Down is set every
// operation fails.
type FlakyBackend struct {
	*transcript.InMemoryBackend
	Down atomic.Bool
}

// NewFlakyBackend creates a healthy FlakyBackend.
func NewFlakyBackend() *FlakyBackend {
	return &FlakyBackend{InMemoryBackend: transcript.NewInMemoryBackend()}
}

func (b *FlakyBackend) AppendInteraction(ctx context.Context, userRef, sessionID string, rec transcript.SealedInteraction) error {
	if b.Down.Load() {
		return errBackendDown
	}
	return b.InMemoryBackend.AppendInteraction(ctx, userRef, sessionID, rec)
}

func (b *FlakyBackend) Interactions(ctx context.Context, userRef, sessionID string) ([]transcript.SealedInteraction, error) {
	if b.Down.Load() {
		return nil, errBackendDown
	}
	return b.InMemoryBackend.Interactions(ctx, userRef, sessionID)
}

func (b *FlakyBackend) PutSummary(ctx context.Context, userRef, sessionID string, content []byte) error {
	if b.Down.Load() {
		return errBackendDown
	}
	return b.InMemoryBackend.PutSummary(ctx, userRef, sessionID, content)
}

func (b *FlakyBackend) LatestSummary(ctx context.Context, userRef string) (transcript.SealedSummary, bool, error) {
	if b.Down.Load() {
		return transcript.SealedSummary{}, false, errBackendDown
	}
	return b.InMemoryBackend.LatestSummary(ctx, userRef)
}

var errBackendDown = errors.New("backend down")

// NewStore returns a transcript.Store over backend with a fixed test secret.
func NewStore(backend transcript.Backend) *transcript.Store {
	sealer, err := transcript.NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		panic(err)
	}
	return transcript.NewStore(sealer, backend)
}

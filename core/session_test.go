package core

import (
	"sync"
	"testing"
)

func TestSession_NewSessionDefaults(t *testing.T) {
	s := NewSession("u1", "c1", ModeCode)
	if s.ID == "" || s.UserID != "u1" || s.ChannelRef != "c1" || s.Mode != ModeCode {
		t.Fatalf("NewSession did not initialize fields correctly: %+v", s)
	}
	if s.State() != StateCreated {
		t.Fatalf("expected created state, got %s", s.State())
	}
	if other := NewSession("u1", "c1", ModeCode); other.ID == s.ID {
		t.Fatal("session ids must not be reused")
	}
}

func TestSession_AppendAndHistoryCopy(t *testing.T) {
	s := NewSession("u1", "c1", ModeNormal)
	s.Append(Interaction{Input: "a", Response: "1"})
	s.Append(Interaction{Input: "b", Response: "2"})

	h := s.History()
	if len(h) != 2 || h[0].Input != "a" || h[1].Input != "b" {
		t.Fatalf("unexpected history: %+v", h)
	}
	h[0].Input = "changed"
	if s.History()[0].Input != "a" {
		t.Error("history slice should be copied on read")
	}
}

func TestSession_Tail(t *testing.T) {
	s := NewSession("u1", "c1", ModeNormal)
	for _, in := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		s.Append(Interaction{Input: in})
	}
	tail := s.Tail(5)
	if len(tail) != 5 || tail[0].Input != "3" || tail[4].Input != "7" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
	if got := s.Tail(20); len(got) != 7 {
		t.Fatalf("expected full history when n exceeds length, got %d", len(got))
	}
	if got := s.Tail(0); len(got) != 0 {
		t.Fatalf("expected empty tail, got %d", len(got))
	}
}

func TestSession_ClosedIsTerminal(t *testing.T) {
	s := NewSession("u1", "c1", ModeNormal)
	if err := s.SetState(StateAwaitingInput); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetState(StateClosed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetState(StateActive); err == nil {
		t.Fatal("expected error leaving closed state")
	}
}

func TestSession_ConcurrentReads(t *testing.T) {
	s := NewSession("u1", "c1", ModeNormal)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); s.Append(Interaction{Input: "x"}) }()
		go func() { defer wg.Done(); _ = s.Tail(4) }()
	}
	wg.Wait()
	if s.Len() != 20 {
		t.Fatalf("expected 20 interactions, got %d", s.Len())
	}
}

func TestMode_Valid(t *testing.T) {
	if !ModeNormal.Valid() || !ModeCode.Valid() || Mode("other").Valid() {
		t.Fatal("mode validation mismatch")
	}
}

package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestEvent_NewEvent(t *testing.T) {
	e := NewEvent("u1", "c1", "hey abby")
	if e.UserID != "u1" || e.ChannelRef != "c1" || e.Text != "hey abby" || e.IsBot || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}
}

func TestErrors_StoreErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("append: %w", &StoreError{Op: "append", Err: errors.New("disk full")})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatal("expected StoreError to match ErrStoreUnavailable")
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "append" {
		t.Fatalf("expected StoreError via errors.As, got %v", err)
	}
}

func TestErrors_GenerationError(t *testing.T) {
	cause := errors.New("boom")
	err := &GenerationError{Mode: ModeCode, Backend: "mock", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("GenerationError should unwrap to its cause")
	}
	finish := &GenerationError{Mode: ModeNormal, Backend: "mock", FinishReason: "length"}
	if finish.Error() == "" || errors.Unwrap(finish) != nil {
		t.Fatalf("unexpected finish-reason error: %v", finish)
	}
}

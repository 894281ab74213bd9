package core

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable is matched (via errors.Is) by every transcript store
// failure, including encryption and decryption failures.
var ErrStoreUnavailable = errors.New("transcript store unavailable")

// GenerationError reports a failed response backend call or a completion that
// finished with a non-success status.
type GenerationError struct {
	Mode         Mode
	Backend      string
	FinishReason string
	Err          error
}

func (e *GenerationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("generation failed (%s/%s): %v", e.Mode, e.Backend, e.Err)
	case e.FinishReason != "":
		return fmt.Sprintf("generation failed (%s/%s): finish reason %q", e.Mode, e.Backend, e.FinishReason)
	default:
		return fmt.Sprintf("generation failed (%s/%s)", e.Mode, e.Backend)
	}
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StoreError wraps a persistence or crypto failure of a transcript operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes every StoreError match ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// SummarizationError reports that a session summary could not be produced.
// It is never fatal to session teardown.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

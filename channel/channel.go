// Package channel contains outbound delivery helpers shared by every
// transport: splitting long replies to the platform's single-message limit
// and sending the pieces in order.
package channel

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/hupe1980/sessionmesh/core"
)

// DefaultMaxMessageLength is the platform single-message limit.
const DefaultMaxMessageLength = 2000

// Split cuts text into chunks of at most limit-1 runes. The one-rune margin
// keeps every chunk strictly below the platform limit. Chunks are exact
// substrings of text, in order. Empty text yields no chunks.
func Split(text string, limit int) []string {
	if text == "" {
		return nil
	}
	size := limit - 1
	if size < 1 {
		size = 1
	}
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

// Deliver sends text to channelRef, splitting it with Split. It stops at the
// first failed send.
func Deliver(ctx context.Context, ch core.Channel, channelRef, text string, limit int) error {
	for i, chunk := range Split(text, limit) {
		if _, err := ch.Send(ctx, channelRef, chunk); err != nil {
			return fmt.Errorf("send chunk %d: %w", i, err)
		}
	}
	return nil
}

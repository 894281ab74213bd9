package testutil

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// SentMessage is one message recorded by RecordingChannel.
type SentMessage struct {
	ID         string
	ChannelRef string
	Text       string
}

// RecordingChannel implements core.Channel and core.MessageDeleter and keeps
// everything it was asked to do.
type RecordingChannel struct {
	mu      sync.Mutex
	sent    []SentMessage
	deleted []string
	failOn  func(text string) bool
	notify  chan struct{}
}

// NewRecordingChannel creates an empty RecordingChannel.
func NewRecordingChannel() *RecordingChannel {
	return &RecordingChannel{notify: make(chan struct{}, 1)}
}

// FailWhen makes Send fail for every text that fn accepts.
func (c *RecordingChannel) FailWhen(fn func(text string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failOn = fn
}

// Send implements core.Channel.
func (c *RecordingChannel) Send(_ context.Context, channelRef, text string) (string, error) {
	c.mu.Lock()
	if c.failOn != nil && c.failOn(text) {
		c.mu.Unlock()
		return "", errors.New("send failed")
	}
	id := "msg-" + strconv.Itoa(len(c.sent)+1)
	c.sent = append(c.sent, SentMessage{ID: id, ChannelRef: channelRef, Text: text})
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return id, nil
}

// Delete implements core.MessageDeleter.
func (c *RecordingChannel) Delete(_ context.Context, _, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, messageID)
	return nil
}

// Sent returns a copy of all sent messages.
func (c *RecordingChannel) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentMessage(nil), c.sent...)
}

// Texts returns the text of every sent message in order.
func (c *RecordingChannel) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.Text
	}
	return out
}

// Deleted returns the ids passed to Delete.
func (c *RecordingChannel) Deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

// WaitFor blocks until at least n messages were sent or timeout elapses and
// reports whether the count was reached.
func (c *RecordingChannel) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		c.mu.Lock()
		got := len(c.sent)
		c.mu.Unlock()
		if got >= n {
			return true
		}
		select {
		case <-c.notify:
		case <-deadline.C:
			return false
		}
	}
}

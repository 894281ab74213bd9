package testutil

import (
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

// EventBuilder provides a fluent helper for constructing inbound events.
// Example:
//
//	ev := NewEventBuilder().User("u1").Channel("general").Text("hey abby").Build()
//
// Chain only the parts you need; defaults are user "user-1" in channel
// "channel-1".
type EventBuilder struct {
	userID     string
	channelRef string
	text       string
	messageID  string
	bot        bool
	at         time.Time
}

// NewEventBuilder creates a builder with default user and channel.
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{userID: "user-1", channelRef: "channel-1"}
}

// User sets the author (chainable).
func (b *EventBuilder) User(id string) *EventBuilder { b.userID = id; return b }

// Channel sets the channel reference (chainable).
func (b *EventBuilder) Channel(ref string) *EventBuilder { b.channelRef = ref; return b }

// Text sets the message text (chainable).
func (b *EventBuilder) Text(t string) *EventBuilder { b.text = t; return b }

// MessageID sets the platform message id (chainable).
func (b *EventBuilder) MessageID(id string) *EventBuilder { b.messageID = id; return b }

// Bot marks the event as authored by a bot (chainable).
func (b *EventBuilder) Bot() *EventBuilder { b.bot = true; return b }

// At overrides the event timestamp (chainable).
func (b *EventBuilder) At(t time.Time) *EventBuilder { b.at = t; return b }

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.userID, b.channelRef, b.text)
	ev.IsBot = b.bot
	if b.messageID != "" {
		ev.MessageID = b.messageID
	}
	if !b.at.IsZero() {
		ev.Timestamp = b.at
	}
	return ev
}

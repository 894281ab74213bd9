package core

import "time"

// Event is an inbound user message as delivered by the message-routing
// surface. It should be treated as immutable once constructed.
type Event struct {
	UserID     string    `json:"user_id"`
	Text       string    `json:"text"`
	ChannelRef string    `json:"channel_ref"`
	IsBot      bool      `json:"is_bot"`
	MessageID  string    `json:"message_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent creates a human-authored event stamped with the current UTC time.
func NewEvent(userID, channelRef, text string) Event {
	return Event{
		UserID:     userID,
		Text:       text,
		ChannelRef: channelRef,
		Timestamp:  time.Now().UTC(),
	}
}

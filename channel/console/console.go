// Package console implements a line-oriented transport over an io.Reader and
// io.Writer. It is used by the CLI to talk to the bot from a terminal: every
// input line becomes an inbound event and every outbound message is printed.
//
// Input lines have the form "user> text"; lines without a user prefix are
// attributed to the default user. A "bot:" user prefix marks the line as
// bot-authored so that filtering can be exercised by hand.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/sessionmesh/core"
)

// Channel prints outbound messages to a writer.
type Channel struct {
	mu     sync.Mutex
	w      io.Writer
	nextID int
}

// NewChannel creates a console channel writing to w.
func NewChannel(w io.Writer) *Channel {
	return &Channel{w: w}
}

// Send implements core.Channel.
func (c *Channel) Send(_ context.Context, channelRef, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	if _, err := fmt.Fprintf(c.w, "[%s] %s\n", channelRef, text); err != nil {
		return "", err
	}
	return strconv.Itoa(c.nextID), nil
}

// Delete implements core.MessageDeleter. A terminal cannot retract output,
// so deletion is acknowledged without effect.
func (c *Channel) Delete(_ context.Context, _, messageID string) error {
	if messageID == "" {
		return fmt.Errorf("empty message id")
	}
	return nil
}

// Reader turns input lines into inbound events.
type Reader struct {
	DefaultUser string
	ChannelRef  string
}

// Parse converts one input line into an event. ok is false for blank lines.
func (r Reader) Parse(line string) (core.Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return core.Event{}, false
	}
	user, text := r.DefaultUser, line
	if i := strings.Index(line, ">"); i > 0 && !strings.ContainsAny(line[:i], " \t") {
		user, text = line[:i], strings.TrimSpace(line[i+1:])
	}
	ev := core.NewEvent(user, r.ChannelRef, text)
	if strings.HasPrefix(user, "bot:") {
		ev.UserID = strings.TrimPrefix(user, "bot:")
		ev.IsBot = true
	}
	return ev, true
}

// Scan reads lines from in until EOF or ctx is cancelled, passing each parsed
// event to handle.
func (r Reader) Scan(ctx context.Context, in io.Reader, handle func(core.Event)) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ev, ok := r.Parse(scanner.Text()); ok {
			handle(ev)
		}
	}
	return scanner.Err()
}

package conversation

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hupe1980/sessionmesh/channel"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/metrics"
	"github.com/hupe1980/sessionmesh/summarize"
	"github.com/hupe1980/sessionmesh/vocab"
)

const (
	DefaultIdleTimeout     = 60 * time.Second
	DefaultTeardownTimeout = 30 * time.Second
	DefaultCodeTag         = "[code]"
	DefaultCommandPrefix   = "!"
)

// SummarySeedInput is the input of the synthetic interaction that carries the
// previous session's summary into a new session's history.
const SummarySeedInput = "Summary of our previous conversation"

// Releaser frees the registry slot of a finished session. CloseIf is called
// as soon as the session stops reading its inbox and returns what was left.
type Releaser interface {
	CloseIf(userID, sessionID string) []core.Event
	ReleaseIf(userID, sessionID string)
}

// Messages are the fixed bot messages. They may use the template fields
// {{.user}} and {{.mode}}.
type Messages struct {
	Greetings []string
	Farewell  string
	Timeout   string
	Failure   string
	// Processing is an optional placeholder shown while the first answer of
	// a summon is generated.
	Processing string
}

// DefaultMessages returns the built-in bot messages.
func DefaultMessages() Messages {
	return Messages{
		Greetings: []string{"Hey! What's on your mind?"},
		Farewell:  "Bye! Talk to you later.",
		Timeout:   "I haven't heard from you in a while, so I'm heading out.",
		Failure:   "Sorry, something went wrong on my side.",
	}
}

// Options configures a Loop. Responder, Summarizer, Store, Channel and
// Vocabulary are required.
type Options struct {
	Responder  core.Responder
	Summarizer core.Summarizer
	Store      core.TranscriptStore
	Channel    core.Channel
	Vocabulary *vocab.Vocabulary
	Releaser   Releaser
	Logger     logging.Logger
	Metrics    *metrics.Recorder
	Messages   Messages

	IdleTimeout      time.Duration
	TeardownTimeout  time.Duration
	MaxMessageLength int
	CodeTag          string
	CommandPrefix    string
	// SummaryTail is the number of trailing interactions summarized at
	// teardown.
	SummaryTail int
}

// Loop drives conversation sessions.
type Loop struct {
	opts Options
}

// New creates a Loop.
func New(optFns ...func(o *Options)) (*Loop, error) {
	opts := Options{
		Logger:           logging.NoOpLogger{},
		Messages:         DefaultMessages(),
		IdleTimeout:      DefaultIdleTimeout,
		TeardownTimeout:  DefaultTeardownTimeout,
		MaxMessageLength: channel.DefaultMaxMessageLength,
		CodeTag:          DefaultCodeTag,
		CommandPrefix:    DefaultCommandPrefix,
		SummaryTail:      summarize.DefaultTail,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	switch {
	case opts.Responder == nil:
		return nil, errors.New("conversation: responder is required")
	case opts.Summarizer == nil:
		return nil, errors.New("conversation: summarizer is required")
	case opts.Store == nil:
		return nil, errors.New("conversation: transcript store is required")
	case opts.Channel == nil:
		return nil, errors.New("conversation: channel is required")
	case opts.Vocabulary == nil:
		return nil, errors.New("conversation: vocabulary is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = DefaultTeardownTimeout
	}
	if opts.MaxMessageLength < 2 {
		opts.MaxMessageLength = channel.DefaultMaxMessageLength
	}
	if opts.SummaryTail <= 0 {
		opts.SummaryTail = summarize.DefaultTail
	}
	return &Loop{opts: opts}, nil
}

// Run serves sess until it ends and returns why it ended. first is the text
// that followed the summon phrase; when empty the session opens with a
// greeting. inbox carries the session's inbound events in arrival order.
//
// Run always tears the session down: terminal notice, one summarization,
// summary persistence, registry release, closed state.
func (l *Loop) Run(ctx context.Context, sess *core.Session, first string, inbox <-chan core.Event) (reason core.EndReason) {
	log := logging.With(l.opts.Logger,
		"user_id", sess.UserID,
		"session_id", sess.ID,
		"mode", string(sess.Mode),
	)

	defer func() {
		if l.opts.Releaser != nil {
			l.opts.Releaser.ReleaseIf(sess.UserID, sess.ID)
		}
		_ = sess.SetState(core.StateClosed)
		l.opts.Metrics.SessionEnded(reason)
		log.Info("session closed", "reason", string(reason), "turns", sess.Len())
	}()

	_ = sess.SetState(core.StateActive)
	l.opts.Metrics.SessionStarted(sess.Mode)
	log.Info("session started", "channel", sess.ChannelRef)

	l.seed(ctx, sess, log)

	reason = l.serve(ctx, sess, first, inbox, log)
	l.stopServing(sess, log)
	l.teardown(ctx, sess, reason, log)
	return reason
}

func (l *Loop) serve(ctx context.Context, sess *core.Session, first string, inbox <-chan core.Event, log logging.Logger) core.EndReason {
	if first = strings.TrimSpace(first); first != "" {
		if reason, done := l.turn(ctx, sess, first, true, log); done {
			return reason
		}
	} else if err := l.send(ctx, sess, l.greeting(), log); err != nil {
		if ctx.Err() != nil {
			return core.EndShutdown
		}
		log.Error("greeting not delivered", "error", err)
		return core.EndFailed
	}

	timer := time.NewTimer(l.opts.IdleTimeout)
	defer timer.Stop()

	for {
		_ = sess.SetState(core.StateAwaitingInput)

		select {
		case <-ctx.Done():
			return core.EndShutdown
		case <-timer.C:
			return core.EndTimedOut
		case ev, ok := <-inbox:
			if !ok {
				return core.EndShutdown
			}
			if !l.qualifies(sess, ev) {
				log.Debug("event dropped", "from", ev.UserID, "channel", ev.ChannelRef)
				continue
			}

			_ = sess.SetState(core.StateActive)
			if reason, done := l.turn(ctx, sess, strings.TrimSpace(ev.Text), false, log); done {
				return reason
			}
			timer.Reset(l.opts.IdleTimeout)
		}
	}
}

func (l *Loop) stopServing(sess *core.Session, log logging.Logger) {
	if l.opts.Releaser == nil {
		return
	}
	for _, ev := range l.opts.Releaser.CloseIf(sess.UserID, sess.ID) {
		if l.qualifies(sess, ev) {
			log.Warn("utterance dropped, session ending", "message_id", ev.MessageID)
		}
	}
}

// turn handles one qualifying utterance. done reports that the session must
// end with reason.
func (l *Loop) turn(ctx context.Context, sess *core.Session, text string, first bool, log logging.Logger) (reason core.EndReason, done bool) {
	if l.opts.Vocabulary.IsDismiss(text) {
		return core.EndDismissed, true
	}

	placeholder := ""
	if first {
		placeholder = l.showProcessing(ctx, sess, log)
	}

	reply, err := l.opts.Responder.Generate(ctx, sess.Mode, text, sess.History())
	l.hideProcessing(ctx, sess, placeholder, log)
	if err != nil {
		if ctx.Err() != nil {
			return core.EndShutdown, true
		}
		log.Error("generation failed", "error", err)
		return core.EndFailed, true
	}

	out := reply
	if sess.Mode == core.ModeCode && l.opts.CodeTag != "" {
		out = l.opts.CodeTag + "\n" + reply
	}
	if err := channel.Deliver(ctx, l.opts.Channel, sess.ChannelRef, out, l.opts.MaxMessageLength); err != nil {
		if ctx.Err() != nil {
			return core.EndShutdown, true
		}
		log.Error("response not delivered", "error", err)
		return core.EndFailed, true
	}

	in := core.Interaction{Input: text, Response: reply}
	sess.Append(in)
	l.opts.Metrics.Turn(sess.Mode)

	if err := l.opts.Store.Append(ctx, sess.UserID, sess.ID, in); err != nil {
		l.opts.Metrics.PersistenceFailure("append")
		log.Warn("transcript not persisted", "op", "append", "error", err)
	}
	return "", false
}

func (l *Loop) teardown(ctx context.Context, sess *core.Session, reason core.EndReason, log logging.Logger) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.TeardownTimeout)
	defer cancel()

	var notice string
	switch reason {
	case core.EndDismissed:
		notice = l.opts.Messages.Farewell
	case core.EndTimedOut:
		notice = l.opts.Messages.Timeout
	case core.EndFailed:
		notice = l.opts.Messages.Failure
	}
	if notice != "" {
		if err := l.send(tctx, sess, notice, log); err != nil {
			log.Warn("terminal notice not delivered", "reason", string(reason), "error", err)
		}
	}

	_ = sess.SetState(core.StateTerminating)

	summary, err := l.opts.Summarizer.Summarize(tctx, sess.Tail(l.opts.SummaryTail))
	if err != nil {
		log.Warn("summary skipped", "error", err)
		return
	}
	if summary == "" {
		return
	}
	if err := l.opts.Store.WriteSummary(tctx, sess.UserID, sess.ID, summary); err != nil {
		l.opts.Metrics.PersistenceFailure("summary")
		log.Warn("transcript not persisted", "op", "summary", "error", err)
	}
}

// seed carries the user's latest summary into the new session's history. It
// is never written back as an interaction.
func (l *Loop) seed(ctx context.Context, sess *core.Session, log logging.Logger) {
	summary, ok, err := l.opts.Store.ReadLatestSummary(ctx, sess.UserID)
	if err != nil {
		l.opts.Metrics.PersistenceFailure("read_summary")
		log.Warn("previous summary not loaded", "error", err)
		return
	}
	if ok && summary != "" {
		sess.Append(core.Interaction{Input: SummarySeedInput, Response: summary})
	}
}

func (l *Loop) qualifies(sess *core.Session, ev core.Event) bool {
	return !ev.IsBot &&
		ev.UserID == sess.UserID &&
		ev.ChannelRef == sess.ChannelRef &&
		strings.TrimSpace(ev.Text) != "" &&
		!vocab.IsCommand(ev.Text, l.opts.CommandPrefix)
}

func (l *Loop) showProcessing(ctx context.Context, sess *core.Session, log logging.Logger) string {
	if l.opts.Messages.Processing == "" {
		return ""
	}
	if _, ok := l.opts.Channel.(core.MessageDeleter); !ok {
		return ""
	}
	id, err := l.opts.Channel.Send(ctx, sess.ChannelRef, l.render(sess, l.opts.Messages.Processing, log))
	if err != nil {
		log.Debug("processing placeholder not sent", "error", err)
		return ""
	}
	return id
}

func (l *Loop) hideProcessing(ctx context.Context, sess *core.Session, id string, log logging.Logger) {
	if id == "" {
		return
	}
	if err := l.opts.Channel.(core.MessageDeleter).Delete(ctx, sess.ChannelRef, id); err != nil {
		log.Debug("processing placeholder not deleted", "error", err)
	}
}

func (l *Loop) greeting() string {
	g := l.opts.Messages.Greetings
	if len(g) == 0 {
		return DefaultMessages().Greetings[0]
	}
	return g[rand.IntN(len(g))]
}

func (l *Loop) send(ctx context.Context, sess *core.Session, msg string, log logging.Logger) error {
	return channel.Deliver(ctx, l.opts.Channel, sess.ChannelRef, l.render(sess, msg, log), l.opts.MaxMessageLength)
}

func (l *Loop) render(sess *core.Session, msg string, log logging.Logger) string {
	out, err := util.RenderTemplate(msg, map[string]any{
		util.FieldUser: sess.UserID,
		util.FieldMode: string(sess.Mode),
	})
	if err != nil {
		log.Warn("message template not rendered", "error", err)
		return msg
	}
	return out
}

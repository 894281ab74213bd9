package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/session"
	"github.com/hupe1980/sessionmesh/vocab"
)

// Runner runs one session to completion. conversation.Loop implements it.
type Runner interface {
	Run(ctx context.Context, sess *core.Session, first string, inbox <-chan core.Event) core.EndReason
}

// Outcome tells the caller what Handle did with an event.
type Outcome int

const (
	// OutcomeIgnored means the event was not relevant to any session.
	OutcomeIgnored Outcome = iota
	// OutcomeRouted means the event was queued for the user's open session.
	OutcomeRouted
	// OutcomeStarted means the event summoned a new session.
	OutcomeStarted
	// OutcomeBusy means the event could not be served: a bare summon while
	// a session is open, a full or closed inbox, or the session limit.
	OutcomeBusy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeRouted:
		return "routed"
	case OutcomeStarted:
		return "started"
	case OutcomeBusy:
		return "busy"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Config defines tuning parameters for the Engine.
type Config struct {
	// MaxConcurrentSessions limits the number of open sessions across all
	// users. Zero means unlimited.
	MaxConcurrentSessions int

	// InboxSize bounds how many utterances may queue per session.
	InboxSize int

	// CommandPrefix marks messages meant for other bot commands.
	CommandPrefix string
}

// DefaultConfig provides the default engine configuration.
var DefaultConfig = Config{
	MaxConcurrentSessions: 0,
	InboxSize:             session.DefaultInboxSize,
	CommandPrefix:         "!",
}

// Options configures an Engine.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Registry tracks open sessions. It must be the same registry the
	// Runner releases into. Defaults to a fresh registry.
	Registry *session.Registry

	// Logger defaults to a NoOpLogger.
	Logger logging.Logger
}

// Engine routes inbound events to conversation sessions.
type Engine struct {
	runner     Runner
	vocabulary *vocab.Vocabulary
	registry   *session.Registry
	config     Config
	logger     logging.Logger

	// Session scope; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

// New creates an Engine that starts sessions with runner and recognises
// summon phrases with vocabulary.
//
// Example:
//
//	eng := engine.New(loop, vocabulary, func(o *engine.Options) {
//	    o.Registry = registry
//	    o.Logger = logger
//	})
//	defer eng.Shutdown(context.Background())
func New(runner Runner, vocabulary *vocab.Vocabulary, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = session.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		runner:     runner,
		vocabulary: vocabulary,
		registry:   opts.Registry,
		config:     opts.Config,
		logger:     opts.Logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Handle processes one inbound event. It never blocks on a session.
func (e *Engine) Handle(ctx context.Context, ev core.Event) Outcome {
	if ctx.Err() != nil || ev.IsBot || vocab.IsCommand(ev.Text, e.config.CommandPrefix) {
		return OutcomeIgnored
	}

	if b, ok := e.registry.Lookup(ev.UserID); ok {
		return e.route(b, ev)
	}

	summon, ok := e.vocabulary.MatchSummon(ev.Text)
	if !ok {
		return OutcomeIgnored
	}
	return e.start(ev, summon)
}

func (e *Engine) route(b *session.Binding, ev core.Event) Outcome {
	if b.ChannelRef != ev.ChannelRef {
		return OutcomeIgnored
	}
	// A bare summon phrase is a no-op; one carrying more text is a turn.
	if summon, ok := e.vocabulary.MatchSummon(ev.Text); ok && summon.Remainder == "" {
		e.logger.Debug("summon ignored, session already open", "user_id", ev.UserID, "session_id", b.SessionID)
		return OutcomeBusy
	}
	if !b.Deliver(ev) {
		if b.Closed() {
			e.logger.Warn("session ending, utterance dropped", "user_id", ev.UserID, "session_id", b.SessionID)
		} else {
			e.logger.Warn("session inbox full, utterance dropped", "user_id", ev.UserID, "session_id", b.SessionID)
		}
		return OutcomeBusy
	}
	return OutcomeRouted
}

func (e *Engine) start(ev core.Event, summon vocab.Summon) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return OutcomeIgnored
	}
	if limit := e.config.MaxConcurrentSessions; limit > 0 && e.registry.Len() >= limit {
		e.logger.Warn("session limit reached", "user_id", ev.UserID, "limit", limit)
		return OutcomeBusy
	}

	sess := core.NewSession(ev.UserID, ev.ChannelRef, summon.Mode)
	binding := session.NewBinding(sess.ID, sess.ChannelRef, sess.Mode, e.config.InboxSize)
	if !e.registry.TryAcquire(ev.UserID, binding) {
		return OutcomeBusy
	}

	e.wg.Add(1)
	go e.run(sess, summon.Remainder, binding)
	return OutcomeStarted
}

func (e *Engine) run(sess *core.Session, first string, binding *session.Binding) {
	defer e.wg.Done()
	defer e.registry.ReleaseIf(sess.UserID, sess.ID)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("session panicked", "user_id", sess.UserID, "session_id", sess.ID, "panic", fmt.Sprint(r))
		}
	}()

	reason := e.runner.Run(e.ctx, sess, first, binding.Inbox())
	e.logger.Debug("session finished", "user_id", sess.UserID, "session_id", sess.ID, "reason", string(reason))
}

// IsActive reports whether userID has an open session.
func (e *Engine) IsActive(userID string) bool { return e.registry.IsActive(userID) }

// ActiveSessions returns the users with an open session, sorted.
func (e *Engine) ActiveSessions() []string { return e.registry.Active() }

// Wait blocks until every started session has finished.
func (e *Engine) Wait() { e.wg.Wait() }

// Shutdown stops accepting sessions, cancels the running ones and waits for
// their teardown or for ctx to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown interrupted: %w", ctx.Err())
	}
}

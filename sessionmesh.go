// Package sessionmesh provides the top-level API for running summonable,
// per-user conversation sessions on a chat surface.
//
// A SessionMesh wires the inbound router, the per-session conversation loop,
// the response dispatcher, the summarizer and the encrypted transcript store.
// Feed it every inbound event with Handle; it starts, serves and tears down
// sessions on its own goroutines.
//
//	mesh, err := sessionmesh.New(func(o *sessionmesh.Options) {
//	    o.Responder = dispatcher
//	    o.Summarizer = summarizer
//	    o.Channel = ch
//	})
//	if err != nil { ... }
//	defer mesh.Shutdown(context.Background())
//	mesh.Handle(ctx, core.NewEvent("u1", "general", "hey abby"))
package sessionmesh

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/sessionmesh/config"
	"github.com/hupe1980/sessionmesh/conversation"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/dispatch"
	"github.com/hupe1980/sessionmesh/engine"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/metrics"
	"github.com/hupe1980/sessionmesh/model"
	"github.com/hupe1980/sessionmesh/model/anthropic"
	"github.com/hupe1980/sessionmesh/model/openai"
	"github.com/hupe1980/sessionmesh/session"
	"github.com/hupe1980/sessionmesh/summarize"
	"github.com/hupe1980/sessionmesh/transcript"
	"github.com/hupe1980/sessionmesh/transcript/sqlite"
	"github.com/hupe1980/sessionmesh/vocab"
)

// Options configures a SessionMesh. Responder, Summarizer and Channel are
// required; everything else has a default.
type Options struct {
	// EngineConfig tunes inbound routing (session limit, inbox size,
	// command prefix).
	EngineConfig engine.Config

	Responder  core.Responder
	Summarizer core.Summarizer
	Channel    core.Channel

	// Store persists transcripts. Defaults to an in-memory store sealed with
	// a random per-process secret.
	Store core.TranscriptStore

	// Vocabulary defaults to the phrases of config.Default.
	Vocabulary *vocab.Vocabulary
	Messages   conversation.Messages

	IdleTimeout      time.Duration
	TeardownTimeout  time.Duration
	MaxMessageLength int
	CodeTag          string

	Logger  logging.Logger
	Metrics *metrics.Recorder

	// Closers run after Shutdown has drained every session.
	Closers []func() error
}

// SessionMesh is the entry point for inbound events.
type SessionMesh struct {
	opts     Options
	registry *session.Registry
	engine   *engine.Engine
}

// New creates a SessionMesh.
func New(optFns ...func(o *Options)) (*SessionMesh, error) {
	defaults := config.Default()
	opts := Options{
		EngineConfig:     engine.DefaultConfig,
		Messages:         messagesFromConfig(defaults.Messages),
		IdleTimeout:      defaults.Session.IdleTimeout,
		TeardownTimeout:  conversation.DefaultTeardownTimeout,
		MaxMessageLength: defaults.Session.MaxMessageLength,
		CodeTag:          defaults.Session.CodeTag,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Vocabulary == nil {
		v := defaults.Vocabulary
		opts.Vocabulary = vocab.New(v.Summon.Normal, v.Summon.Code, v.Dismiss)
	}
	if opts.Store == nil {
		store, err := ephemeralStore()
		if err != nil {
			return nil, err
		}
		opts.Store = store
	}

	registry := session.NewRegistry()
	loop, err := conversation.New(func(o *conversation.Options) {
		o.Responder = opts.Responder
		o.Summarizer = opts.Summarizer
		o.Store = opts.Store
		o.Channel = opts.Channel
		o.Vocabulary = opts.Vocabulary
		o.Releaser = registry
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.Messages = opts.Messages
		o.IdleTimeout = opts.IdleTimeout
		o.TeardownTimeout = opts.TeardownTimeout
		o.MaxMessageLength = opts.MaxMessageLength
		o.CodeTag = opts.CodeTag
		o.CommandPrefix = opts.EngineConfig.CommandPrefix
	})
	if err != nil {
		return nil, err
	}

	eng := engine.New(loop, opts.Vocabulary, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Registry = registry
		o.Logger = opts.Logger
	})

	return &SessionMesh{opts: opts, registry: registry, engine: eng}, nil
}

// FromConfig builds a SessionMesh with the backends, transcript store and
// vocabulary described by cfg. cfg must already be validated. reg may be nil
// to disable metrics registration.
func FromConfig(cfg *config.Config, ch core.Channel, logger logging.Logger, reg prometheus.Registerer) (*SessionMesh, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	rec, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	normal, err := NewModel(cfg.Backends.Normal)
	if err != nil {
		return nil, fmt.Errorf("backends.normal: %w", err)
	}
	code, err := NewModel(cfg.Backends.Code)
	if err != nil {
		return nil, fmt.Errorf("backends.code: %w", err)
	}
	summary, err := NewModel(cfg.Backends.Summary)
	if err != nil {
		return nil, fmt.Errorf("backends.summary: %w", err)
	}

	dispatcher, err := dispatch.New(
		dispatch.Route{Model: normal, Persona: cfg.Backends.Normal.Persona, Window: cfg.Backends.Normal.Window},
		dispatch.Route{Model: code, Persona: cfg.Backends.Code.Persona, Window: cfg.Backends.Code.Window},
		func(o *dispatch.Options) {
			o.MaxAttempts = cfg.Dispatch.MaxAttempts
			o.Backoff = cfg.Dispatch.Backoff
			o.Logger = logger
			o.Observe = rec.Generation
		},
	)
	if err != nil {
		return nil, err
	}

	summarizer := summarize.New(summary, func(o *summarize.Options) {
		o.Logger = logger
		if cfg.Backends.Summary.Persona != "" {
			o.Instructions = cfg.Backends.Summary.Persona
		}
	})

	store, closer, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	v := cfg.Vocabulary
	mesh, err := New(func(o *Options) {
		o.EngineConfig = engine.Config{
			InboxSize:     cfg.Session.InboxSize,
			CommandPrefix: cfg.Session.CommandPrefix,
		}
		o.Responder = dispatcher
		o.Summarizer = summarizer
		o.Channel = ch
		o.Store = store
		o.Vocabulary = vocab.New(v.Summon.Normal, v.Summon.Code, v.Dismiss)
		o.Messages = messagesFromConfig(cfg.Messages)
		o.IdleTimeout = cfg.Session.IdleTimeout
		o.MaxMessageLength = cfg.Session.MaxMessageLength
		o.CodeTag = cfg.Session.CodeTag
		o.Logger = logger
		o.Metrics = rec
		o.Closers = append(o.Closers, closer)
	})
	if err != nil {
		_ = closer()
		return nil, err
	}
	return mesh, nil
}

// NewModel creates the model backend described by b.
func NewModel(b config.BackendConfig) (model.Model, error) {
	switch b.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if b.Model != "" {
				o.Model = b.Model
			}
			o.Temperature = b.Temperature
			if b.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(b.MaxTokens)
			}
			o.APIKey = b.APIKey
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if b.Model != "" {
				o.Model = anthropicsdk.Model(b.Model)
			}
			o.Temperature = b.Temperature
			if b.MaxTokens > 0 {
				o.MaxTokens = int64(b.MaxTokens)
			}
			o.APIKey = b.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", b.Provider)
	}
}

// OpenStore opens the transcript store described by sc. The returned closer
// releases the backend.
func OpenStore(sc config.StoreConfig) (*transcript.Store, func() error, error) {
	sealer, err := transcript.NewSealer([]byte(sc.Secret))
	if err != nil {
		return nil, nil, err
	}

	var backend transcript.Backend
	switch sc.Driver {
	case config.DriverMemory, "":
		backend = transcript.NewInMemoryBackend()
	case config.DriverSQLite:
		b, err := sqlite.Open(sc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open transcript store: %w", err)
		}
		backend = b
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", sc.Driver)
	}

	store := transcript.NewStore(sealer, backend)
	return store, store.Close, nil
}

// Handle routes one inbound event.
func (m *SessionMesh) Handle(ctx context.Context, ev core.Event) engine.Outcome {
	return m.engine.Handle(ctx, ev)
}

// ActiveSessions returns the users with an open session, sorted.
func (m *SessionMesh) ActiveSessions() []string { return m.engine.ActiveSessions() }

// IsActive reports whether userID has an open session.
func (m *SessionMesh) IsActive(userID string) bool { return m.registry.IsActive(userID) }

// Wait blocks until every started session has finished.
func (m *SessionMesh) Wait() { m.engine.Wait() }

// Shutdown ends every session (with reason shutdown), waits for their
// teardown and closes the transcript backend.
func (m *SessionMesh) Shutdown(ctx context.Context) error {
	err := m.engine.Shutdown(ctx)
	for _, c := range m.opts.Closers {
		if cerr := c(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}

func messagesFromConfig(mc config.MessagesConfig) conversation.Messages {
	return conversation.Messages{
		Greetings:  append([]string(nil), mc.Greetings...),
		Farewell:   mc.Farewell,
		Timeout:    mc.Timeout,
		Failure:    mc.Failure,
		Processing: mc.Processing,
	}
}

func ephemeralStore() (*transcript.Store, error) {
	secret := make([]byte, transcript.KeySize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate transcript secret: %w", err)
	}
	sealer, err := transcript.NewSealer(secret)
	if err != nil {
		return nil, err
	}
	return transcript.NewStore(sealer, transcript.NewInMemoryBackend()), nil
}

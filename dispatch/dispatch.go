// Package dispatch turns a user utterance into a reply by routing it to the
// model backend, persona and context window configured for the session mode.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/model"
)

const (
	// DefaultNormalWindow is the number of trailing interactions sent as
	// context in normal mode.
	DefaultNormalWindow = 4
	// DefaultCodeWindow is the number of trailing interactions sent as
	// context in code mode.
	DefaultCodeWindow = 8
)

const (
	DefaultNormalPersona = "You are Abby, a friendly and concise assistant chatting in a group channel."
	DefaultCodePersona   = "You are Abby in coding mode. Answer programming questions precisely, " +
		"prefer working code over prose and use fenced code blocks."
)

// Route binds a session mode to a backend.
type Route struct {
	Model   model.Model
	Persona string
	// Window is the number of trailing interactions included as context.
	Window int
}

// Options configures a Dispatcher.
type Options struct {
	// MaxAttempts bounds backend calls per utterance. Values below one mean a
	// single attempt.
	MaxAttempts int
	// Backoff is the fixed pause between attempts.
	Backoff time.Duration
	// Observe is called after every backend call.
	Observe func(mode core.Mode, dur time.Duration, err error)
	Logger  logging.Logger
}

// Dispatcher implements core.Responder.
type Dispatcher struct {
	routes map[core.Mode]Route
	opts   Options
}

// New creates a Dispatcher with one route per mode. Both modes must be
// routed.
func New(normal, code Route, optFns ...func(o *Options)) (*Dispatcher, error) {
	opts := Options{
		MaxAttempts: 1,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	if normal.Model == nil || code.Model == nil {
		return nil, errors.New("dispatch: both normal and code routes need a model")
	}
	if normal.Window <= 0 {
		normal.Window = DefaultNormalWindow
	}
	if code.Window <= 0 {
		code.Window = DefaultCodeWindow
	}
	if normal.Persona == "" {
		normal.Persona = DefaultNormalPersona
	}
	if code.Persona == "" {
		code.Persona = DefaultCodePersona
	}

	return &Dispatcher{
		routes: map[core.Mode]Route{
			core.ModeNormal: normal,
			core.ModeCode:   code,
		},
		opts: opts,
	}, nil
}

// Route returns the route used for mode.
func (d *Dispatcher) Route(mode core.Mode) (Route, bool) {
	r, ok := d.routes[mode]
	return r, ok
}

// Generate implements core.Responder.
func (d *Dispatcher) Generate(ctx context.Context, mode core.Mode, utterance string, history []core.Interaction) (string, error) {
	route, ok := d.routes[mode]
	if !ok {
		return "", &core.GenerationError{Mode: mode, Err: fmt.Errorf("unknown mode %q", mode)}
	}

	req := BuildRequest(route.Persona, utterance, core.TailOf(history, route.Window))

	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, d.opts.Backoff); err != nil {
				return "", &core.GenerationError{Mode: mode, Backend: route.Model.Info().Name, Err: err}
			}
			d.opts.Logger.Debug("retrying generation", "mode", string(mode), "attempt", attempt)
		}

		text, err := d.call(ctx, mode, route, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (d *Dispatcher) call(ctx context.Context, mode core.Mode, route Route, req model.Request) (string, error) {
	backend := route.Model.Info().Name

	start := time.Now()
	resp, err := model.Complete(ctx, route.Model, req)

	var genErr error
	switch {
	case err != nil:
		genErr = &core.GenerationError{Mode: mode, Backend: backend, Err: err}
	case !model.IsSuccessfulFinish(resp.FinishReason):
		genErr = &core.GenerationError{Mode: mode, Backend: backend, FinishReason: resp.FinishReason}
	case strings.TrimSpace(resp.Text) == "":
		genErr = &core.GenerationError{Mode: mode, Backend: backend, Err: errors.New("empty completion")}
	}

	dur := time.Since(start)
	logging.LogGeneration(d.opts.Logger, backend, string(mode), dur, genErr)
	if d.opts.Observe != nil {
		d.opts.Observe(mode, dur, genErr)
	}
	if genErr != nil {
		return "", genErr
	}
	return resp.Text, nil
}

// BuildRequest renders persona, trailing context and the utterance into a
// model request. Each interaction becomes a user and an assistant message.
func BuildRequest(persona, utterance string, history []core.Interaction) model.Request {
	msgs := make([]model.Message, 0, 2*len(history)+1)
	for _, in := range history {
		msgs = append(msgs,
			model.Message{Role: model.RoleUser, Text: in.Input},
			model.Message{Role: model.RoleAssistant, Text: in.Response},
		)
	}
	msgs = append(msgs, model.Message{Role: model.RoleUser, Text: utterance})
	return model.Request{Instructions: persona, Messages: msgs}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

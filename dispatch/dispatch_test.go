package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.Responder = (*Dispatcher)(nil)

func pairs(n int) []core.Interaction {
	out := make([]core.Interaction, n)
	for i := range out {
		out[i] = core.Interaction{Input: fmt.Sprintf("u%d", i+1), Response: fmt.Sprintf("r%d", i+1)}
	}
	return out
}

func newDispatcher(t *testing.T, optFns ...func(o *Options)) (*Dispatcher, *model.MockModel, *model.MockModel) {
	t.Helper()
	normal := model.NewMockModel("normal", "mock")
	code := model.NewMockModel("code", "mock")
	d, err := New(Route{Model: normal}, Route{Model: code}, optFns...)
	require.NoError(t, err)
	return d, normal, code
}

func TestGenerate_NormalWindow(t *testing.T) {
	d, normal, code := newDispatcher(t)
	normal.AddResponse("what now", "this")

	got, err := d.Generate(context.Background(), core.ModeNormal, "what now", pairs(10))
	require.NoError(t, err)
	assert.Equal(t, "this", got)
	assert.Empty(t, code.Requests())

	reqs := normal.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, DefaultNormalPersona, reqs[0].Instructions)
	require.Len(t, reqs[0].Messages, 9)
	assert.Equal(t, model.Message{Role: model.RoleUser, Text: "u7"}, reqs[0].Messages[0])
	assert.Equal(t, model.Message{Role: model.RoleAssistant, Text: "r10"}, reqs[0].Messages[7])
	assert.Equal(t, model.Message{Role: model.RoleUser, Text: "what now"}, reqs[0].Messages[8])
}

func TestGenerate_CodeWindow(t *testing.T) {
	d, normal, code := newDispatcher(t)

	_, err := d.Generate(context.Background(), core.ModeCode, "fix this loop", pairs(10))
	require.NoError(t, err)
	assert.Empty(t, normal.Requests())

	reqs := code.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, DefaultCodePersona, reqs[0].Instructions)
	assert.Len(t, reqs[0].Messages, 17)
	assert.Equal(t, "u3", reqs[0].Messages[0].Text)
}

func TestGenerate_EmptyHistory(t *testing.T) {
	d, _, code := newDispatcher(t)
	_, err := d.Generate(context.Background(), core.ModeCode, "fix this loop", nil)
	require.NoError(t, err)
	reqs := code.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []model.Message{{Role: model.RoleUser, Text: "fix this loop"}}, reqs[0].Messages)
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		resp   model.Response
		err    error
		finish string
	}{
		{name: "backend error", err: errors.New("503")},
		{name: "truncated", resp: model.Response{Text: "half", FinishReason: "length"}, finish: "length"},
		{name: "filtered", resp: model.Response{Text: "", FinishReason: "content_filter"}, finish: "content_filter"},
		{name: "empty text", resp: model.Response{Text: "  ", FinishReason: "stop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, normal, _ := newDispatcher(t)
			normal.SetFallback(func(model.Request) (model.Response, error) { return tt.resp, tt.err })

			_, err := d.Generate(context.Background(), core.ModeNormal, "hi", nil)
			var ge *core.GenerationError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, core.ModeNormal, ge.Mode)
			assert.Equal(t, "normal", ge.Backend)
			assert.Equal(t, tt.finish, ge.FinishReason)
		})
	}
}

func TestGenerate_Retry(t *testing.T) {
	var calls atomic.Int32
	d, normal, _ := newDispatcher(t, func(o *Options) {
		o.MaxAttempts = 3
		o.Backoff = time.Millisecond
	})
	normal.SetFallback(func(model.Request) (model.Response, error) {
		if calls.Add(1) < 3 {
			return model.Response{}, errors.New("flaky")
		}
		return model.Response{Text: "finally", FinishReason: "stop"}, nil
	})

	got, err := d.Generate(context.Background(), core.ModeNormal, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "finally", got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerate_SingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	d, normal, _ := newDispatcher(t)
	normal.SetFallback(func(model.Request) (model.Response, error) {
		calls.Add(1)
		return model.Response{}, errors.New("down")
	})

	_, err := d.Generate(context.Background(), core.ModeNormal, "hi", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_CancelledContext(t *testing.T) {
	d, _, _ := newDispatcher(t, func(o *Options) { o.MaxAttempts = 5 })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Generate(ctx, core.ModeNormal, "hi", nil)
	var ge *core.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_Observe(t *testing.T) {
	var observed []core.Mode
	d, _, _ := newDispatcher(t, func(o *Options) {
		o.Observe = func(mode core.Mode, _ time.Duration, err error) {
			assert.NoError(t, err)
			observed = append(observed, mode)
		}
	})
	_, err := d.Generate(context.Background(), core.ModeCode, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []core.Mode{core.ModeCode}, observed)
}

func TestNew_RequiresModels(t *testing.T) {
	_, err := New(Route{}, Route{Model: model.NewMockModel("c", "mock")})
	assert.Error(t, err)
}

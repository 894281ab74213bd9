package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.Summarizer = (*ModelSummarizer)(nil)

func history(n int) []core.Interaction {
	out := make([]core.Interaction, n)
	for i := range out {
		out[i] = core.Interaction{Input: fmt.Sprintf("q%d", i+1), Response: fmt.Sprintf("a%d", i+1)}
	}
	return out
}

func TestSummarize_UsesLastFivePairs(t *testing.T) {
	m := model.NewMockModel("summary", "mock")
	m.SetFallback(func(model.Request) (model.Response, error) {
		return model.Response{Text: "  user asked eight things  ", FinishReason: "stop"}, nil
	})

	got, err := New(m).Summarize(context.Background(), history(8))
	require.NoError(t, err)
	assert.Equal(t, "user asked eight things", got)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, DefaultInstructions, reqs[0].Instructions)
	prompt := reqs[0].Messages[0].Text
	assert.NotContains(t, prompt, "q3\n")
	assert.Contains(t, prompt, "User: q4")
	assert.Contains(t, prompt, "Assistant: a8")
	assert.Equal(t, 5, strings.Count(prompt, "User: "))
}

func TestSummarize_EmptyTailSkipsModel(t *testing.T) {
	m := model.NewMockModel("summary", "mock")
	got, err := New(m).Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, m.Requests())
}

func TestSummarize_Failures(t *testing.T) {
	m := model.NewMockModel("summary", "mock")
	m.SetFallback(func(model.Request) (model.Response, error) { return model.Response{}, errors.New("down") })
	_, err := New(m).Summarize(context.Background(), history(1))
	var se *core.SummarizationError
	assert.ErrorAs(t, err, &se)

	truncated := model.NewMockModel("summary", "mock")
	truncated.SetFallback(func(model.Request) (model.Response, error) {
		return model.Response{Text: "partial", FinishReason: "length"}, nil
	})
	_, err = New(truncated).Summarize(context.Background(), history(2))
	assert.ErrorAs(t, err, &se)
}

func TestTranscript(t *testing.T) {
	assert.Equal(t, "User: hi\nAssistant: hello\n", Transcript([]core.Interaction{{Input: "hi", Response: "hello"}}))
}

func TestTail(t *testing.T) {
	assert.Len(t, Tail(history(3), DefaultTail), 3)
	got := Tail(history(7), DefaultTail)
	require.Len(t, got, 5)
	assert.Equal(t, "q3", got[0].Input)
}

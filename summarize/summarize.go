// Package summarize condenses the end of a conversation into a short
// carry-over summary that seeds the user's next session.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/model"
)

// DefaultTail is the number of trailing interactions that are summarized.
const DefaultTail = 5

// DefaultInstructions is the system prompt used to condense a conversation.
const DefaultInstructions = "Summarize the following conversation between a user and an assistant " +
	"in at most three sentences. Keep names, preferences and open questions the assistant should " +
	"remember next time. Reply with the summary only."

// Options configures a ModelSummarizer.
type Options struct {
	Instructions string
	Tail         int
	Logger       logging.Logger
}

// ModelSummarizer implements core.Summarizer with a language model.
type ModelSummarizer struct {
	model model.Model
	opts  Options
}

// New creates a ModelSummarizer backed by m.
func New(m model.Model, optFns ...func(o *Options)) *ModelSummarizer {
	opts := Options{
		Instructions: DefaultInstructions,
		Tail:         DefaultTail,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelSummarizer{model: m, opts: opts}
}

// Summarize implements core.Summarizer. At most the last Tail interactions
// are used; an empty tail yields an empty summary without a model call.
func (s *ModelSummarizer) Summarize(ctx context.Context, tail []core.Interaction) (string, error) {
	tail = Tail(tail, s.opts.Tail)
	if len(tail) == 0 {
		return "", nil
	}

	req := model.Request{
		Instructions: s.opts.Instructions,
		Messages:     []model.Message{{Role: model.RoleUser, Text: Transcript(tail)}},
	}

	start := time.Now()
	resp, err := model.Complete(ctx, s.model, req)
	if err == nil && !model.IsSuccessfulFinish(resp.FinishReason) {
		err = fmt.Errorf("finish reason %q", resp.FinishReason)
	}
	logging.LogGeneration(s.opts.Logger, s.model.Info().Name, "summary", time.Since(start), err)
	if err != nil {
		return "", &core.SummarizationError{Err: err}
	}
	return strings.TrimSpace(resp.Text), nil
}

// Transcript renders interactions as alternating "User:" / "Assistant:"
// lines.
func Transcript(history []core.Interaction) string {
	var sb strings.Builder
	for i, in := range history {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", in.Input, in.Response)
	}
	return sb.String()
}

// Tail returns the last n interactions of history, fewer when the history is
// shorter.
func Tail(history []core.Interaction, n int) []core.Interaction {
	return core.TailOf(history, n)
}

package model

import (
	"context"
	"fmt"
	"sync"
)

// Role of a conversational message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversational context.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Request captures the normalized model input.
type Request struct {
	Instructions string    `json:"instructions"` // system prompt / persona
	Messages     []Message `json:"messages"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final completion emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "end_turn", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the minimal interface required by the dispatcher and summarizer.
// Generate emits exactly one Response or one error and then closes both
// channels.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// IsSuccessfulFinish reports whether a finish reason denotes a normal,
// complete reply. OpenAI uses "stop", Anthropic "end_turn" / "stop_sequence".
func IsSuccessfulFinish(reason string) bool {
	switch reason {
	case "", "stop", "end_turn", "stop_sequence":
		return true
	default:
		return false
	}
}

// Complete drains a Generate call into a single Response.
func Complete(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	var (
		resp Response
		got  bool
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			resp, got = r, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !got {
		return Response{}, fmt.Errorf("model %s returned no response", m.Info().Name)
	}
	return resp, nil
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
// It records every request it receives.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses map[string]Response
	fallback  func(req Request) (Response, error)
	requests  []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]Response),
	}
}

// AddResponse registers a deterministic canned completion for the last user
// message of a request.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = Response{Text: response, FinishReason: "stop"}
}

// SetFallback installs a handler for prompts without a canned response.
func (m *MockModel) SetFallback(fn func(req Request) (Response, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
}

// Requests returns a copy of all requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	fallback := m.fallback
	var (
		canned Response
		found  bool
	)
	if n := len(req.Messages); n > 0 {
		canned, found = m.responses[req.Messages[n-1].Text]
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		if found {
			respCh <- canned
			return
		}
		if fallback != nil {
			resp, err := fallback(req)
			if err != nil {
				errCh <- err
				return
			}
			respCh <- resp
			return
		}
		respCh <- Response{
			Text:         fmt.Sprintf("Mock response to: %s", req.Messages[len(req.Messages)-1].Text),
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// Package llm defines the Provider interface for text-generation backends.
//
// The chat pipeline only ever needs a single, complete answer per request: the
// meta-decision, the persona reply, mood classification, character creation
// and search summaries are all one-shot prompts. Providers therefore expose a
// blocking Complete call rather than a stream.
//
// Implementations must be safe for concurrent use and must honour context
// cancellation.
package llm

import (
	"context"
	"errors"
)

// Role values accepted in [Message.Role].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a backend answers without any choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Message is a single entry in a completion request.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser] or [RoleAssistant].
	Role string

	// Content is the text of the message.
	Content string

	// Name is an optional participant name.
	Name string
}

// Usage holds token accounting reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce an answer.
type CompletionRequest struct {
	// Messages is the ordered conversation. Must be non-empty.
	Messages []Message

	// SystemPrompt is an optional instruction placed before Messages.
	SystemPrompt string

	// Temperature controls randomness. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int
}

// CompletionResponse is the result of [Provider.Complete].
type CompletionResponse struct {
	// Content is the full text of the model's answer.
	Content string

	// Usage contains token accounting for this call.
	Usage Usage
}

// Provider is the abstraction over any text-generation backend.
type Provider interface {
	// Complete sends req and blocks until the full answer arrives or ctx ends.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// ModelID returns the identifier of the model in use.
	ModelID() string
}

// Prompt builds a request consisting of a single user message.
func Prompt(text string) CompletionRequest {
	return CompletionRequest{Messages: []Message{{Role: RoleUser, Content: text}}}
}

// Generator adapts a [Provider] to the prompt-in, text-out shape used by the
// chat pipeline.
type Generator struct {
	Provider    Provider
	Temperature float64
	MaxTokens   int
}

// Generate sends prompt as a single user message and returns the answer.
func (g Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := Prompt(prompt)
	req.Temperature = g.Temperature
	req.MaxTokens = g.MaxTokens
	resp, err := g.Provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}

// Package llm talks to the supported LLM providers and normalizes every
// response into a single Output shape.
package llm

import "context"

// Purpose identifies why a call is made. Each purpose carries its own system
// instruction and temperature.
type Purpose string

const (
	PurposeExtraction Purpose = "extraction"
	PurposeScoring    Purpose = "scoring"
	PurposeNarrative  Purpose = "narrative"
)

// Schema is a JSON schema attached to requests for backends that support
// constrained decoding.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Request is one single-turn call: a system instruction plus one user message.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
	Schema      *Schema
}

// Output is a provider response normalized at the client boundary.
type Output struct {
	Provider     string
	Model        string
	Text         string
	Refusal      string
	Truncated    bool
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Backend sends one request to a specific provider.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (Output, error)
}

// Completer is a purpose-bound client: callers only supply the user prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Output, error)
}

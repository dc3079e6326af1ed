package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client binds a backend to one purpose: a fixed system instruction,
// temperature, output budget and optional schema. Clients hold no mutable
// state and are safe for concurrent use.
type Client struct {
	backend     Backend
	purpose     Purpose
	system      string
	temperature float64
	maxTokens   int64
	schema      *Schema
	timeout     time.Duration
	logger      *zap.Logger
}

var _ Completer = (*Client)(nil)

type ClientOption func(*Client)

func WithSystem(system string) ClientOption {
	return func(c *Client) { c.system = system }
}

func WithTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

func WithMaxTokens(n int64) ClientOption {
	return func(c *Client) { c.maxTokens = n }
}

func WithSchema(s *Schema) ClientOption {
	return func(c *Client) { c.schema = s }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a purpose-bound client.
func NewClient(backend Backend, purpose Purpose, opts ...ClientOption) *Client {
	if backend == nil {
		panic("backend must not be nil")
	}
	c := &Client{
		backend: backend,
		purpose: purpose,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(
		zap.String("provider", backend.Name()),
		zap.String("purpose", string(purpose)))
	return c
}

func (c *Client) Provider() string { return c.backend.Name() }

func (c *Client) Purpose() Purpose { return c.purpose }

func (c *Client) Temperature() float64 { return c.temperature }

// Complete sends prompt as the user message. Refusals and truncated output are
// returned as ProviderErrors rather than as partial text.
func (c *Client) Complete(ctx context.Context, prompt string) (Output, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.backend.Complete(ctx, Request{
		System:      c.system,
		Prompt:      prompt,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Schema:      c.schema,
	})
	if err != nil {
		err = classify(c.backend.Name(), 0, err)
		c.logger.Warn("LLM call failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return Output{}, err
	}

	switch {
	case out.Refusal != "":
		return Output{}, &ProviderError{Provider: c.backend.Name(), Kind: ErrRefused, Detail: out.Refusal}
	case out.Truncated:
		return Output{}, &ProviderError{Provider: c.backend.Name(), Kind: ErrTruncated, Limit: c.maxTokens}
	case strings.TrimSpace(out.Text) == "":
		return Output{}, &ProviderError{Provider: c.backend.Name(), Kind: ErrTransport, Err: errors.New("response contained no text output")}
	}

	c.logger.Debug("LLM call completed",
		zap.String("model", out.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("input_tokens", out.InputTokens),
		zap.Int64("output_tokens", out.OutputTokens))

	return out, nil
}

// Extract is Complete for a client bound to PurposeExtraction.
func (c *Client) Extract(ctx context.Context, prompt string) (Output, error) {
	return c.completeAs(ctx, PurposeExtraction, prompt)
}

// Score is Complete for a client bound to PurposeScoring.
func (c *Client) Score(ctx context.Context, prompt string) (Output, error) {
	return c.completeAs(ctx, PurposeScoring, prompt)
}

func (c *Client) completeAs(ctx context.Context, purpose Purpose, prompt string) (Output, error) {
	if c.purpose != purpose {
		return Output{}, fmt.Errorf("client is bound to %s, not %s", c.purpose, purpose)
	}
	return c.Complete(ctx, prompt)
}

// Result carries the outcome of an asynchronous call.
type Result struct {
	Output Output
	Err    error
}

// CompleteAsync runs Complete in its own goroutine. The returned channel
// receives exactly one Result and is then closed.
func (c *Client) CompleteAsync(ctx context.Context, prompt string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		out, err := c.Complete(ctx, prompt)
		ch <- Result{Output: out, Err: err}
	}()
	return ch
}

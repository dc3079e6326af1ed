package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/godilite/rubric-grader/internal/config"
)

const (
	stopReasonMaxTokens = "max_tokens"
	stopReasonRefusal   = "refusal"

	defaultAnthropicMaxTokens = 4096
)

// Anthropic is the prompt-only backend: schemas are not sent on the wire.
// They are appended to the system instruction instead, and the response
// normalizer handles whatever comes back.
type Anthropic struct {
	client anthropic.Client
	model  string
}

var _ Backend = (*Anthropic)(nil)

// NewAnthropic builds an Anthropic-style backend.
func NewAnthropic(settings config.ProviderSettings, opts ...anthropicopt.RequestOption) *Anthropic {
	clientOpts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(settings.APIKey),
		anthropicopt.WithMaxRetries(settings.MaxRetries),
	}
	if settings.BaseURL != "" {
		clientOpts = append(clientOpts, anthropicopt.WithBaseURL(settings.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &Anthropic{
		client: anthropic.NewClient(clientOpts...),
		model:  settings.Model,
	}
}

func (a *Anthropic) Name() string { return config.ProviderAnthropic }

func (a *Anthropic) Complete(ctx context.Context, req Request) (Output, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if system := schemaInstruction(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return Output{}, classify(a.Name(), apiErr.StatusCode, err)
		}
		return Output{}, classify(a.Name(), 0, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	out := Output{
		Provider:     a.Name(),
		Model:        string(msg.Model),
		Text:         text.String(),
		StopReason:   string(msg.StopReason),
		Truncated:    string(msg.StopReason) == stopReasonMaxTokens,
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}
	if out.StopReason == stopReasonRefusal {
		out.Refusal = strings.TrimSpace(out.Text)
		if out.Refusal == "" {
			out.Refusal = "the model declined to respond"
		}
	}
	return out, nil
}

// schemaInstruction is req.System with the schema definition, if any,
// appended as plain text.
func schemaInstruction(req Request) string {
	if req.Schema == nil || len(req.Schema.Definition) == 0 {
		return req.System
	}
	def, err := json.Marshal(req.Schema.Definition)
	if err != nil {
		return req.System
	}
	var b strings.Builder
	if req.System != "" {
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with a single JSON object that matches this JSON schema:\n")
	b.Write(def)
	return b.String()
}

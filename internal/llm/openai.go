package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/godilite/rubric-grader/internal/config"
)

const finishReasonLength = "length"

// OpenAI is the strict backend: when a request carries a Schema it is sent as
// a json_schema response format with strict decoding.
type OpenAI struct {
	client openai.Client
	model  string
}

var _ Backend = (*OpenAI)(nil)

// NewOpenAI builds an OpenAI-style backend. Extra request options are applied
// after the ones derived from settings.
func NewOpenAI(settings config.ProviderSettings, opts ...openaiopt.RequestOption) *OpenAI {
	clientOpts := []openaiopt.RequestOption{
		openaiopt.WithAPIKey(settings.APIKey),
		openaiopt.WithMaxRetries(settings.MaxRetries),
	}
	if settings.BaseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(settings.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAI{
		client: openai.NewClient(clientOpts...),
		model:  settings.Model,
	}
}

func (o *OpenAI) Name() string { return config.ProviderOpenAI }

func (o *OpenAI) Complete(ctx context.Context, req Request) (Output, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name,
					Description: openai.String(req.Schema.Description),
					Schema:      req.Schema.Definition,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Output{}, classify(o.Name(), apiErr.StatusCode, err)
		}
		return Output{}, classify(o.Name(), 0, err)
	}
	if len(resp.Choices) == 0 {
		return Output{}, classify(o.Name(), 0, fmt.Errorf("response for model %s contained no choices", o.model))
	}

	choice := resp.Choices[0]
	return Output{
		Provider:     o.Name(),
		Model:        resp.Model,
		Text:         choice.Message.Content,
		Refusal:      choice.Message.Refusal,
		Truncated:    choice.FinishReason == finishReasonLength,
		StopReason:   choice.FinishReason,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

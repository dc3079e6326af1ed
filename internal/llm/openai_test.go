package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/rubric-grader/internal/config"
)

func openAIServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func chatCompletion(content, finishReason string) string {
	payload := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-test",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": finishReason,
			"message":       map[string]any{"role": "assistant", "content": content, "refusal": nil},
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func openAISettings(baseURL string) config.ProviderSettings {
	return config.ProviderSettings{
		Name:            config.ProviderOpenAI,
		APIKey:          "sk-test",
		BaseURL:         baseURL,
		Model:           "gpt-test",
		MaxOutputTokens: 256,
	}
}

func TestOpenAI_Complete(t *testing.T) {
	var captured map[string]any
	srv := openAIServer(t, http.StatusOK, chatCompletion(`{"evaluation":{"score":3}}`, "stop"), &captured)

	backend := NewOpenAI(openAISettings(srv.URL))
	out, err := backend.Complete(context.Background(), Request{
		System:      "system text",
		Prompt:      "user text",
		Temperature: 0.2,
		MaxTokens:   256,
		Schema: &Schema{
			Name:       "criterion_score",
			Definition: map[string]any{"type": "object"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, config.ProviderOpenAI, out.Provider)
	assert.Equal(t, "gpt-test", out.Model)
	assert.Equal(t, `{"evaluation":{"score":3}}`, out.Text)
	assert.False(t, out.Truncated)
	assert.Equal(t, int64(12), out.InputTokens)
	assert.Equal(t, int64(5), out.OutputTokens)

	assert.Equal(t, "gpt-test", captured["model"])
	assert.Equal(t, 0.2, captured["temperature"])
	assert.Equal(t, float64(256), captured["max_completion_tokens"])

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])

	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok, "schema should be sent as response_format")
	assert.Equal(t, "json_schema", format["type"])
	jsonSchema := format["json_schema"].(map[string]any)
	assert.Equal(t, "criterion_score", jsonSchema["name"])
	assert.Equal(t, true, jsonSchema["strict"])
}

func TestOpenAI_NoSchemaOmitsResponseFormat(t *testing.T) {
	var captured map[string]any
	srv := openAIServer(t, http.StatusOK, chatCompletion("narrative", "stop"), &captured)

	_, err := NewOpenAI(openAISettings(srv.URL)).Complete(context.Background(), Request{Prompt: "hi", Temperature: 0.7})
	require.NoError(t, err)

	_, present := captured["response_format"]
	assert.False(t, present)
}

func TestOpenAI_Truncated(t *testing.T) {
	srv := openAIServer(t, http.StatusOK, chatCompletion(`{"evaluation":{"sco`, "length"), nil)

	out, err := NewOpenAI(openAISettings(srv.URL)).Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.True(t, out.Truncated)
	assert.Equal(t, "length", out.StopReason)
}

func TestOpenAI_RateLimited(t *testing.T) {
	srv := openAIServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, nil)

	_, err := NewOpenAI(openAISettings(srv.URL)).Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.True(t, errors.Is(err, ErrTransport))

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusTooManyRequests, pe.Status)
	assert.Contains(t, err.Error(), "switch to another LLM provider")
}

func TestOpenAI_ServerError(t *testing.T) {
	srv := openAIServer(t, http.StatusBadRequest, `{"error":{"message":"bad model","type":"invalid_request_error"}}`, nil)

	_, err := NewOpenAI(openAISettings(srv.URL)).Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, errors.Is(err, ErrRateLimited))
}

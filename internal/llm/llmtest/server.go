// Package llmtest provides a fake OpenAI-compatible chat completions server
// for tests that drive the full pipeline.
package llmtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Reply produces the assistant message content for one request. prompt is
// the last user message.
type Reply func(prompt string) string

// Server answers chat completion requests by the name of the JSON schema
// attached to the request, so extraction, scoring and report calls can be
// scripted separately.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	replies map[string]Reply
	calls   map[string]int
}

// NewOpenAIServer starts a server closed at test cleanup. replies is keyed by
// schema name: "rubric_extraction", "criterion_score" or "learner_report".
func NewOpenAIServer(t testing.TB, replies map[string]Reply) *Server {
	t.Helper()
	s := &Server{replies: replies, calls: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Calls reports how many requests carried the named schema.
func (s *Server) Calls(schema string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[schema]
}

type chatRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
	ResponseFormat struct {
		JSONSchema struct {
			Name string `json:"name"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	schema := req.ResponseFormat.JSONSchema.Name

	s.mu.Lock()
	s.calls[schema]++
	reply, ok := s.replies[schema]
	s.mu.Unlock()
	if !ok {
		http.Error(w, `{"error":{"message":"unexpected schema `+schema+`"}}`, http.StatusBadRequest)
		return
	}

	var prompt string
	for _, m := range req.Messages {
		if m.Role == "user" {
			prompt = contentText(m.Content)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-test",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": reply(prompt), "refusal": nil},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14},
	})
}

func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var out string
		for _, part := range v {
			if p, ok := part.(map[string]any); ok {
				if text, ok := p["text"].(string); ok {
					out += text
				}
			}
		}
		return out
	}
	return ""
}

// Static returns a Reply that always answers body.
func Static(body string) Reply {
	return func(string) string { return body }
}

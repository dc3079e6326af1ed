package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/godilite/rubric-grader/internal/llm"
)

// MockCompleter is a func-field llm.Completer that records every prompt.
type MockCompleter struct {
	CompleteFunc func(ctx context.Context, prompt string) (llm.Output, error)

	mu      sync.Mutex
	Prompts []string
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (llm.Output, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return llm.Output{}, errors.New("CompleteFunc not implemented")
}

// Calls returns the number of recorded prompts.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// MockResolver hands out completers keyed by purpose.
type MockResolver struct {
	Completers map[llm.Purpose]llm.Completer
	Err        error
}

func (m *MockResolver) Resolve(provider string, purpose llm.Purpose) (llm.Completer, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	c, ok := m.Completers[purpose]
	if !ok {
		return nil, errors.New("no completer for purpose " + string(purpose))
	}
	return c, nil
}

package e2e

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minuteman-ai/minuteman/pkg/llm"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

// mockLLM is a scripted completion client. Each prompt template embeds
// a "PROMPT <slug>" marker, so responses and failures can be targeted
// per analyzer by substring match on the rendered prompt.
type mockLLM struct {
	mu        sync.Mutex
	responses map[string]string
	failWith  map[string]error
	requests  []llm.Request
}

func newMockLLM() *mockLLM {
	return &mockLLM{
		responses: make(map[string]string),
		failWith:  make(map[string]error),
	}
}

// respond scripts the completion returned for prompts containing marker.
func (m *mockLLM) respond(marker, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[marker] = content
}

// fail scripts an error for prompts containing marker.
func (m *mockLLM) fail(marker string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith[marker] = err
}

func (m *mockLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	for marker, err := range m.failWith {
		if strings.Contains(req.UserPrompt, marker) {
			return nil, err
		}
	}
	content := "## Analysis\n\n- **Decision**: proceed with the plan\n"
	for marker, scripted := range m.responses {
		if strings.Contains(req.UserPrompt, marker) {
			content = scripted
			break
		}
	}
	return &llm.Response{
		Content: content,
		Model:   "mock-model",
		Usage:   models.TokenUsage{PromptTokens: 100, CompletionTokens: 25, TotalTokens: 125},
	}, nil
}

func (m *mockLLM) CountTokens(text string) int {
	return len(text) / 4
}

// requestCount returns how many completions were issued.
func (m *mockLLM) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// requestFor returns the first request whose prompt contains marker.
func (m *mockLLM) requestFor(marker string) (llm.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.requests {
		if strings.Contains(req.UserPrompt, marker) {
			return req, nil
		}
	}
	return llm.Request{}, fmt.Errorf("no request matched marker %q", marker)
}

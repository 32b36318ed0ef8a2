package agent

import (
	"context"
	"errors"
	"sync"

	"autogippity/pkg/agent/llm"
)

// ErrMockExhausted is returned when a mock client runs out of scripted responses.
var ErrMockExhausted = errors.New("mock client: no more responses")

// MockLLMClient provides a controllable implementation of llm.LLMClient for testing.
// Call i fails with errs[i] when that entry is non-nil; otherwise it returns
// the next unused response.
type MockLLMClient struct {
	respond       func(req llm.CompletionRequest) (llm.CompletionResponse, error)
	model         string
	responses     []llm.CompletionResponse
	errs          []error
	requests      []llm.CompletionRequest
	responseIndex int
	mu            sync.Mutex
}

// NewMockLLMClient creates a new mock client with predefined responses.
func NewMockLLMClient(responses []llm.CompletionResponse, errs []error) *MockLLMClient {
	return &MockLLMClient{
		model:     "mock-model",
		responses: responses,
		errs:      errs,
	}
}

// NewMockLLMClientFunc creates a mock that answers every call with fn.
func NewMockLLMClientFunc(fn func(req llm.CompletionRequest) (llm.CompletionResponse, error)) *MockLLMClient {
	return &MockLLMClient{model: "mock-model", respond: fn}
}

// NewMockTextClient is shorthand for a mock returning the given contents in order.
func NewMockTextClient(contents ...string) *MockLLMClient {
	responses := make([]llm.CompletionResponse, 0, len(contents))
	for _, c := range contents {
		responses = append(responses, llm.CompletionResponse{Content: c, StopReason: "stop"})
	}
	return NewMockLLMClient(responses, nil)
}

// Complete returns the next predefined response or error.
//
//nolint:gocritic // value request mirrors the interface
func (m *MockLLMClient) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := len(m.requests)
	m.requests = append(m.requests, req)

	if m.respond != nil {
		return m.respond(req)
	}
	if call < len(m.errs) && m.errs[call] != nil {
		return llm.CompletionResponse{}, m.errs[call]
	}
	if m.responseIndex >= len(m.responses) {
		return llm.CompletionResponse{}, ErrMockExhausted
	}
	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// GetModelName returns the mock model name.
func (m *MockLLMClient) GetModelName() string {
	return m.model
}

// Calls returns how many times Complete was invoked.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockLLMClient) Requests() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.CompletionRequest{}, m.requests...)
}

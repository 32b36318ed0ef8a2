package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autogippity/pkg/agent/llm"
	"autogippity/pkg/agent/llmerrors"
)

func TestNewOllamaClientWithModel(t *testing.T) {
	tests := []struct {
		name     string
		hostURL  string
		model    string
		wantHost string
		wantName string
	}{
		{"valid host and model", "http://localhost:11434", "phi4:latest", "http://localhost:11434", "phi4:latest"},
		{"custom host", "http://192.168.1.100:11434", "llama3.1:8b", "http://192.168.1.100:11434", "llama3.1:8b"},
		{"invalid URL falls back to default", "not-a-valid-url", "mistral:7b", DefaultHost, "mistral:7b"},
		{"prefixed model", DefaultHost, "ollama:qwen2.5", DefaultHost, "qwen2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewOllamaClientWithModel(tt.hostURL, tt.model, time.Second)
			require.NotNil(t, client)
			assert.Equal(t, tt.wantName, client.GetModelName())
			assert.Equal(t, tt.wantHost, client.hostURL)
		})
	}
}

func TestConvertMessagesToOllama(t *testing.T) {
	_, err := convertMessagesToOllama(nil)
	assert.Error(t, err)

	_, err = convertMessagesToOllama([]llm.CompletionMessage{{Role: "tool", Content: "x"}})
	assert.Error(t, err)

	msgs, err := convertMessagesToOllama([]llm.CompletionMessage{
		llm.NewSystemMessage("You are a function printer"),
		llm.NewUserMessage("Hello"),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "Hello", msgs[1].Content)
}

func TestGetStopReason(t *testing.T) {
	assert.Equal(t, "incomplete", getStopReason(&api.ChatResponse{}))
	assert.Equal(t, "end_turn", getStopReason(&api.ChatResponse{Done: true, DoneReason: "stop"}))
	assert.Equal(t, "max_tokens", getStopReason(&api.ChatResponse{Done: true, DoneReason: "length"}))
	assert.Equal(t, "other", getStopReason(&api.ChatResponse{Done: true, DoneReason: "other"}))
}

func TestCompleteAgainstStubServer(t *testing.T) {
	var req api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1","message":{"role":"assistant","content":"[]"},"done":true,"done_reason":"stop"}` + "\n"))
	}))
	defer srv.Close()

	client := NewOllamaClientWithModel(srv.URL, "llama3.1", 5*time.Second)
	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage("FUNCTION: urls"),
	}))
	require.NoError(t, err)

	assert.Equal(t, "[]", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "llama3.1", req.Model)
	assert.InDelta(t, 0.1, req.Options["temperature"], 1e-9)
}

func TestClassifyError(t *testing.T) {
	notFound := classifyError(api.StatusError{StatusCode: http.StatusNotFound, ErrorMessage: "model 'x' not found"})
	assert.Equal(t, llmerrors.ErrorTypeBadPrompt, notFound.Type)

	server := classifyError(api.StatusError{StatusCode: http.StatusServiceUnavailable})
	assert.Equal(t, llmerrors.ErrorTypeTransient, server.Type)

	refused := classifyError(errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"))
	assert.Equal(t, llmerrors.ErrorTypeTransient, refused.Type)
}

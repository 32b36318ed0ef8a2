package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autogippity/pkg/agent/llm"
	"autogippity/pkg/agent/llmerrors"
)

func TestToMessagesSystemOnly(t *testing.T) {
	system, messages := toMessages([]llm.CompletionMessage{llm.NewSystemMessage("FUNCTION: f")})

	assert.Empty(t, system)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", string(messages[0].Role))
}

func TestToMessagesKeepsTurns(t *testing.T) {
	system, messages := toMessages([]llm.CompletionMessage{
		llm.NewSystemMessage("be terse"),
		llm.NewUserMessage("hi"),
		{Role: llm.RoleAssistant, Content: "hello"},
		llm.NewUserMessage("again"),
	})

	assert.Equal(t, "be terse", system)
	require.Len(t, messages, 3)
	assert.Equal(t, "assistant", string(messages[1].Role))
}

func TestCompleteAgainstStubServer(t *testing.T) {
	var calls int32
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4",
		  "content": [{"type": "text", "text": "[\"https://example.com\"]"}],
		  "stop_reason": "end_turn", "stop_sequence": null,
		  "usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	client := NewClaudeClientWithModel("key", "claude-sonnet-4", srv.URL, 5*time.Second)
	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage("FUNCTION: urls"),
	}))
	require.NoError(t, err)

	assert.Equal(t, `["https://example.com"]`, resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "claude-sonnet-4", body["model"])
	assert.InDelta(t, 0.1, body["temperature"], 1e-9)
	assert.Equal(t, "claude-sonnet-4", client.GetModelName())
}

func TestCompleteRateLimitedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	client := NewClaudeClientWithModel("key", "claude-sonnet-4", srv.URL, 5*time.Second)
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("x")}))

	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeRateLimit))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageKindString(t *testing.T) {
	assert.Equal(t, "ai_call", MessageAICall.String())
	assert.Equal(t, "unit_test", MessageUnitTest.String())
	assert.Equal(t, "issue", MessageIssue.String())
	assert.Equal(t, "unknown", MessageKind(42).String())
}

func TestTee(t *testing.T) {
	var got []string
	record := func(tag string) Notifier {
		return NotifierFunc(func(msg AgentMessage) { got = append(got, tag+":"+msg.Statement) })
	}

	Tee(record("a"), nil, Discard, record("b")).Notify(AgentMessage{Statement: "x", Kind: MessageAICall})
	assert.Equal(t, []string{"a:x", "b:x"}, got)
}

// Package agent provides the foundational abstractions for gippity agents.
//
// This package serves as the public API for agent functionality:
//   - BaseStateMachine with per-agent transition tables and optional persistence
//   - the Task Request Protocol (RequestTask, RequestTaskDecoded) with its
//     retry-once policy and DecodeError failure class
//   - the LLM client factory selecting a gateway from configuration
//
// Provider gateways are kept private under internal/llmimpl.
package agent

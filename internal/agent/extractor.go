// Package agent implements the bounded conversational control loop shared by
// the agentic pipeline stages: model calls interleaved with tool execution,
// context compaction when the conversation grows too long, and structured
// result extraction through a mandatory return_result tool call.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/archlens/archlens/internal/llm"
)

// ChatModel is the outbound model interface the agent layer depends on.
// *llm.Client satisfies it; tests substitute a scripted implementation.
type ChatModel interface {
	Chat(ctx context.Context, conv *llm.Conversation, tools []llm.ToolSpec, forceTool string) (*llm.Reply, error)
}

// Extractor forces a model response into one machine-parseable record by
// binding a single return_result tool with tool choice hard-constrained to
// it. No free-text fallback exists: zero tool calls, extra tool calls, or a
// wrong tool are all ErrToolInvocation.
type Extractor struct {
	model ChatModel
}

// NewExtractor creates an extractor over the given model.
func NewExtractor(model ChatModel) *Extractor {
	return &Extractor{model: model}
}

// Extract sends the prompt and returns the raw result string the model
// submitted. If out is non-nil the result is additionally decoded into it as
// JSON; decode failures surface as *SchemaError and are not retried here.
func (e *Extractor) Extract(ctx context.Context, conv *llm.Conversation, out any) (string, error) {
	reply, err := e.model.Chat(ctx, conv, []llm.ToolSpec{ReturnResultSpec()}, TerminalToolName)
	if err != nil {
		return "", err
	}

	if len(reply.ToolCalls) == 0 {
		return "", fmt.Errorf("%w: no tools called", ErrToolInvocation)
	}
	if len(reply.ToolCalls) != 1 {
		return "", fmt.Errorf("%w: expected exactly one tool call, got %d", ErrToolInvocation, len(reply.ToolCalls))
	}
	call := reply.ToolCalls[0]
	if call.Name != TerminalToolName {
		return "", fmt.Errorf("%w: expected %s, got %s", ErrToolInvocation, TerminalToolName, call.Name)
	}

	result, err := parseTerminal(call)
	if err != nil {
		return "", err
	}

	if out != nil {
		if err := json.Unmarshal(result, out); err != nil {
			return "", &SchemaError{Err: err}
		}
	}
	return string(result), nil
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/archlens/archlens/internal/llm"
)

// DefaultMaxIterations bounds an agent loop when the caller does not.
const DefaultMaxIterations = 50

// LoopConfig parameterizes one loop execution. It is immutable for the
// duration of the run.
type LoopConfig struct {
	// Name tags log lines, e.g. "identify_service".
	Name string
	// MaxIterations is the iteration budget (default: DefaultMaxIterations).
	MaxIterations int
	// Dispatcher supplies and executes the non-terminal tools.
	Dispatcher *Dispatcher
}

// Loop is the bounded iterate-call-dispatch-continue state machine shared by
// the agentic stages. Each instance is strictly sequential: one in-flight
// model call at a time, because every iteration depends on the previous
// response. Distinct instances may run concurrently.
type Loop struct {
	model     ChatModel
	compactor *Compactor
}

// NewLoop creates a loop over the given model. The compactor uses the same
// model for its nested summarization calls.
func NewLoop(model ChatModel) *Loop {
	return &Loop{model: model, compactor: NewCompactor(model)}
}

// Run drives the conversation until the model invokes return_result or the
// iteration budget runs out. The raw result payload is returned; the
// conversation is owned by the caller and discarded after the run.
//
// Tool calls within one AI turn are processed in the order the model emitted
// them; the terminal tool short-circuits any remaining calls in the batch.
func (l *Loop) Run(ctx context.Context, conv *llm.Conversation, cfg LoopConfig) (json.RawMessage, error) {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("agent loop %q has no dispatcher", cfg.Name)
	}
	specs := cfg.Dispatcher.Specs()

	for i := 0; i < maxIter; i++ {
		slog.Info("agent iteration", "loop", cfg.Name, "round", i+1, "max", maxIter)

		reply, err := l.model.Chat(ctx, conv, specs, "")
		if err != nil {
			return nil, err
		}
		if len(reply.ToolCalls) == 0 {
			return nil, fmt.Errorf("%s: %w", cfg.Name, ErrNoToolCall)
		}

		conv.Append(reply.AsTurn())

		if _, err := l.compactor.Compact(ctx, conv); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}

		for _, call := range reply.ToolCalls {
			if call.ID == "" {
				return nil, fmt.Errorf("%s: %w: tool call has no id", cfg.Name, ErrToolInvocation)
			}

			if call.Name == TerminalToolName {
				slog.Info("agent returned result", "loop", cfg.Name, "rounds", i+1)
				return parseTerminal(call)
			}

			slog.Debug("agent tool call", "loop", cfg.Name, "tool", call.Name, "args", string(call.Args))
			observation := cfg.Dispatcher.Dispatch(ctx, call)
			conv.Append(llm.Turn{Role: llm.RoleTool, Text: observation, ToolCallID: call.ID})
		}
	}

	return nil, fmt.Errorf("%s: %w", cfg.Name, ErrExhausted)
}

// RunInto runs the loop and decodes the result payload into out, wrapping
// decode failures as *SchemaError.
func (l *Loop) RunInto(ctx context.Context, conv *llm.Conversation, cfg LoopConfig, out any) error {
	raw, err := l.Run(ctx, conv, cfg)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &SchemaError{Err: err}
	}
	return nil
}

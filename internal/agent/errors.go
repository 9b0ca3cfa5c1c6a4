package agent

import (
	"errors"
	"fmt"
)

// ErrNoToolCall is returned when a model response carries no tool invocation
// where one was mandatory. Tool-mediated behavior is a design requirement;
// a free-text answer is invalid, not a degraded success.
var ErrNoToolCall = errors.New("model response contained no tool calls")

// ErrToolInvocation is returned when the wrong number of tool calls, a tool
// call with an empty id, or an unexpected tool identity came back where
// exactly one specific call was required.
var ErrToolInvocation = errors.New("unexpected tool invocation")

// ErrExhausted is returned when the iteration budget ran out before the
// terminal tool was invoked.
var ErrExhausted = errors.New("agent iteration budget exhausted without a result")

// SchemaError wraps a JSON decode or validation failure of a returned
// payload. Not retried here; callers decide whether to retry.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("result payload failed schema validation: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archlens/archlens/internal/llm"
)

// fakeModel pops scripted replies in order. The mutex lets the compactor's
// nested calls share the script safely.
type fakeModel struct {
	mu      sync.Mutex
	replies []*llm.Reply
	calls   int
}

func (m *fakeModel) Chat(_ context.Context, _ *llm.Conversation, _ []llm.ToolSpec, _ string) (*llm.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.replies) == 0 {
		return nil, errors.New("script exhausted")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

func terminalReply(t *testing.T, result string) *llm.Reply {
	t.Helper()
	args, err := json.Marshal(map[string]string{"result": result})
	require.NoError(t, err)
	return &llm.Reply{ToolCalls: []llm.ToolCall{{ID: "t1", Name: TerminalToolName, Args: args}}}
}

func toolCallReply(name string, args string) *llm.Reply {
	return &llm.Reply{ToolCalls: []llm.ToolCall{{ID: "t1", Name: name, Args: json.RawMessage(args)}}}
}

// echoTool returns its "text" argument as the observation.
type echoTool struct{}

func (echoTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "echo",
		Description: "Echo the given text.",
		Properties:  map[string]any{"text": map[string]any{"type": "string"}},
		Required:    []string{"text"},
	}
}

func (echoTool) Execute(_ context.Context, args map[string]string) (string, error) {
	return args["text"], nil
}

// failTool always fails.
type failTool struct{}

func (failTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{Name: "fail", Description: "Always fails.", Properties: map[string]any{}}
}

func (failTool) Execute(context.Context, map[string]string) (string, error) {
	return "", errors.New("boom")
}

func newConv() *llm.Conversation {
	return llm.NewConversation(llm.System("instructions"), llm.Human("task"))
}

func TestLoopReturnsTerminalResult(t *testing.T) {
	model := &fakeModel{replies: []*llm.Reply{
		toolCallReply("echo", `{"text": "hello"}`),
		terminalReply(t, `{"answer": 42}`),
	}}

	conv := newConv()
	raw, err := NewLoop(model).Run(context.Background(), conv, LoopConfig{
		Name:       "test",
		Dispatcher: NewDispatcher(echoTool{}),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer": 42}`, string(raw))

	// The echo observation was fed back as a tool turn.
	var observation *llm.Turn
	for i := range conv.Turns {
		if conv.Turns[i].Role == llm.RoleTool {
			observation = &conv.Turns[i]
		}
	}
	require.NotNil(t, observation)
	assert.Equal(t, "hello", observation.Text)
	assert.Equal(t, "t1", observation.ToolCallID)

	// The terminal AI turn is kept in the history.
	assert.Equal(t, llm.RoleAI, conv.Turns[len(conv.Turns)-1].Role)
}

func TestLoopErrorsOnFreeTextAnswer(t *testing.T) {
	model := &fakeModel{replies: []*llm.Reply{{Text: "just chatting"}}}

	_, err := NewLoop(model).Run(context.Background(), newConv(), LoopConfig{
		Name:       "test",
		Dispatcher: NewDispatcher(),
	})
	require.ErrorIs(t, err, ErrNoToolCall)
}

func TestLoopExhaustsIterationBudget(t *testing.T) {
	var replies []*llm.Reply
	for i := 0; i < 5; i++ {
		replies = append(replies, toolCallReply("echo", `{"text": "again"}`))
	}
	model := &fakeModel{replies: replies}

	_, err := NewLoop(model).Run(context.Background(), newConv(), LoopConfig{
		Name:          "test",
		MaxIterations: 3,
		Dispatcher:    NewDispatcher(echoTool{}),
	})
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, model.calls)
}

func TestLoopFeedsToolFailureBackAsObservation(t *testing.T) {
	model := &fakeModel{replies: []*llm.Reply{
		toolCallReply("fail", `{}`),
		terminalReply(t, `{"ok": true}`),
	}}

	conv := newConv()
	_, err := NewLoop(model).Run(context.Background(), conv, LoopConfig{
		Name:       "test",
		Dispatcher: NewDispatcher(failTool{}),
	})
	require.NoError(t, err)

	var observation string
	for _, turn := range conv.Turns {
		if turn.Role == llm.RoleTool {
			observation = turn.Text
		}
	}
	assert.Equal(t, "Error: boom", observation)
}

func TestLoopUnknownToolBecomesObservation(t *testing.T) {
	model := &fakeModel{replies: []*llm.Reply{
		toolCallReply("no_such_tool", `{}`),
		terminalReply(t, `{}`),
	}}

	conv := newConv()
	_, err := NewLoop(model).Run(context.Background(), conv, LoopConfig{
		Name:       "test",
		Dispatcher: NewDispatcher(),
	})
	require.NoError(t, err)

	var observation string
	for _, turn := range conv.Turns {
		if turn.Role == llm.RoleTool {
			observation = turn.Text
		}
	}
	assert.Contains(t, observation, `Error: unknown tool "no_such_tool"`)
}

func TestLoopTerminalShortCircuitsBatch(t *testing.T) {
	args, err := json.Marshal(map[string]string{"result": `{"done": true}`})
	require.NoError(t, err)
	model := &fakeModel{replies: []*llm.Reply{{
		ToolCalls: []llm.ToolCall{
			{ID: "t1", Name: TerminalToolName, Args: args},
			{ID: "t2", Name: "echo", Args: json.RawMessage(`{"text": "never"}`)},
		},
	}}}

	conv := newConv()
	raw, err := NewLoop(model).Run(context.Background(), conv, LoopConfig{
		Name:       "test",
		Dispatcher: NewDispatcher(echoTool{}),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"done": true}`, string(raw))

	for _, turn := range conv.Turns {
		assert.NotEqual(t, llm.RoleTool, turn.Role)
	}
}

func TestLoopRejectsToolCallWithoutID(t *testing.T) {
	model := &fakeModel{replies: []*llm.Reply{{
		ToolCalls: []llm.ToolCall{{Name: "echo", Args: json.RawMessage(`{}`)}},
	}}}

	_, err := NewLoop(model).Run(context.Background(), newConv(), LoopConfig{
		Name:       "test",
		Dispatcher: NewDispatcher(echoTool{}),
	})
	require.ErrorIs(t, err, ErrToolInvocation)
}

func TestRunIntoDecodesResult(t *testing.T) {
	model := &fakeModel{replies: []*llm.Reply{terminalReply(t, `{"name": "svc"}`)}}

	var out struct {
		Name string `json:"name"`
	}
	err := NewLoop(model).RunInto(context.Background(), newConv(), LoopConfig{
		Name:       "test",
		Dispatcher: NewDispatcher(),
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "svc", out.Name)
}

func TestRunIntoWrapsDecodeFailure(t *testing.T) {
	model := &fakeModel{replies: []*llm.Reply{terminalReply(t, `not json at all`)}}

	var out map[string]any
	err := NewLoop(model).RunInto(context.Background(), newConv(), LoopConfig{
		Name:       "test",
		Dispatcher: NewDispatcher(),
	}, &out)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

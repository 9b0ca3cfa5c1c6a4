package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/archlens/archlens/internal/fswalk"
	"github.com/archlens/archlens/internal/llm"
)

// TerminalToolName is the designated tool whose invocation ends an agent loop
// and carries the final structured result.
const TerminalToolName = "return_result"

// Tool is one capability the model may invoke. Implementations return the
// observation text fed back into the conversation.
type Tool interface {
	Spec() llm.ToolSpec
	Execute(ctx context.Context, args map[string]string) (string, error)
}

// Dispatcher maps tool names to implementations. The table is open: new
// tools register without any change to the loop.
type Dispatcher struct {
	tools map[string]Tool
	order []string
}

// NewDispatcher builds a dispatch table over the given tools plus the
// implicit terminal tool spec.
func NewDispatcher(tools ...Tool) *Dispatcher {
	d := &Dispatcher{tools: make(map[string]Tool)}
	for _, t := range tools {
		d.Register(t)
	}
	return d
}

// Register adds or replaces a tool.
func (d *Dispatcher) Register(t Tool) {
	name := t.Spec().Name
	if _, exists := d.tools[name]; !exists {
		d.order = append(d.order, name)
	}
	d.tools[name] = t
}

// Specs returns the tool specs to bind to the model: every registered tool
// followed by the terminal return_result tool.
func (d *Dispatcher) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(d.tools)+1)
	for _, name := range d.order {
		specs = append(specs, d.tools[name].Spec())
	}
	specs = append(specs, ReturnResultSpec())
	return specs
}

// Dispatch executes one tool call and returns the observation text. Any
// execution failure, including an unknown tool name, is converted into an
// "Error: ..." observation so the model can see the failure and recover;
// a single bad call never aborts the conversation.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) string {
	tool, ok := d.tools[call.Name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}

	args, err := decodeArgs(call.Args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	out, err := tool.Execute(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}

// decodeArgs flattens a JSON argument object into string values. Non-string
// values are re-rendered as JSON so nothing is silently dropped.
func decodeArgs(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decoding tool arguments: %w", err)
	}

	args := make(map[string]string, len(generic))
	for k, v := range generic {
		switch val := v.(type) {
		case string:
			args[k] = val
		default:
			rendered, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("rendering tool argument %q: %w", k, err)
			}
			args[k] = string(rendered)
		}
	}
	return args, nil
}

// ReturnResultSpec describes the terminal tool. It has no Tool
// implementation; the loop intercepts it before dispatch.
func ReturnResultSpec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        TerminalToolName,
		Description: "Return the result of task in JSON format, use argument `result` to store the result.",
		Properties: map[string]any{
			"result": map[string]any{"type": "string", "description": "The result of task in JSON format"},
		},
		Required: []string{"result"},
	}
}

// terminalPayload is the argument shape of a return_result invocation.
type terminalPayload struct {
	Result string `json:"result"`
}

// parseTerminal extracts the result JSON string from a terminal tool call.
func parseTerminal(call llm.ToolCall) (json.RawMessage, error) {
	var payload terminalPayload
	if err := json.Unmarshal(call.Args, &payload); err != nil {
		return nil, &SchemaError{Err: fmt.Errorf("decoding return_result arguments: %w", err)}
	}
	return json.RawMessage(payload.Result), nil
}

// ListDirectoryTool renders a recursive textual tree of a directory.
type ListDirectoryTool struct{}

func (ListDirectoryTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "list_directory",
		Description: "List the items of given directory as a recursive tree.",
		Properties: map[string]any{
			"path": map[string]any{"type": "string", "description": "The directory to list"},
		},
		Required: []string{"path"},
	}
}

func (ListDirectoryTool) Execute(_ context.Context, args map[string]string) (string, error) {
	path, ok := args["path"]
	if !ok || path == "" {
		return "", fmt.Errorf("missing required argument `path`")
	}
	tree, _, err := fswalk.Tree(path)
	if err != nil {
		return "", err
	}
	return tree, nil
}

// ReadFileTool returns the raw content of a file.
type ReadFileTool struct{}

func (ReadFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "read_file",
		Description: "Get the content of a given file.",
		Properties: map[string]any{
			"path": map[string]any{"type": "string", "description": "The file to read"},
		},
		Required: []string{"path"},
	}
}

func (ReadFileTool) Execute(_ context.Context, args map[string]string) (string, error) {
	path, ok := args["path"]
	if !ok || path == "" {
		return "", fmt.Errorf("missing required argument `path`")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ToolNames lists the registered tool names, sorted, for logging.
func (d *Dispatcher) ToolNames() []string {
	names := make([]string, 0, len(d.tools))
	for name := range d.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

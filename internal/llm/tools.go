package llm

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
)

// ToolSpec describes one tool exposed to the model: its name, what it does,
// and the JSON schema of its arguments.
type ToolSpec struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// ToolCall is a single tool invocation parsed out of a model response.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Reply is what one model call produced: optional free text plus zero or more
// tool calls in the order the model emitted them.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// AsTurn converts the reply into an AI conversation turn.
func (r *Reply) AsTurn() Turn {
	return Turn{Role: RoleAI, Text: r.Text, ToolCalls: r.ToolCalls}
}

// anthropicTools converts tool specs into the SDK's union params.
func anthropicTools(specs []ToolSpec) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolParam, len(specs))
	for i, s := range specs {
		params[i] = anthropic.ToolParam{
			Name:        s.Name,
			Description: anthropic.String(s.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: s.Properties,
				Required:   s.Required,
			},
		}
	}

	tools := make([]anthropic.ToolUnionParam, len(params))
	for i := range params {
		// Copy to avoid taking the address of the loop variable
		tool := params[i]
		tools[i] = anthropic.ToolUnionParam{OfTool: &tool}
	}
	return tools
}

package llm

import (
	"fmt"
	"strings"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// Turn is one entry in a conversation. AI turns may carry tool calls; tool
// turns carry the observation text for the call identified by ToolCallID.
type Turn struct {
	Role       Role
	Text       string
	ToolCalls  []ToolCall // set on AI turns only
	ToolCallID string     // set on tool turns only
}

// Conversation is an ordered sequence of turns. The first PreambleLen turns
// are the fixed instruction preamble and are never summarized away; the
// compactor grows PreambleLen when it splices a summary turn in.
type Conversation struct {
	Turns       []Turn
	PreambleLen int
}

// NewConversation builds a conversation from an instruction preamble. Every
// initial turn is part of the preamble.
func NewConversation(preamble ...Turn) *Conversation {
	return &Conversation{Turns: preamble, PreambleLen: len(preamble)}
}

// Append adds turns at the end of the conversation.
func (c *Conversation) Append(turns ...Turn) {
	c.Turns = append(c.Turns, turns...)
}

// TailLen is the number of turns after the preamble.
func (c *Conversation) TailLen() int {
	return len(c.Turns) - c.PreambleLen
}

// Render formats turns as plain text, one block per turn. Used to hand a
// slice of history to the summarizer.
func RenderTurns(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "[%s] %s\n", t.Role, t.Text)
		for _, tc := range t.ToolCalls {
			fmt.Fprintf(&b, "[%s] called %s(%s)\n", t.Role, tc.Name, string(tc.Args))
		}
	}
	return b.String()
}

// System is shorthand for a system turn.
func System(text string) Turn { return Turn{Role: RoleSystem, Text: text} }

// Human is shorthand for a human turn.
func Human(text string) Turn { return Turn{Role: RoleHuman, Text: text} }

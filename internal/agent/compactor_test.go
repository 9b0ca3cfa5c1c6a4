package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archlens/archlens/internal/llm"
)

func longConversation(tail int) *llm.Conversation {
	conv := llm.NewConversation(llm.System("instructions"), llm.Human("task"))
	for i := 0; i < tail; i++ {
		conv.Append(llm.Turn{Role: llm.RoleAI, Text: fmt.Sprintf("step %d", i)})
	}
	return conv
}

func TestCompactorBelowThresholdIsNoop(t *testing.T) {
	model := &fakeModel{}
	conv := longConversation(compactThreshold)

	did, err := NewCompactor(model).Compact(context.Background(), conv)
	require.NoError(t, err)
	assert.False(t, did)
	assert.Equal(t, 0, model.calls)
}

func TestCompactorSplicesSummary(t *testing.T) {
	model := &fakeModel{replies: []*llm.Reply{terminalReply(t, "condensed history")}}
	conv := longConversation(compactThreshold + 1)
	before := len(conv.Turns)

	did, err := NewCompactor(model).Compact(context.Background(), conv)
	require.NoError(t, err)
	assert.True(t, did)

	// The window of oldest tail turns collapsed into one summary turn that
	// joined the preamble.
	assert.Equal(t, before-compactWindow+1, len(conv.Turns))
	assert.Equal(t, 3, conv.PreambleLen)

	summary := conv.Turns[2]
	assert.Equal(t, llm.RoleHuman, summary.Role)
	assert.Contains(t, summary.Text, "condensed history")

	// The original preamble is untouched.
	assert.Equal(t, "instructions", conv.Turns[0].Text)
	assert.Equal(t, "task", conv.Turns[1].Text)

	// The oldest surviving tail turn is the one right after the window.
	assert.Equal(t, fmt.Sprintf("step %d", compactWindow), conv.Turns[3].Text)
}

func TestCompactorRepeatedCyclesKeepPreamble(t *testing.T) {
	model := &fakeModel{replies: []*llm.Reply{
		terminalReply(t, "first summary"),
		terminalReply(t, "second summary"),
	}}
	conv := longConversation(compactThreshold + 1)
	c := NewCompactor(model)

	did, err := c.Compact(context.Background(), conv)
	require.NoError(t, err)
	require.True(t, did)

	// Grow the tail past the threshold again; the second cycle must not
	// summarize the first summary away.
	for conv.TailLen() <= compactThreshold {
		conv.Append(llm.Turn{Role: llm.RoleAI, Text: "more"})
	}
	did, err = c.Compact(context.Background(), conv)
	require.NoError(t, err)
	require.True(t, did)

	assert.Equal(t, 4, conv.PreambleLen)
	assert.Contains(t, conv.Turns[2].Text, "first summary")
	assert.Contains(t, conv.Turns[3].Text, "second summary")
}

func TestCompactorSummarizationFailureIsFatal(t *testing.T) {
	model := &fakeModel{} // empty script: the nested call fails
	conv := longConversation(compactThreshold + 1)

	_, err := NewCompactor(model).Compact(context.Background(), conv)
	require.Error(t, err)
}

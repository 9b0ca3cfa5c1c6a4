package agent

import (
	"context"
	"fmt"

	"github.com/archlens/archlens/internal/llm"
)

const (
	// compactThreshold is the number of post-preamble turns that triggers
	// compaction.
	compactThreshold = 25
	// compactWindow is how many of the oldest post-preamble turns are
	// replaced by one summary turn per compaction.
	compactWindow = 10
)

const summarizeSystemPrompt = `# Task Instructions
You are an AI assistant specializing in the field of computer science. You will receive a text related to the computer science domain along with a brief introduction to its content. Due to the extensive nature of the content, it exceeds the maximum context length that large language models can process in a single interaction. Your task is to distill and condense this text, retaining only the key information (which is shown below) while removing irrelevant and redundant details. Specific requirements are as follows:

- When condensing the text, ensure the accuracy of the original statements. There should be no omissions or errors.
- Unless data format is specified, reply with natural language. If given text is segmented by multiple blocks, return text blocks with the same format.
- Please note that content related to the topics listed below must be retained, DON'T LOSE ANY DETAILS ABOUT THEM!
` + "```\n%s\n```"

// SummarizePrompt builds the condensation prompt used both for chat-history
// compaction and for shrinking oversized retrieval results.
func SummarizePrompt(brief, content, keyTopics string) *llm.Conversation {
	return llm.NewConversation(
		llm.System(fmt.Sprintf(summarizeSystemPrompt, keyTopics)),
		llm.Human(fmt.Sprintf("# Brief Description on Given Text\n%s\n\n# Text Content\n%s", brief, content)),
	)
}

// Compactor bounds conversation growth: once the post-preamble tail exceeds
// the threshold, the oldest window of turns is condensed into one synthetic
// human turn via a nested extractor call. The summary joins the preamble so
// summarized history is never summarized again, and the original instruction
// turns are never touched.
type Compactor struct {
	extractor *Extractor
}

// NewCompactor creates a compactor that summarizes through the given model.
func NewCompactor(model ChatModel) *Compactor {
	return &Compactor{extractor: NewExtractor(model)}
}

// Compact applies one compaction cycle if the conversation is over the
// threshold. Returns whether a compaction happened. A summarization failure
// is fatal for the enclosing loop; there is no partial compaction.
func (c *Compactor) Compact(ctx context.Context, conv *llm.Conversation) (bool, error) {
	if conv.TailLen() <= compactThreshold {
		return false, nil
	}

	head := conv.PreambleLen
	window := conv.Turns[head : head+compactWindow]
	rest := conv.Turns[head+compactWindow:]

	prompt := SummarizePrompt(
		"This text includes a list of chat history messages from a human and a LLM.",
		llm.RenderTurns(window),
		"Summarize the whole process of chat history, make sure the behaviour that each message has done is fully, precisely and clearly stated.",
	)
	summary, err := c.extractor.Extract(ctx, prompt, nil)
	if err != nil {
		return false, fmt.Errorf("summarizing chat history: %w", err)
	}

	spliced := make([]llm.Turn, 0, head+1+len(rest))
	spliced = append(spliced, conv.Turns[:head]...)
	spliced = append(spliced, llm.Human("# Previous chat history\n\n"+summary))
	spliced = append(spliced, rest...)

	conv.Turns = spliced
	conv.PreambleLen = head + 1
	return true, nil
}

// Package llm wraps the Anthropic chat API behind a small conversation-based
// interface: an ordered turn list in, free text plus tool calls out. Retry,
// rate limiting, and concurrency capping for outbound calls all live here so
// callers never deal with transport failures directly.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultModel is used when the configuration does not name one.
const DefaultModel = "claude-sonnet-4-5-20250929"

// Config holds client construction options.
type Config struct {
	APIKey      string  // falls back to ANTHROPIC_API_KEY
	BaseURL     string  // optional override
	Model       string  // default: DefaultModel
	MaxTokens   int     // default: 4096
	Temperature float64 // default: 0.0 (most deterministic)

	Retry RetryConfig // zero value means DefaultRetryConfig

	// RequestsPerMinute throttles outbound calls; 0 disables throttling.
	RequestsPerMinute int
	// MaxConcurrentCalls caps in-flight calls across all goroutines;
	// 0 disables the cap.
	MaxConcurrentCalls int
}

// Client is a chat client bound to one model. Safe for concurrent use.
type Client struct {
	client      *anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	retry       RetryConfig
	limiter     *rate.Limiter
	sem         *semaphore.Weighted
}

// New creates a client. The API key is required, either in cfg or in the
// ANTHROPIC_API_KEY environment variable.
func New(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}
	var sem *semaphore.Weighted
	if cfg.MaxConcurrentCalls > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls))
	}

	return &Client{
		client:      &client,
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: cfg.Temperature,
		retry:       retry,
		limiter:     limiter,
		sem:         sem,
	}, nil
}

// Chat sends the conversation with the given tool set bound and returns the
// model's reply. If forceTool is non-empty, tool choice is hard-constrained
// to that tool so the model cannot answer in free text.
func (c *Client) Chat(ctx context.Context, conv *Conversation, tools []ToolSpec, forceTool string) (*Reply, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquiring call slot: %w", err)
		}
		defer c.sem.Release(1)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
	}
	params.System, params.Messages = convertTurns(conv.Turns)

	if len(tools) > 0 {
		params.Tools = anthropicTools(tools)
	}
	if forceTool != "" {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: forceTool},
		}
	}

	var response *anthropic.Message
	err := c.retryWithBackoff(ctx, "chat", func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, params)
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	return parseReply(response), nil
}

// convertTurns splits the turn list into system blocks and chat messages in
// the shape the Anthropic API expects: tool observations travel as tool_result
// blocks inside user messages, AI turns are replayed with their tool_use
// blocks attached.
func convertTurns(turns []Turn) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: t.Text})
		case RoleHuman:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		case RoleAI:
			var blocks []anthropic.ContentBlockParamUnion
			if t.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(t.Text))
			}
			for _, tc := range t.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(tc.Args), tc.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(t.ToolCallID, t.Text, false)))
		}
	}
	return system, messages
}

// parseReply extracts free text and tool calls, preserving emission order.
func parseReply(msg *anthropic.Message) *Reply {
	reply := &Reply{}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			reply.Text += variant.Text
		case anthropic.ToolUseBlock:
			// The SDK surfaces Input as raw JSON; re-marshal so the
			// conversion holds regardless of the concrete type.
			args, err := json.Marshal(variant.Input)
			if err != nil {
				args = []byte("{}")
			}
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:   variant.ID,
				Name: variant.Name,
				Args: args,
			})
		}
	}
	return reply
}

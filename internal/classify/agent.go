package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	claudecode "github.com/severity1/claude-agent-sdk-go"
)

// AgentClient classifies passages through the local Claude Code CLI.
type AgentClient struct {
	model string
}

// NewAgentClient probes for the Claude Code CLI. Returns nil when the CLI
// is not installed.
func NewAgentClient() *AgentClient {
	ctx := context.Background()
	iterator, err := claudecode.Query(ctx, "echo test",
		claudecode.WithModel("sonnet"),
		claudecode.WithMaxTurns(1),
	)
	if iterator != nil {
		iterator.Close()
	}
	if err != nil && claudecode.IsCLINotFoundError(err) {
		return nil
	}
	return &AgentClient{model: "sonnet"}
}

func (c *AgentClient) Name() string { return "claude-agent" }

// Complete sends one prompt and concatenates the assistant's text blocks.
func (c *AgentClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: claude agent not initialized (CLI not available)", ErrServiceUnavailable)
	}

	iterator, err := claudecode.Query(ctx, prompt,
		claudecode.WithModel(c.model),
		claudecode.WithMaxTurns(1),
	)
	if err != nil {
		return "", fmt.Errorf("%w: claude agent: %v", ErrServiceUnavailable, err)
	}
	defer iterator.Close()

	var b strings.Builder
	for {
		message, err := iterator.Next(ctx)
		if err != nil {
			if errors.Is(err, claudecode.ErrNoMoreMessages) {
				break
			}
			return "", fmt.Errorf("%w: reading claude agent reply: %v", ErrServiceUnavailable, err)
		}

		if assistantMsg, ok := message.(*claudecode.AssistantMessage); ok {
			for _, block := range assistantMsg.Content {
				if textBlock, ok := block.(*claudecode.TextBlock); ok {
					b.WriteString(textBlock.Text)
				}
			}
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty reply from claude agent", ErrMalformedResponse)
	}
	return b.String(), nil
}

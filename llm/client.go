// Client - Simple completion wrapper around providers.

package llm

import (
	"context"
	"fmt"
)

// Client wraps a Provider with a plain-text completion interface. The
// narration generator depends on this shape rather than on any concrete
// provider.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Complete sends a system prompt plus user prompt and returns the text of
// the completion.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := []ChatMessage{
		UserMessage(prompt),
	}
	if system != "" {
		messages = append([]ChatMessage{SystemMessage(system)}, messages...)
	}

	response, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	if response.Content == "" {
		return "", fmt.Errorf("empty completion from %s", c.provider.Name())
	}
	return response.Content, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

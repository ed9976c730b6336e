// Package summarizer adapts the OpenAI client to the completion interface
// the digest pipeline consumes.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"discord-digest-bot/internal/domain"
	openai "discord-digest-bot/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI implements domain.Completer via OpenAI Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

var _ domain.Completer = (*OpenAI)(nil)

// NewOpenAI creates a completer bound to one model.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

// Complete sends one system+user exchange and returns the generated text.
func (o *OpenAI) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: system},
			{Role: openai.RoleUser, Content: user},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

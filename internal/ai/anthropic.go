package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Provider using the Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  anthropic.Model
}

func NewAnthropic(apiKey, model string) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = "claude-haiku-4-5"
	}
	return &AnthropicClient{client: &client, model: anthropic.Model(model)}
}

func (c *AnthropicClient) Complete(ctx context.Context, p Prompt) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
		defer cancel()
	}
	maxTokens := int64(p.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	system := p.System
	if p.JSON {
		system = strings.TrimSpace(system + "\nOutput as JSON only, no other text.")
	}
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if p.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.Temperature))
	}
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", classify(apiErr.StatusCode, fmt.Errorf("anthropic API error: %w", err))
		}
		return "", classify(0, fmt.Errorf("anthropic API error: %w", err))
	}
	if len(resp.Content) == 0 {
		return "", errors.New("no response from anthropic")
	}
	var b strings.Builder
	for _, block := range resp.Content {
		b.WriteString(block.Text)
	}
	return b.String(), nil
}

package ai

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Provider using the OpenAI Chat Completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional
}

func newOpenAIClient(cfg Config) *openai.Client {
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		return openai.NewClientWithConfig(cc)
	}
	return openai.NewClient(cfg.APIKey)
}

func NewOpenAI(cfg Config) *OpenAIClient {
	if cfg.Model == "" {
		panic("OpenAI model must be specified")
	}
	return &OpenAIClient{client: newOpenAIClient(cfg), model: cfg.Model}
}

func (o *OpenAIClient) Complete(ctx context.Context, p Prompt) (string, error) {
	// Default timeout guard, if caller didn't set one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
		defer cancel()
	}
	var msgs []openai.ChatCompletionMessage
	if p.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}
	if p.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classify(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classify(reqErr.HTTPStatusCode, err)
	}
	return classify(0, err)
}

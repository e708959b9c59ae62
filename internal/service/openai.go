package service

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/arbiterhq/arbiter/internal/model"
)

// OpenAIBackend implements LLMBackend over any OpenAI-compatible endpoint
// (OpenAI itself, or OpenRouter via a custom base URL).
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates the LLM transport.
func NewOpenAIBackend(cfg model.ServiceConfig) (*OpenAIBackend, error) {
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		clientConfig.BaseURL = cfg.LLMBaseURL
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.LLMModel,
	}, nil
}

// Model returns the configured model name.
func (b *OpenAIBackend) Model() string {
	return b.model
}

// Complete issues one chat completion.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion response")
	}

	return &Response{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// classifyOpenAIError marks client-side API errors as permanent so the retry
// loop does not repeat a request the provider will reject again.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode > 0 && !RetryableStatus(apiErr.HTTPStatusCode) && apiErr.HTTPStatusCode < 500 {
			return Permanent(err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode > 0 && !RetryableStatus(reqErr.HTTPStatusCode) && reqErr.HTTPStatusCode < 500 {
			return Permanent(err)
		}
	}

	return err
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

type openAIProvider struct {
	client *openai.Client
	cfg    *config.LLMConfig
}

func newOpenAIProvider(cfg *config.LLMConfig) *openAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

func (p *openAIProvider) defaultModel() string {
	return p.cfg.Model
}

func (p *openAIProvider) complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: models.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
			MaxTokens:        req.MaxTokens,
		},
	}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %s", ErrProviderError, apiErr.Message)
		default:
			return fmt.Errorf("openai request rejected: %w", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrProviderError, err)
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

type anthropicProvider struct {
	client anthropic.Client
	cfg    *config.LLMConfig
}

func newAnthropicProvider(cfg *config.LLMConfig) *anthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}
}

func (p *anthropicProvider) defaultModel() string {
	return p.cfg.Model
}

func (p *anthropicProvider) complete(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	prompt := int(msg.Usage.InputTokens)
	completion := int(msg.Usage.OutputTokens)
	return &Response{
		Content: sb.String(),
		Model:   string(msg.Model),
		Usage: models.TokenUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
			MaxTokens:        req.MaxTokens,
		},
	}, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrProviderError, err)
		default:
			return fmt.Errorf("anthropic request rejected: %w", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrProviderError, err)
}

// Package llm talks to OpenAI-compatible chat completion endpoints and turns
// their answers into structured review data.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

// ChatClient sends one chat completion request and returns the raw text of
// the first choice.
type ChatClient interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

type openAIClient struct {
	api         *openai.Client
	temperature float32
	maxTokens   int
}

// NewChatClient builds a client for any OpenAI-compatible endpoint. An empty
// BaseURL means the official OpenAI API.
func NewChatClient(cfg config.AIConfig) ChatClient {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &openAIClient{
		api:         openai.NewClientWithConfig(apiCfg),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
	}
}

func (c *openAIClient) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Dispatcher routes one completion to the primary model and falls back to the
// secondary model exactly once when the primary fails. Both failing yields
// ErrModelUnavailable.
type Dispatcher struct {
	client   ChatClient
	primary  string
	fallback string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewDispatcher(client ChatClient, cfg config.AIConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:   client,
		primary:  cfg.DefaultModel,
		fallback: cfg.FallbackModel,
		timeout:  cfg.RequestTimeout,
		logger:   logger,
	}
}

// Dispatch sends the prompt and returns the raw response together with the
// model that produced it. The model argument overrides the configured primary
// when non-empty.
func (d *Dispatcher) Dispatch(ctx context.Context, model, systemPrompt, userPrompt string) (string, string, error) {
	primary := d.primary
	if model != "" {
		primary = model
	}

	content, err := d.complete(ctx, primary, systemPrompt, userPrompt)
	if err == nil {
		return content, primary, nil
	}
	if ctx.Err() != nil {
		return "", "", core.WrapError(core.ErrReviewTimedOut, "model call cut off", ctx.Err())
	}

	if d.fallback == "" || d.fallback == primary {
		return "", "", core.WrapError(core.ErrModelUnavailable, "model "+primary+" failed and no fallback is configured", err)
	}

	d.logger.Warn("primary model failed, trying fallback", "primary", primary, "fallback", d.fallback, "error", err)
	content, fbErr := d.complete(ctx, d.fallback, systemPrompt, userPrompt)
	if fbErr != nil {
		if ctx.Err() != nil {
			return "", "", core.WrapError(core.ErrReviewTimedOut, "model call cut off", ctx.Err())
		}
		return "", "", core.WrapError(core.ErrModelUnavailable, "both "+primary+" and "+d.fallback+" failed", errors.Join(err, fbErr))
	}
	return content, d.fallback, nil
}

func (d *Dispatcher) complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.client.Complete(ctx, model, systemPrompt, userPrompt)
}

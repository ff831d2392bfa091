// Package ai wraps the optional chat-completion assistant. It sits outside
// the ticket lifecycle: stateless request/response, a failure is reported to
// the caller and never retried.
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/ideahatch/booking-bot/internal/config"
	"github.com/ideahatch/booking-bot/pkg/util"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("assistant is not configured")

// Client calls the completion API.
type Client struct {
	api    openai.Client
	apiKey string
	model  string
	logger *zap.Logger
}

// New builds the client. With no API key the client stays disabled and every
// Ask reports ErrDisabled; the rest of the bot is unaffected.
func New(cfg config.AIConfig, logger *zap.Logger) *Client {
	c := &Client{apiKey: strings.TrimSpace(cfg.APIKey), model: cfg.Model, logger: logger}
	if c.apiKey == "" {
		logger.Info("assistant disabled: no API key configured")
		return c
	}
	c.api = openai.NewClient(option.WithAPIKey(c.apiKey))
	logger.Info("assistant configured", zap.String("model", c.model))
	return c
}

// Enabled reports whether an API key was configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Ask runs one completion for prompt.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(0.6),
		MaxCompletionTokens: openai.Int(800),
	})
	if err != nil {
		c.logger.Warn("completion failed", zap.Error(err))
		return "", util.NewUpstreamFailure("assistant error: "+c.sanitize(err.Error()), nil)
	}
	if len(resp.Choices) == 0 {
		return "", util.NewUpstreamFailure("assistant returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// sanitize keeps the API key out of user-facing error text.
func (c *Client) sanitize(msg string) string {
	if c.apiKey == "" {
		return msg
	}
	return strings.ReplaceAll(msg, c.apiKey, "***")
}

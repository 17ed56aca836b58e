package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// OpenAI is a Completer backed by any OpenAI-compatible chat endpoint.
type OpenAI struct {
	client openai.Client
	opts   Options
	logger *zap.Logger
}

// NewOpenAI returns nil when no API key is configured; the parser then runs
// on its pattern fallback alone.
func NewOpenAI(opts Options, logger *zap.Logger) *OpenAI {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &OpenAI{
		client: openai.NewClient(clientOpts...),
		opts:   opts,
		logger: logger,
	}
}

func (o *OpenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       o.opts.Model,
		Messages:    messages,
		Temperature: openai.Float(o.opts.Temperature),
		MaxTokens:   openai.Int(o.opts.MaxTokens),
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		o.logger.Warn("completion failed",
			zap.String("model", o.opts.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	o.logger.Debug("completion done", zap.String("model", o.opts.Model), zap.Duration("elapsed", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}

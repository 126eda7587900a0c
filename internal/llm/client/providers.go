package client

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"google.golang.org/genai"
)

// defaultMaxTokens bounds the response when the model catalog does not
// specify a limit.
const defaultMaxTokens = 8192

type ClaudeModelOptions struct {
	Model     string
	MaxTokens int
}

type OpenAIModelOptions struct {
	Model     string
	MaxTokens int
}

type GeminiModelOptions struct {
	Model     string
	MaxTokens int
}

func NewClaudeClient(ctx context.Context, apiKey string, opts ClaudeModelOptions) (*RefineClient, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	chatModel, err := claude.NewChatModel(ctx, &claude.Config{
		APIKey:    apiKey,
		Model:     opts.Model,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create claude chat model: %w", err)
	}
	return NewRefineClient(chatModel), nil
}

func NewOpenAIClient(ctx context.Context, apiKey string, opts OpenAIModelOptions) (*RefineClient, error) {
	cfg := &openai.ChatModelConfig{
		APIKey: apiKey,
		Model:  opts.Model,
	}
	if opts.MaxTokens > 0 {
		maxTokens := opts.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai chat model: %w", err)
	}
	return NewRefineClient(chatModel), nil
}

func NewGeminiClient(ctx context.Context, apiKey string, opts GeminiModelOptions) (*RefineClient, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	cfg := &gemini.Config{
		Client: genaiClient,
		Model:  opts.Model,
	}
	if opts.MaxTokens > 0 {
		maxTokens := opts.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	chatModel, err := gemini.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini chat model: %w", err)
	}
	return NewRefineClient(chatModel), nil
}

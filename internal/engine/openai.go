package engine

import (
	"context"
	"fmt"

	"github.com/huangang/codecritic/internal/config"
	"github.com/huangang/codecritic/pkg/logger"
	"github.com/sashabaranov/go-openai"
)

// openAICompleter handles OpenAI, OpenAI-compatible endpoints and Azure OpenAI.
type openAICompleter struct {
	label       string
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func newOpenAICompleter(cfg *config.AIConfig) *openAICompleter {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &openAICompleter{
		label:       "OpenAI",
		client:      openai.NewClientWithConfig(clientConfig),
		model:       orDefault(cfg.Model, defaultOpenAIModel),
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

// newAzureCompleter expects base_url https://{resource-name}.openai.azure.com; model is the deployment name.
func newAzureCompleter(cfg *config.AIConfig) *openAICompleter {
	return &openAICompleter{
		label:       "Azure OpenAI",
		client:      openai.NewClientWithConfig(openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)),
		model:       orDefault(cfg.Model, defaultOpenAIModel),
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *openAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		logger.Infof("[Engine] %s API error: %v", c.label, err)
		return "", fmt.Errorf("%s API error: %w", c.label, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", c.label)
	}
	return resp.Choices[0].Message.Content, nil
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/huangang/codecritic/internal/config"
	"github.com/huangang/codecritic/pkg/logger"
	"github.com/ollama/ollama/api"
)

type ollamaCompleter struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
}

func newOllamaCompleter(cfg *config.AIConfig) *ollamaCompleter {
	return &ollamaCompleter{
		baseURL:     orDefault(cfg.BaseURL, "http://localhost:11434"),
		model:       orDefault(cfg.Model, defaultOllamaModel),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *ollamaCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	client := api.NewClient(u, http.DefaultClient)

	var content strings.Builder
	err = client.Chat(ctx, &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Format: json.RawMessage(`"json"`),
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		logger.Infof("[Engine] Ollama API error: %v", err)
		return "", fmt.Errorf("Ollama API error: %w", err)
	}

	return content.String(), nil
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangang/codecritic/internal/config"
	"github.com/huangang/codecritic/pkg/logger"
	"google.golang.org/genai"
)

type geminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

func newGeminiCompleter(ctx context.Context, cfg *config.AIConfig) (*geminiCompleter, error) {
	c := &geminiCompleter{
		model:       orDefault(cfg.Model, defaultGeminiModel),
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
	}
	// Without a key the client cannot be built; reviews then fail and /health reports it.
	if cfg.APIKey == "" {
		return c, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("Gemini client error: %w", err)
	}
	c.client = client
	return c, nil
}

func (c *geminiCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.client == nil {
		return "", errors.New("Gemini API key is not configured")
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
		MaxOutputTokens:   c.maxTokens,
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		logger.Infof("[Engine] Gemini API error: %v", err)
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	return resp.Text(), nil
}

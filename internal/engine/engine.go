package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangang/codecritic/internal/config"
	"github.com/huangang/codecritic/internal/models"
	"github.com/huangang/codecritic/pkg/logger"
)

// ErrReviewFailed matches every error returned by Engine.Review.
var ErrReviewFailed = errors.New("AI review failed")

// ReviewFailedError carries the reason a review could not be produced.
type ReviewFailedError struct {
	Reason string
}

func (e *ReviewFailedError) Error() string {
	return "AI review failed: " + e.Reason
}

func (e *ReviewFailedError) Is(target error) bool {
	return target == ErrReviewFailed
}

func failed(format string, args ...interface{}) error {
	return &ReviewFailedError{Reason: fmt.Sprintf(format, args...)}
}

// Engine produces a structured critique of one code snippet. Implementations do not retry.
type Engine interface {
	Review(ctx context.Context, code string, language models.Language) (*models.ReviewResult, error)
	// HasCredentials reports whether the provider credential is configured.
	HasCredentials() bool
	Provider() string
}

// Completer sends one system/user prompt pair to a model and returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

const (
	defaultOpenAIModel    = "gpt-3.5-turbo"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultOllamaModel    = "llama3"
	defaultGeminiModel    = "gemini-2.0-flash"
)

// New builds the engine selected by cfg.Provider.
func New(ctx context.Context, cfg *config.AIConfig) (Engine, error) {
	hasKey := cfg.APIKey != ""

	var (
		completer Completer
		err       error
	)
	switch cfg.Provider {
	case "", "openai":
		completer = newOpenAICompleter(cfg)
	case "azure":
		completer = newAzureCompleter(cfg)
	case "anthropic":
		completer = newAnthropicCompleter(cfg)
	case "ollama":
		completer = newOllamaCompleter(cfg)
		hasKey = true
	case "gemini":
		completer, err = newGeminiCompleter(ctx, cfg)
	case "stub":
		return NewStub(nil, nil), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return NewLLMEngine(provider, completer, cfg.Timeout, hasKey), nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// LLMEngine reviews code by prompting a language model and validating its JSON reply.
type LLMEngine struct {
	provider  string
	completer Completer
	timeout   time.Duration
	hasKey    bool
}

var _ Engine = (*LLMEngine)(nil)

func NewLLMEngine(provider string, completer Completer, timeout time.Duration, hasKey bool) *LLMEngine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMEngine{provider: provider, completer: completer, timeout: timeout, hasKey: hasKey}
}

func (e *LLMEngine) Provider() string     { return e.provider }
func (e *LLMEngine) HasCredentials() bool { return e.hasKey }

func (e *LLMEngine) Review(ctx context.Context, code string, language models.Language) (*models.ReviewResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	content, err := e.completer.Complete(ctx, SystemPrompt, BuildUserPrompt(code, language))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, failed("%s request timed out after %s", e.provider, e.timeout)
		}
		return nil, failed("%v", err)
	}
	logger.Infof("[Engine] %s response length: %d chars in %s", e.provider, len(content), time.Since(start).Round(time.Millisecond))

	result, err := ParseResult(content)
	if err != nil {
		logger.Warn().Err(err).Str("provider", e.provider).Msg("[Engine] rejected model response")
		return nil, failed("%v", err)
	}
	return result, nil
}

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/huangang/codecritic/internal/models"
)

// Stub is an offline engine that returns a fixed result or a fixed failure.
type Stub struct {
	result *models.ReviewResult
	err    error
}

var _ Engine = (*Stub)(nil)

// NewStub returns an engine that fails with err when set, returns result when set, and
// otherwise produces a neutral review derived from the snippet.
func NewStub(result *models.ReviewResult, err error) *Stub {
	return &Stub{result: result, err: err}
}

func (s *Stub) Provider() string     { return "stub" }
func (s *Stub) HasCredentials() bool { return true }

func (s *Stub) Review(ctx context.Context, code string, language models.Language) (*models.ReviewResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, failed("%v", err)
	}
	if s.err != nil {
		return nil, failed("%v", s.err)
	}
	if s.result != nil {
		clone := *s.result
		clone.Normalize()
		return &clone, nil
	}

	lines := strings.Count(strings.TrimRight(code, "\n"), "\n") + 1
	result := &models.ReviewResult{
		QualityScore: 7,
		Summary:      fmt.Sprintf("Stub review of %d line(s) of %s code.", lines, language),
	}
	result.Normalize()
	return result, nil
}

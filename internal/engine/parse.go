package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/huangang/codecritic/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// rawResult mirrors models.ReviewResult with pointers so absent fields can be told apart from zero values.
type rawResult struct {
	QualityScore               *int              `json:"quality_score" validate:"required,min=1,max=10"`
	Feedback                   []models.Feedback `json:"feedback" validate:"required,dive"`
	SecurityConcerns           []string          `json:"security_concerns" validate:"required"`
	PerformanceRecommendations []string          `json:"performance_recommendations" validate:"required"`
	Summary                    *string           `json:"summary" validate:"required"`
}

// ParseResult decodes a model reply into a ReviewResult. The reply must be a single JSON
// object, optionally wrapped in a Markdown code fence, that satisfies the result schema.
func ParseResult(content string) (*models.ReviewResult, error) {
	payload := stripCodeFence(content)
	if payload == "" {
		return nil, errors.New("empty response from model")
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()

	var raw rawResult
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in model response: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid JSON in model response: unexpected data after object")
	}

	if err := validate.Struct(&raw); err != nil {
		return nil, schemaError(err)
	}

	result := &models.ReviewResult{
		QualityScore:               *raw.QualityScore,
		Feedback:                   raw.Feedback,
		SecurityConcerns:           raw.SecurityConcerns,
		PerformanceRecommendations: raw.PerformanceRecommendations,
		Summary:                    *raw.Summary,
	}
	result.Normalize()
	return result, nil
}

func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(s[:nl]), "{") {
		// drop the info string, e.g. ```json
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func schemaError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("model response violates schema: %w", err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "min", "max":
			parts = append(parts, fmt.Sprintf("%s must be between 1 and 10 (got %v)", field, fe.Value()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("model response violates schema: %s", strings.Join(parts, "; "))
}

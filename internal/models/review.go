package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReviewStatus string

const (
	StatusPending    ReviewStatus = "pending"
	StatusProcessing ReviewStatus = "processing"
	StatusCompleted  ReviewStatus = "completed"
	StatusFailed     ReviewStatus = "failed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []ReviewStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

func (s ReviewStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s ReviewStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Predecessors returns the statuses a record may hold immediately before moving to s.
func (s ReviewStatus) Predecessors() []ReviewStatus {
	switch s {
	case StatusProcessing:
		return []ReviewStatus{StatusPending}
	case StatusCompleted:
		return []ReviewStatus{StatusProcessing}
	case StatusFailed:
		// pending -> failed only happens when the task could not be scheduled
		return []ReviewStatus{StatusPending, StatusProcessing}
	default:
		return nil
	}
}

type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
	LanguageCPP        Language = "cpp"
	LanguageCSharp     Language = "csharp"
	LanguageGo         Language = "go"
	LanguageRust       Language = "rust"
	LanguageTypeScript Language = "typescript"
)

var AllLanguages = []Language{
	LanguagePython,
	LanguageJavaScript,
	LanguageJava,
	LanguageCPP,
	LanguageCSharp,
	LanguageGo,
	LanguageRust,
	LanguageTypeScript,
}

func (l Language) IsValid() bool {
	for _, v := range AllLanguages {
		if l == v {
			return true
		}
	}
	return false
}

// Feedback is a single issue raised by the reviewer.
type Feedback struct {
	Issue      string `json:"issue" validate:"required"`
	Suggestion string `json:"suggestion" validate:"required"`
	Severity   string `json:"severity" validate:"required"`
}

// ReviewResult is the structured critique returned by the engine.
type ReviewResult struct {
	QualityScore               int        `json:"quality_score"`
	Feedback                   []Feedback `json:"feedback"`
	SecurityConcerns           []string   `json:"security_concerns"`
	PerformanceRecommendations []string   `json:"performance_recommendations"`
	Summary                    string     `json:"summary"`
}

// Normalize replaces nil lists with empty ones so they serialise as [].
func (r *ReviewResult) Normalize() {
	if r.Feedback == nil {
		r.Feedback = []Feedback{}
	}
	if r.SecurityConcerns == nil {
		r.SecurityConcerns = []string{}
	}
	if r.PerformanceRecommendations == nil {
		r.PerformanceRecommendations = []string{}
	}
}

// Review is one submitted code snippet and its review lifecycle.
type Review struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	Title        *string       `gorm:"size:100" json:"title"`
	Code         string        `gorm:"type:text;not null" json:"code"`
	Language     Language      `gorm:"size:20;not null;index" json:"language"`
	Status       ReviewStatus  `gorm:"size:20;not null;index;default:pending" json:"status"`
	SubmittedAt  time.Time     `gorm:"not null;index" json:"submitted_at"`
	StartedAt    *time.Time    `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at"`
	Result       *ReviewResult `gorm:"-" json:"result"`
	ErrorMessage *string       `gorm:"type:text" json:"error_message"`
	IPAddress    *string       `gorm:"size:64" json:"ip_address,omitempty"`

	// ResultJSON is the persisted form of Result.
	ResultJSON datatypes.JSON `gorm:"column:result" json:"-"`
	// QualityScore mirrors Result.QualityScore for portable aggregation.
	QualityScore *int `gorm:"index" json:"-"`
}

func (Review) TableName() string { return "reviews" }

// EncodeResult returns the column values that persist result.
func EncodeResult(result *ReviewResult) (datatypes.JSON, *int, error) {
	if result == nil {
		return nil, nil, nil
	}
	result.Normalize()
	data, err := json.Marshal(result)
	if err != nil {
		return nil, nil, fmt.Errorf("encode review result: %w", err)
	}
	score := result.QualityScore
	return datatypes.JSON(data), &score, nil
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.Result == nil {
		return nil
	}
	data, score, err := EncodeResult(r.Result)
	if err != nil {
		return err
	}
	r.ResultJSON = data
	r.QualityScore = score
	return nil
}

func (r *Review) AfterFind(tx *gorm.DB) error {
	if len(r.ResultJSON) == 0 || string(r.ResultJSON) == "null" {
		r.Result = nil
		return nil
	}
	var result ReviewResult
	if err := json.Unmarshal(r.ResultJSON, &result); err != nil {
		return fmt.Errorf("decode review %s result: %w", r.ID, err)
	}
	result.Normalize()
	r.Result = &result
	return nil
}

package store

import (
	"time"

	"github.com/huangang/codecritic/internal/models"
	"gorm.io/gorm"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type ReviewQueryFilter BaseQuerier

func NewReviewQueryFilter() *ReviewQueryFilter {
	return &ReviewQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *ReviewQueryFilter) ByStatus(status models.ReviewStatus) *ReviewQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
	return f
}

func (f *ReviewQueryFilter) ByLanguage(language models.Language) *ReviewQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("language = ?", language)
	})
	return f
}

// StartedBefore matches records whose processing began before t.
func (f *ReviewQueryFilter) StartedBefore(t time.Time) *ReviewQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("started_at IS NOT NULL AND started_at < ?", t)
	})
	return f
}

func (f *ReviewQueryFilter) apply(tx *gorm.DB) *gorm.DB {
	if f == nil {
		return tx
	}
	for _, fn := range f.QueryFn {
		tx = fn(tx)
	}
	return tx
}

// ReviewUpdate lists the fields to change on a record. Nil fields are left untouched.
type ReviewUpdate struct {
	Status       *models.ReviewStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Result       *models.ReviewResult
	ErrorMessage *string
}

func (u ReviewUpdate) columns() (map[string]interface{}, error) {
	values := make(map[string]interface{})
	if u.Status != nil {
		values["status"] = *u.Status
	}
	if u.StartedAt != nil {
		values["started_at"] = *u.StartedAt
	}
	if u.CompletedAt != nil {
		values["completed_at"] = *u.CompletedAt
	}
	if u.Result != nil {
		data, score, err := models.EncodeResult(u.Result)
		if err != nil {
			return nil, err
		}
		values["result"] = data
		values["quality_score"] = *score
	}
	if u.ErrorMessage != nil {
		values["error_message"] = *u.ErrorMessage
	}
	return values, nil
}

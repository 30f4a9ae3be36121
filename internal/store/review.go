package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangang/codecritic/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MaxPageSize = 100

// Review is the persistence contract for review records.
type Review interface {
	Insert(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id string) (*models.Review, error)
	List(ctx context.Context, filter *ReviewQueryFilter, skip, limit int) ([]models.Review, error)
	UpdateFields(ctx context.Context, id string, update ReviewUpdate) error
	Count(ctx context.Context, filter *ReviewQueryFilter) (int64, error)
	AverageQualityScore(ctx context.Context) (float64, error)
	Ping(ctx context.Context) error
}

type ReviewStore struct {
	db *gorm.DB
}

var _ Review = (*ReviewStore)(nil)

func NewReviewStore(db *gorm.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

func (s *ReviewStore) Insert(ctx context.Context, review *models.Review) error {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(review)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting review: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDuplicateKey
	}
	return nil
}

func (s *ReviewStore) FindByID(ctx context.Context, id string) (*models.Review, error) {
	var review models.Review
	if err := s.db.WithContext(ctx).First(&review, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying review: %w", err)
	}
	return &review, nil
}

func (s *ReviewStore) List(ctx context.Context, filter *ReviewQueryFilter, skip, limit int) ([]models.Review, error) {
	if skip < 0 || limit < 1 || limit > MaxPageSize {
		return nil, ErrInvalidPage
	}

	reviews := make([]models.Review, 0, limit)
	tx := filter.apply(s.db.WithContext(ctx).Model(&models.Review{}))
	if err := tx.Order("submitted_at DESC").Order("id DESC").
		Offset(skip).Limit(limit).Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	return reviews, nil
}

// UpdateFields applies the non-nil fields of update. A status change is only written when the
// stored status is a legal predecessor, so concurrent writers can never move a record backwards.
func (s *ReviewStore) UpdateFields(ctx context.Context, id string, update ReviewUpdate) error {
	values, err := update.columns()
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	tx := s.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", id)
	if update.Status != nil {
		tx = tx.Where("status IN ?", update.Status.Predecessors())
	}

	result := tx.Updates(values)
	if result.Error != nil {
		return fmt.Errorf("updating review %s: %w", id, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Nothing matched: tell an unknown id apart from a rejected transition.
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("checking review %s: %w", id, err)
	}
	if count == 0 {
		return ErrRecordNotFound
	}
	if update.Status != nil {
		return ErrInvalidTransition
	}
	// Field-only update with unchanged values (mysql reports 0 affected rows).
	return nil
}

func (s *ReviewStore) Count(ctx context.Context, filter *ReviewQueryFilter) (int64, error) {
	var count int64
	tx := filter.apply(s.db.WithContext(ctx).Model(&models.Review{}))
	if err := tx.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting reviews: %w", err)
	}
	return count, nil
}

func (s *ReviewStore) AverageQualityScore(ctx context.Context) (float64, error) {
	var avg float64
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("status = ? AND quality_score IS NOT NULL", models.StatusCompleted).
		Select("COALESCE(AVG(quality_score), 0)").
		Scan(&avg).Error
	if err != nil {
		return 0, fmt.Errorf("averaging quality score: %w", err)
	}
	return avg, nil
}

func (s *ReviewStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

package services

import (
	"context"
	"math"

	"github.com/huangang/codecritic/internal/models"
	"github.com/huangang/codecritic/internal/store"
)

type StatsService struct {
	store store.Review
}

func NewStatsService(st store.Review) *StatsService {
	return &StatsService{store: st}
}

// Stats is a point-in-time aggregate; the counts come from separate queries and need not agree
// exactly while reviews are moving.
type Stats struct {
	TotalReviews        int64                         `json:"total_reviews"`
	ByStatus            map[models.ReviewStatus]int64 `json:"by_status"`
	ByLanguage          map[models.Language]int64     `json:"by_language"`
	AverageQualityScore float64                       `json:"average_quality_score"`
}

func (s *StatsService) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:   make(map[models.ReviewStatus]int64, len(models.AllStatuses)),
		ByLanguage: make(map[models.Language]int64, len(models.AllLanguages)),
	}

	total, err := s.store.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	stats.TotalReviews = total

	for _, status := range models.AllStatuses {
		n, err := s.store.Count(ctx, store.NewReviewQueryFilter().ByStatus(status))
		if err != nil {
			return nil, err
		}
		stats.ByStatus[status] = n
	}

	for _, language := range models.AllLanguages {
		n, err := s.store.Count(ctx, store.NewReviewQueryFilter().ByLanguage(language))
		if err != nil {
			return nil, err
		}
		stats.ByLanguage[language] = n
	}

	avg, err := s.store.AverageQualityScore(ctx)
	if err != nil {
		return nil, err
	}
	stats.AverageQualityScore = math.Round(avg*100) / 100

	return stats, nil
}

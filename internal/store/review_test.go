package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/huangang/codecritic/internal/config"
	"github.com/huangang/codecritic/internal/models"
	"github.com/huangang/codecritic/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.ReviewStore {
	t.Helper()
	db, err := models.OpenDB(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { _ = models.CloseDB(db) })
	return store.NewReviewStore(db)
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newPending(id string, lang models.Language, offset time.Duration) *models.Review {
	return &models.Review{
		ID:          id,
		Code:        "print('hi')",
		Language:    lang,
		Status:      models.StatusPending,
		SubmittedAt: baseTime.Add(offset),
	}
}

func statusPtr(s models.ReviewStatus) *models.ReviewStatus { return &s }
func timePtr(t time.Time) *time.Time                       { return &t }
func strPtr(s string) *string                              { return &s }

func TestReviewStore_InsertAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	review := newPending("r-1", models.LanguagePython, 0)
	review.Title = strPtr("Hello")
	require.NoError(t, s.Insert(ctx, review))

	got, err := s.FindByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.LanguagePython, got.Language)
	require.NotNil(t, got.Title)
	assert.Equal(t, "Hello", *got.Title)
	assert.True(t, got.SubmittedAt.Equal(baseTime))
	assert.Nil(t, got.Result)
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestReviewStore_InsertDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newPending("dup", models.LanguageGo, 0)))
	err := s.Insert(ctx, newPending("dup", models.LanguageRust, time.Second))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	got, err := s.FindByID(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, models.LanguageGo, got.Language, "original record must be untouched")
}

func TestReviewStore_FindUnknown(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestReviewStore_ListOrderingAndPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		lang := models.LanguagePython
		if i%2 == 1 {
			lang = models.LanguageGo
		}
		require.NoError(t, s.Insert(ctx, newPending(fmt.Sprintf("r-%d", i), lang, time.Duration(i)*time.Second)))
	}

	all, err := s.List(ctx, nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "r-4", all[0].ID)
	assert.Equal(t, "r-0", all[4].ID)

	page, err := s.List(ctx, nil, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "r-3", page[0].ID)
	assert.Equal(t, "r-2", page[1].ID)

	goOnly, err := s.List(ctx, store.NewReviewQueryFilter().ByLanguage(models.LanguageGo), 0, 10)
	require.NoError(t, err)
	require.Len(t, goOnly, 2)
	assert.Equal(t, "r-3", goOnly[0].ID)

	past, err := s.List(ctx, nil, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestReviewStore_ListInvalidPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, tc := range []struct{ skip, limit int }{{-1, 10}, {0, 0}, {0, 101}} {
		_, err := s.List(ctx, nil, tc.skip, tc.limit)
		assert.ErrorIs(t, err, store.ErrInvalidPage, "skip=%d limit=%d", tc.skip, tc.limit)
	}
}

func TestReviewStore_ForwardTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newPending("r-1", models.LanguageJava, 0)))

	// pending -> completed skips processing
	err := s.UpdateFields(ctx, "r-1", store.ReviewUpdate{Status: statusPtr(models.StatusCompleted)})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	started := baseTime.Add(time.Second)
	require.NoError(t, s.UpdateFields(ctx, "r-1", store.ReviewUpdate{
		Status:    statusPtr(models.StatusProcessing),
		StartedAt: &started,
	}))

	completed := baseTime.Add(2 * time.Second)
	result := &models.ReviewResult{
		QualityScore: 8,
		Feedback:     []models.Feedback{{Issue: "naming", Suggestion: "rename x", Severity: "low"}},
		Summary:      "solid",
	}
	require.NoError(t, s.UpdateFields(ctx, "r-1", store.ReviewUpdate{
		Status:      statusPtr(models.StatusCompleted),
		CompletedAt: &completed,
		Result:      result,
	}))

	// terminal: no way back
	for _, status := range []models.ReviewStatus{models.StatusPending, models.StatusProcessing, models.StatusFailed} {
		err := s.UpdateFields(ctx, "r-1", store.ReviewUpdate{Status: statusPtr(status)})
		assert.ErrorIs(t, err, store.ErrInvalidTransition, "completed -> %s", status)
	}

	got, err := s.FindByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 8, got.Result.QualityScore)
	assert.Equal(t, "naming", got.Result.Feedback[0].Issue)
	assert.NotNil(t, got.Result.SecurityConcerns)
	assert.Empty(t, got.Result.SecurityConcerns)
	assert.Nil(t, got.ErrorMessage)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	assert.False(t, got.StartedAt.Before(got.SubmittedAt))
	assert.False(t, got.CompletedAt.Before(*got.StartedAt))
}

func TestReviewStore_UpdateUnknown(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateFields(context.Background(), "missing", store.ReviewUpdate{Status: statusPtr(models.StatusProcessing)})
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	err = s.UpdateFields(context.Background(), "missing", store.ReviewUpdate{ErrorMessage: strPtr("x")})
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestReviewStore_EmptyUpdateIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.UpdateFields(context.Background(), "anything", store.ReviewUpdate{}))
}

func TestReviewStore_ConcurrentTerminalWritesOneWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newPending("race", models.LanguageCPP, 0)))
	require.NoError(t, s.UpdateFields(ctx, "race", store.ReviewUpdate{
		Status:    statusPtr(models.StatusProcessing),
		StartedAt: timePtr(baseTime.Add(time.Second)),
	}))

	updates := []store.ReviewUpdate{
		{Status: statusPtr(models.StatusCompleted), CompletedAt: timePtr(baseTime.Add(2 * time.Second)), Result: &models.ReviewResult{QualityScore: 5, Summary: "ok"}},
		{Status: statusPtr(models.StatusFailed), CompletedAt: timePtr(baseTime.Add(2 * time.Second)), ErrorMessage: strPtr("AI review failed: timeout")},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(updates))
	for i := range updates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.UpdateFields(ctx, "race", updates[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, store.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := s.FindByID(ctx, "race")
	require.NoError(t, err)
	assert.True(t, got.Status.IsTerminal())
	assert.True(t, (got.Result != nil) != (got.ErrorMessage != nil), "exactly one of result and error_message")
}

func TestReviewStore_CountAndAverage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	avg, err := s.AverageQualityScore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)

	for i, score := range []int{7, 8} {
		id := fmt.Sprintf("done-%d", i)
		require.NoError(t, s.Insert(ctx, newPending(id, models.LanguagePython, time.Duration(i)*time.Second)))
		require.NoError(t, s.UpdateFields(ctx, id, store.ReviewUpdate{Status: statusPtr(models.StatusProcessing), StartedAt: timePtr(baseTime.Add(time.Minute))}))
		require.NoError(t, s.UpdateFields(ctx, id, store.ReviewUpdate{
			Status:      statusPtr(models.StatusCompleted),
			CompletedAt: timePtr(baseTime.Add(2 * time.Minute)),
			Result:      &models.ReviewResult{QualityScore: score, Summary: "s"},
		}))
	}
	require.NoError(t, s.Insert(ctx, newPending("waiting", models.LanguageGo, time.Hour)))

	total, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	completed, err := s.Count(ctx, store.NewReviewQueryFilter().ByStatus(models.StatusCompleted))
	require.NoError(t, err)
	assert.Equal(t, int64(2), completed)

	goPending, err := s.Count(ctx, store.NewReviewQueryFilter().ByLanguage(models.LanguageGo).ByStatus(models.StatusPending))
	require.NoError(t, err)
	assert.Equal(t, int64(1), goPending)

	avg, err = s.AverageQualityScore(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, avg, 0.0001)
}

func TestReviewStore_StartedBeforeFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newPending("old", models.LanguagePython, 0)))
	require.NoError(t, s.Insert(ctx, newPending("new", models.LanguagePython, time.Second)))
	require.NoError(t, s.UpdateFields(ctx, "old", store.ReviewUpdate{Status: statusPtr(models.StatusProcessing), StartedAt: timePtr(baseTime.Add(time.Minute))}))
	require.NoError(t, s.UpdateFields(ctx, "new", store.ReviewUpdate{Status: statusPtr(models.StatusProcessing), StartedAt: timePtr(baseTime.Add(time.Hour))}))

	stale, err := s.List(ctx, store.NewReviewQueryFilter().ByStatus(models.StatusProcessing).StartedBefore(baseTime.Add(30*time.Minute)), 0, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)
}

func TestReviewStore_Ping(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

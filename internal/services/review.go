package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/huangang/codecritic/internal/engine"
	"github.com/huangang/codecritic/internal/models"
	"github.com/huangang/codecritic/internal/store"
	"github.com/huangang/codecritic/pkg/logger"
)

const (
	MaxCodeLength  = 10000
	MaxTitleLength = 100

	DefaultPageSize = 10
)

var (
	// ErrInvalidReview wraps every submission and listing validation failure.
	ErrInvalidReview = errors.New("invalid review request")
	// ErrSchedulingFailed means the record was created but no background task could be queued.
	ErrSchedulingFailed = errors.New("review could not be scheduled")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidReview, fmt.Sprintf(format, args...))
}

type SubmitReviewRequest struct {
	Code     string          `json:"code"`
	Language models.Language `json:"language"`
	Title    *string         `json:"title"`
}

// Validate checks lengths in Unicode code points.
func (r *SubmitReviewRequest) Validate() error {
	if n := utf8.RuneCountInString(r.Code); n < 1 || n > MaxCodeLength {
		return invalid("code must be between 1 and %d characters", MaxCodeLength)
	}
	if !r.Language.IsValid() {
		return invalid("language must be one of %s", joinLanguages())
	}
	if r.Title != nil && utf8.RuneCountInString(*r.Title) > MaxTitleLength {
		return invalid("title must be at most %d characters", MaxTitleLength)
	}
	return nil
}

func joinLanguages() string {
	names := make([]string, len(models.AllLanguages))
	for i, l := range models.AllLanguages {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

type ListReviewsRequest struct {
	Skip     int                 `form:"skip" binding:"min=0"`
	Limit    *int                `form:"limit" binding:"omitempty,min=1,max=100"`
	Status   models.ReviewStatus `form:"status"`
	Language models.Language     `form:"language"`
}

func (r *ListReviewsRequest) filter() (*store.ReviewQueryFilter, int, error) {
	limit := DefaultPageSize
	if r.Limit != nil {
		limit = *r.Limit
	}
	if r.Skip < 0 || limit < 1 || limit > store.MaxPageSize {
		return nil, 0, invalid("skip must be >= 0 and limit between 1 and %d", store.MaxPageSize)
	}

	f := store.NewReviewQueryFilter()
	if r.Status != "" {
		if !r.Status.IsValid() {
			return nil, 0, invalid("unknown status %q", r.Status)
		}
		f.ByStatus(r.Status)
	}
	if r.Language != "" {
		if !r.Language.IsValid() {
			return nil, 0, invalid("unknown language %q", r.Language)
		}
		f.ByLanguage(r.Language)
	}
	return f, limit, nil
}

// ReviewService drives each review through pending -> processing -> completed|failed.
type ReviewService struct {
	store   store.Review
	engine  engine.Engine
	queue   TaskQueue
	events  *SSEHub
	metrics *Metrics
	now     func() time.Time
}

func NewReviewService(st store.Review, eng engine.Engine, queue TaskQueue, events *SSEHub, metrics *Metrics) *ReviewService {
	return &ReviewService{
		store:   st,
		engine:  eng,
		queue:   queue,
		events:  events,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a pending review and schedules it. It returns as soon as the task is queued.
func (s *ReviewService) Submit(ctx context.Context, req *SubmitReviewRequest, clientIP string) (*models.Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	review := &models.Review{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Code:        req.Code,
		Language:    req.Language,
		Status:      models.StatusPending,
		SubmittedAt: s.now(),
	}
	if clientIP != "" {
		review.IPAddress = &clientIP
	}

	if err := s.store.Insert(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	s.metrics.reviewSubmitted(string(review.Language))
	s.publish(review)

	task := &ReviewTask{ReviewID: review.ID, Code: review.Code, Language: review.Language}
	if err := s.queue.Enqueue(task); err != nil {
		logger.ForReview(review.ID).Error().Err(err).Msg("[Review] Failed to enqueue review task")
		s.failUnscheduled(review, err)
		return nil, fmt.Errorf("%w: %v", ErrSchedulingFailed, err)
	}

	logger.ForReview(review.ID).Info().
		Str("language", string(review.Language)).
		Int("chars", utf8.RuneCountInString(review.Code)).
		Msg("[Review] Review submitted")
	return review, nil
}

// failUnscheduled moves a review that never reached the queue straight to failed.
func (s *ReviewService) failUnscheduled(review *models.Review, cause error) {
	msg := "failed to schedule review: " + cause.Error()
	now := s.now()
	status := models.StatusFailed

	// The request context may already be cancelled; this write must still happen.
	err := s.store.UpdateFields(context.Background(), review.ID, store.ReviewUpdate{
		Status:       &status,
		CompletedAt:  &now,
		ErrorMessage: &msg,
	})
	if err != nil {
		s.metrics.storeFailure("schedule_failed")
		logger.ForReview(review.ID).Error().Err(err).Msg("[Review] Failed to record scheduling failure")
		return
	}
	review.Status = status
	review.CompletedAt = &now
	review.ErrorMessage = &msg
	s.metrics.reviewFinished(string(status))
	s.publish(review)
}

// Process is the background unit for one task. Engine failures are recorded on the review;
// the returned error only reports store failures, which are not retried.
func (s *ReviewService) Process(ctx context.Context, task *ReviewTask) error {
	log := logger.ForReview(task.ReviewID)
	started := s.now()
	processing := models.StatusProcessing
	err := s.store.UpdateFields(ctx, task.ReviewID, store.ReviewUpdate{Status: &processing, StartedAt: &started})
	switch {
	case errors.Is(err, store.ErrInvalidTransition):
		// Redelivered task, or the review already failed elsewhere.
		log.Warn().Msg("[Review] Review is no longer pending, skipping")
		return nil
	case err != nil:
		s.metrics.storeFailure("processing")
		return fmt.Errorf("mark review %s processing: %w", task.ReviewID, err)
	}
	s.events.Publish(ReviewEvent{ID: task.ReviewID, Status: processing, Language: task.Language, At: started})

	result, reviewErr := s.runEngine(ctx, task)

	finished := s.now()
	if finished.Before(started) {
		finished = started
	}
	update := store.ReviewUpdate{CompletedAt: &finished}
	status := models.StatusCompleted
	var errMsg string
	if reviewErr != nil {
		status = models.StatusFailed
		errMsg = reviewErr.Error()
		update.ErrorMessage = &errMsg
		log.Warn().Err(reviewErr).Msg("[Review] Review failed")
	} else {
		update.Result = result
	}
	update.Status = &status

	err = s.store.UpdateFields(ctx, task.ReviewID, update)
	switch {
	case errors.Is(err, store.ErrInvalidTransition):
		// The stale sweep already failed this review; its terminal state stands.
		log.Warn().Str("outcome", string(status)).Msg("[Review] Review was superseded while processing, result discarded")
		return nil
	case err != nil:
		s.metrics.storeFailure(string(status))
		return fmt.Errorf("mark review %s %s: %w", task.ReviewID, status, err)
	}
	s.metrics.reviewFinished(string(status))

	event := ReviewEvent{ID: task.ReviewID, Status: status, Language: task.Language, Error: errMsg, At: finished}
	if result != nil && reviewErr == nil {
		score := result.QualityScore
		event.QualityScore = &score
	}
	s.events.Publish(event)

	log.Info().Str("status", string(status)).Msg("[Review] Review finished")
	return nil
}

// runEngine calls the engine and folds panics and empty results into review failures.
func (s *ReviewService) runEngine(ctx context.Context, task *ReviewTask) (result *models.ReviewResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &engine.ReviewFailedError{Reason: fmt.Sprintf("engine panicked: %v", r)}
		}
		s.metrics.observeEngine(time.Since(start), err)
	}()

	result, err = s.engine.Review(ctx, task.Code, task.Language)
	if err == nil && result == nil {
		err = &engine.ReviewFailedError{Reason: "engine returned no result"}
	}
	if err != nil && !errors.Is(err, engine.ErrReviewFailed) {
		err = &engine.ReviewFailedError{Reason: err.Error()}
	}
	return result, err
}

func (s *ReviewService) Get(ctx context.Context, id string) (*models.Review, error) {
	return s.store.FindByID(ctx, id)
}

func (s *ReviewService) List(ctx context.Context, req *ListReviewsRequest) ([]models.Review, error) {
	filter, limit, err := req.filter()
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, filter, req.Skip, limit)
}

// FailStale marks reviews stuck in processing since before cutoff as failed and returns how many
// were moved. Each move is a conditional transition, so a review finishing concurrently wins.
func (s *ReviewService) FailStale(ctx context.Context, cutoff time.Time) (int, error) {
	filter := store.NewReviewQueryFilter().ByStatus(models.StatusProcessing).StartedBefore(cutoff)
	moved := 0
	for {
		batch, err := s.store.List(ctx, filter, 0, store.MaxPageSize)
		if err != nil {
			return moved, err
		}

		progressed := false
		for i := range batch {
			review := &batch[i]
			now := s.now()
			status := models.StatusFailed
			msg := fmt.Sprintf("review abandoned: still processing after %s", now.Sub(*review.StartedAt).Round(time.Second))
			err := s.store.UpdateFields(ctx, review.ID, store.ReviewUpdate{Status: &status, CompletedAt: &now, ErrorMessage: &msg})
			if errors.Is(err, store.ErrInvalidTransition) {
				continue
			}
			if err != nil {
				return moved, err
			}
			progressed = true
			moved++
			review.Status = status
			review.ErrorMessage = &msg
			s.metrics.reviewFinished(string(status))
			s.publish(review)
		}

		if len(batch) < store.MaxPageSize || !progressed {
			return moved, nil
		}
	}
}

func (s *ReviewService) publish(review *models.Review) {
	s.events.Publish(newReviewEvent(review, s.now()))
}

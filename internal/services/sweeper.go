package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/huangang/codecritic/pkg/logger"
	"github.com/robfig/cron/v3"
)

// StaleReviewSweeper periodically fails reviews left in processing by a crashed worker.
type StaleReviewSweeper struct {
	reviews    *ReviewService
	staleAfter time.Duration
	cron       *cron.Cron
	mu         sync.Mutex
	running    bool
}

func NewStaleReviewSweeper(reviews *ReviewService, staleAfter time.Duration) *StaleReviewSweeper {
	return &StaleReviewSweeper{
		reviews:    reviews,
		staleAfter: staleAfter,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

func (s *StaleReviewSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if _, err := s.cron.AddFunc("@every 1m", s.run); err != nil {
		return fmt.Errorf("schedule stale review sweep: %w", err)
	}
	s.cron.Start()
	s.running = true
	logger.Infof("[Sweeper] Failing reviews stuck in processing for more than %s", s.staleAfter)
	return nil
}

func (s *StaleReviewSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
}

func (s *StaleReviewSweeper) run() {
	if _, err := s.Sweep(context.Background()); err != nil {
		logger.Errorf("[Sweeper] Stale review sweep failed: %v", err)
	}
}

// Sweep runs one pass and returns the number of reviews marked failed.
func (s *StaleReviewSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.reviews.now().Add(-s.staleAfter)
	n, err := s.reviews.FailStale(ctx, cutoff)
	if n > 0 {
		logger.Warnf("[Sweeper] Marked %d stale review(s) failed", n)
	}
	return n, err
}

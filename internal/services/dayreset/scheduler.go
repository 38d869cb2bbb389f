package dayreset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"restaurant-pos/internal/logger"
)

const dateLayout = "2006-01-02"

// Resetter clears the archive of one branch
type Resetter interface {
	ResetDay(ctx context.Context, branch string) error
}

// Scheduler polls the calendar date and resets every branch once per day
type Scheduler struct {
	resetter Resetter
	guard    Guard
	branches []string
	interval time.Duration
	location *time.Location
	logger   *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastDate string
}

// NewScheduler creates a scheduler. The current date counts as already
// reset, so a restart during the day never clears the archive.
func NewScheduler(resetter Resetter, guard Guard, branches []string, interval time.Duration, loc *time.Location, log *logger.Logger, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		resetter: resetter,
		guard:    guard,
		branches: branches,
		interval: interval,
		location: loc,
		logger:   log,
		now:      now,
	}
	s.lastDate = s.today()
	return s
}

// Start runs the polling loop until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("day_reset_scheduler_started", "Day reset scheduler started", "", map[string]interface{}{
		"interval_seconds": s.interval.Seconds(),
		"branches":         s.branches,
		"last_reset_date":  s.lastDate,
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("day_reset_scheduler_stopped", "Day reset scheduler stopped", "", nil)
			return nil
		case <-ticker.C:
			if _, err := s.Check(ctx); err != nil {
				s.logger.Error("day_reset_failed", "Day reset check failed", "", err, nil)
			}
		}
	}
}

// Check resets every branch when the date has changed since the last reset
// and reports how many branches this process reset. A branch whose reset
// fails is retried on the next check.
func (s *Scheduler) Check(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	if today == s.lastDate {
		return 0, nil
	}

	requestID := logger.GenerateRequestID()
	ctx = logger.WithRequestID(ctx, requestID)
	var (
		reset    int
		firstErr error
	)
	for _, branch := range s.branches {
		claimed, err := s.guard.Claim(ctx, branch, today)
		if err != nil {
			firstErr = keepFirst(firstErr, fmt.Errorf("claim %s: %w", branch, err))
			continue
		}
		if !claimed {
			s.logger.Debug("day_reset_skipped", "Day already reset elsewhere", requestID, map[string]interface{}{
				"branch": branch,
				"date":   today,
			})
			continue
		}
		if err := s.resetter.ResetDay(ctx, branch); err != nil {
			if rerr := s.guard.Release(ctx, branch, today); rerr != nil {
				s.logger.Warn("day_reset_release_failed", "Failed to release day reset claim", requestID, map[string]interface{}{
					"branch": branch,
					"error":  rerr.Error(),
				})
			}
			firstErr = keepFirst(firstErr, fmt.Errorf("reset %s: %w", branch, err))
			continue
		}
		reset++
	}
	if firstErr != nil {
		return reset, firstErr
	}

	s.logger.Info("day_reset_completed", "New day detected, archives reset", requestID, map[string]interface{}{
		"previous_date": s.lastDate,
		"date":          today,
		"branches":      reset,
	})
	s.lastDate = today
	return reset, nil
}

// ResetAll clears every branch immediately without consulting the guard
func (s *Scheduler) ResetAll(ctx context.Context) error {
	for _, branch := range s.branches {
		if err := s.resetter.ResetDay(ctx, branch); err != nil {
			return fmt.Errorf("reset %s: %w", branch, err)
		}
	}
	return nil
}

func (s *Scheduler) today() string {
	return s.now().In(s.location).Format(dateLayout)
}

func keepFirst(current, err error) error {
	if current != nil {
		return current
	}
	return err
}

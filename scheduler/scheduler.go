// Package scheduler runs the periodic synchronize sweep over active categories.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/league-engine/repositories"
	"github.com/Dosada05/league-engine/services"
	"github.com/robfig/cron/v3"
)

// CategorySource lists categories worth synchronizing.
type CategorySource interface {
	ListActiveIDs(ctx context.Context, exec repositories.SQLExecutor) ([]int, error)
}

type Synchronizer interface {
	Synchronize(ctx context.Context, categoryID int) (*services.SynchronizeResult, error)
}

type Scheduler struct {
	cron       *cron.Cron
	categories CategorySource
	progress   Synchronizer
	logger     *slog.Logger
	mu         sync.Mutex
	isRunning  bool
	jobID      cron.EntryID
	scheduled  bool
	sweepLimit time.Duration
}

func New(categories CategorySource, progress Synchronizer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		categories: categories,
		progress:   progress,
		logger:     logger,
		sweepLimit: 5 * time.Minute,
	}
}

// ScheduleSync registers the sweep under a cron expression such as
// "@every 10m" or "0 */2 * * *".
func (s *Scheduler) ScheduleSync(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if s.scheduled {
		s.cron.Remove(s.jobID)
	}

	id, err := s.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.sweepLimit)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("synchronize sweep failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add synchronize job %q: %w", expr, err)
	}
	s.jobID = id
	s.scheduled = true
	s.logger.Info("scheduled synchronize sweep", slog.String("cron", expr))
	return nil
}

// Sweep synchronizes every active category once. A failing category is
// logged and skipped; the joined errors are returned at the end.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	ids, err := s.categories.ListActiveIDs(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to list active categories: %w", err)
	}

	var errs []error
	synced := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := s.progress.Synchronize(ctx, id)
		if err != nil {
			s.logger.Warn("category synchronize failed", slog.Int("category_id", id), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("category %d: %w", id, err))
			continue
		}
		synced++
		if res.TeamsProgressed > 0 || res.TeamsRanked > 0 {
			s.logger.Info("category synchronized",
				slog.Int("category_id", id),
				slog.Int("teams_progressed", res.TeamsProgressed),
				slog.Int("teams_ranked", res.TeamsRanked),
			)
		}
	}
	return synced, errors.Join(errs...)
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if !s.scheduled {
		return fmt.Errorf("no jobs scheduled")
	}
	s.cron.Start()
	s.isRunning = true
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("scheduler stopped")
}

// NextRun is zero when nothing is scheduled or the scheduler is stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning || !s.scheduled {
		return time.Time{}
	}
	return s.cron.Entry(s.jobID).Next
}

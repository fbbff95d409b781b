// Package scheduler runs tasks on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/numatrix/numatrix/internal/logger"
)

// Scheduler runs tasks on standard five-field cron specs (descriptors such
// as @daily and @every 1h are also accepted) in a fixed timezone. A task is
// skipped if its previous invocation is still running.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	location *time.Location
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a scheduler in the named IANA timezone.
func New(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{cron: c, location: loc, ctx: ctx, cancel: cancel}, nil
}

// Schedule registers task under spec. The context passed to task is
// cancelled by Stop.
func (s *Scheduler) Schedule(spec string, task func(ctx context.Context)) error {
	if task == nil {
		return errors.New("task must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Scheduled task panicked: %v", r)
			}
		}()
		task(s.ctx)
	}); err != nil {
		return fmt.Errorf("add cron %q: %w", spec, err)
	}
	return nil
}

// Next returns the next activation time across all tasks, or the zero time
// when nothing is scheduled or the scheduler has not started.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

// Location returns the scheduler timezone.
func (s *Scheduler) Location() *time.Location {
	return s.location
}

// Start begins cron execution in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running tasks' context and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

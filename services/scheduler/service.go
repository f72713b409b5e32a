// Package scheduler runs the incremental syncs on a fixed interval so the
// local mirror keeps up with upstream changes between manual rebuilds.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"stagehall/services/syncer"
)

type syncService interface {
	SyncProductions(ctx context.Context) (syncer.Result, error)
	SyncEvents(ctx context.Context) (syncer.Result, error)
}

var _ syncService = (*syncer.Service)(nil)

// Service manages scheduled sync execution.
type Service struct {
	syncer   syncService
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// taskRunning prevents a slow run from overlapping the next tick.
	taskMu      sync.Mutex
	taskRunning map[string]bool
}

// NewService creates a scheduler that triggers the incremental syncs every
// interval.
func NewService(syncSvc syncService, interval time.Duration) *Service {
	return &Service{
		syncer:      syncSvc,
		interval:    interval,
		taskRunning: make(map[string]bool),
	}
}

// Start begins the scheduler loop. Calling Start on a running scheduler is
// a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.interval <= 0 {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	log.Printf("[scheduler] started, interval %s", s.interval)
}

// Stop shuts the scheduler down and waits for an in-flight run to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	log.Printf("[scheduler] stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTask(ctx, "productions", func(ctx context.Context) (syncer.Result, error) {
				return s.syncer.SyncProductions(ctx)
			})
			s.runTask(ctx, "events", func(ctx context.Context) (syncer.Result, error) {
				return s.syncer.SyncEvents(ctx)
			})
		}
	}
}

func (s *Service) runTask(ctx context.Context, name string, task func(context.Context) (syncer.Result, error)) {
	s.taskMu.Lock()
	if s.taskRunning[name] {
		s.taskMu.Unlock()
		log.Printf("[scheduler] task %s still running, skipping tick", name)
		return
	}
	s.taskRunning[name] = true
	s.taskMu.Unlock()

	defer func() {
		s.taskMu.Lock()
		s.taskRunning[name] = false
		s.taskMu.Unlock()
	}()

	result, err := task(ctx)
	if err != nil {
		log.Printf("[scheduler] task %s failed: %v", name, err)
		return
	}
	log.Printf("[scheduler] task %s done: inserted=%d updated=%d skipped=%d",
		name, result.Inserted, result.Updated, result.Skipped)
}

package capture

import (
	"context"
	"runtime/debug"
	"sync"

	"camwatch/internal/logger"

	"github.com/google/uuid"
)

// Supervisor tracks background capture tasks so shutdown can wait for them.
// A panicking task is logged and does not take the process down.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logger.Logger

	mu     sync.Mutex
	active int
}

func NewSupervisor(logger *logger.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{ctx: ctx, cancel: cancel, logger: logger}
}

// Go starts task in its own goroutine. The context passed to task is
// cancelled only when Wait gives up.
func (s *Supervisor) Go(name string, task func(ctx context.Context)) {
	id := uuid.NewString()[:8]

	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	s.wg.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Task %s (%s) panicked: %v\n%s", id, name, r, debug.Stack())
			}
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
			s.wg.Done()
		}()

		s.logger.Info("Task %s started: %s", id, name)
		task(s.ctx)
		s.logger.Info("Task %s finished: %s", id, name)
	}()
}

// Active returns the number of running tasks.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Wait blocks until every task has returned or ctx is done. In the latter case
// the remaining tasks are cancelled and ctx.Err() is returned.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

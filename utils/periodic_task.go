package utils

import (
	"context"
	"sync"
	"time"
)

// PeriodicTask runs fn every interval on its own goroutine until Stop is
// called or the parent context ends. A stopped task cannot be restarted.
type PeriodicTask struct {
	interval time.Duration
	fn       func(ctx context.Context)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewPeriodicTask(interval time.Duration, fn func(ctx context.Context)) *PeriodicTask {
	return &PeriodicTask{
		interval: interval,
		fn:       fn,
		done:     make(chan struct{}),
	}
}

// Start launches the loop. When immediate is set fn runs once before the
// first tick.
func (t *PeriodicTask) Start(parent context.Context, immediate bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running || t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	t.running = true

	go func() {
		defer func() {
			t.mu.Lock()
			t.running = false
			t.mu.Unlock()
			close(t.done)
		}()

		if immediate {
			t.fn(ctx)
		}

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.fn(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-progress tick to return.
func (t *PeriodicTask) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	started := cancel != nil
	t.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-t.done
}

func (t *PeriodicTask) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

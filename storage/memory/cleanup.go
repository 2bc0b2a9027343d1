package memory

import (
	"sync"
	"time"
)

// DefaultCleanupInterval is used by StartCleanup when interval is not positive
const DefaultCleanupInterval = time.Minute

// cleanupLoop runs a purge function on a ticker until stopped.
// The zero value is ready to use; start is a no-op after the first call.
type cleanupLoop struct {
	mu          sync.Mutex
	started     bool
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

func (c *cleanupLoop) start(interval time.Duration, purge func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return
	}
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	c.started = true
	c.stopCleanup = make(chan struct{})

	go func(stop <-chan struct{}) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				purge()
			}
		}
	}(c.stopCleanup)
}

func (c *cleanupLoop) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

package repository

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// cleanupTask runs a repository's Cleanup on a fixed schedule until stopped
type cleanupTask struct {
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func startCleanupTask(freq time.Duration, cleanup func(context.Context) error, logger *zap.Logger) *cleanupTask {
	t := &cleanupTask{stopCh: make(chan struct{})}
	if freq <= 0 {
		return t
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(freq)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := cleanup(context.Background()); err != nil {
					logger.Error("Failed to clean up call records", zap.Error(err))
				}
			case <-t.stopCh:
				return
			}
		}
	}()
	return t
}

// stop ends the background task and waits for it to exit. Safe to call twice.
func (t *cleanupTask) stop() {
	t.once.Do(func() {
		close(t.stopCh)
	})
	t.wg.Wait()
}

// Package janitor periodically removes expired profiles from the cache store.
// Reads already treat expired rows as absent; the janitor only reclaims space.
package janitor

import (
	"context"
	"sync"
	"time"

	"instalytics/pkg/logger"
	"instalytics/pkg/metrics"
)

// Purger deletes expired records and reports how many it removed
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor runs a Purger on a fixed interval
type Janitor struct {
	purger  Purger
	logger  logger.Logger
	metrics *metrics.Metrics

	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	active   bool
}

// New creates a stopped Janitor
func New(purger Purger, log logger.Logger, m *metrics.Metrics) *Janitor {
	return &Janitor{
		purger:  purger,
		logger:  log.WithField("component", "janitor"),
		metrics: m,
	}
}

// Start purges every interval until Stop is called or ctx ends. A second
// Start while running is ignored.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	j.mu.Lock()
	if j.active {
		j.mu.Unlock()
		j.logger.Warn("Janitor already active")
		return
	}
	j.active = true
	j.stopChan = make(chan struct{})
	j.done = make(chan struct{})
	j.ticker = time.NewTicker(interval)
	stop, done, ticker := j.stopChan, j.done, j.ticker
	j.mu.Unlock()

	go func() {
		defer func() {
			ticker.Stop()
			j.mu.Lock()
			j.active = false
			j.mu.Unlock()
			close(done)
		}()
		for {
			select {
			case <-ticker.C:
				_, _ = j.RunOnce(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.LogComponentStart(j.logger, "janitor", map[string]interface{}{
		"interval": interval.String(),
	})
}

// Stop halts the ticker and waits for an in-flight purge to finish
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.active {
		j.mu.Unlock()
		return
	}
	// the stop channel is closed once; concurrent callers only wait
	first := j.stopChan != nil
	if first {
		close(j.stopChan)
		j.stopChan = nil
	}
	done := j.done
	j.mu.Unlock()

	<-done
	if first {
		logger.LogComponentStop(j.logger, "janitor", "stopped")
	}
}

// Active reports whether the purge loop is running
func (j *Janitor) Active() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.active
}

// RunOnce purges expired profiles immediately
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.logger.WithError(err).Error("Failed to purge expired profiles")
		return 0, err
	}

	j.metrics.PurgedProfiles.Add(float64(n))
	if n > 0 {
		j.logger.InfoWithFields("Purged expired profiles", map[string]interface{}{
			"removed":     n,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
	return n, nil
}

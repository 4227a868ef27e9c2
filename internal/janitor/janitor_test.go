package janitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instalytics/pkg/logger"
	"instalytics/pkg/metrics"
)

type countingPurger struct {
	calls   int32
	removed int64
	err     error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	atomic.AddInt32(&p.calls, 1)
	return p.removed, p.err
}

func (p *countingPurger) Calls() int {
	return int(atomic.LoadInt32(&p.calls))
}

func TestRunOnceCountsRemovedProfiles(t *testing.T) {
	log := logger.NewTestLogger()
	m := metrics.New()
	j := New(&countingPurger{removed: 3}, log, m)

	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PurgedProfiles))
	assert.True(t, log.HasMessage("Purged expired profiles"))
}

func TestRunOnceReportsErrors(t *testing.T) {
	log := logger.NewTestLogger()
	m := metrics.New()
	j := New(&countingPurger{removed: 5, err: errors.New("disk full")}, log, m)

	n, err := j.RunOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Zero(t, testutil.ToFloat64(m.PurgedProfiles))
	assert.True(t, log.HasError())
}

func TestStartPurgesOnInterval(t *testing.T) {
	p := &countingPurger{}
	j := New(p, logger.NewTestLogger(), metrics.New())

	j.Start(context.Background(), 10*time.Millisecond)
	assert.True(t, j.Active())

	assert.Eventually(t, func() bool { return p.Calls() >= 2 }, time.Second, 5*time.Millisecond)

	j.Stop()
	assert.False(t, j.Active())

	calls := p.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, p.Calls(), "no purges after Stop")
}

func TestStartTwiceIsIgnored(t *testing.T) {
	log := logger.NewTestLogger()
	j := New(&countingPurger{}, log, metrics.New())

	j.Start(context.Background(), time.Hour)
	j.Start(context.Background(), time.Hour)
	defer j.Stop()

	assert.True(t, log.HasMessage("Janitor already active"))
}

func TestContextCancellationStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := New(&countingPurger{}, logger.NewTestLogger(), metrics.New())

	j.Start(ctx, time.Hour)
	cancel()

	assert.Eventually(t, func() bool { return !j.Active() }, time.Second, 5*time.Millisecond)
	// Stop after the loop exited on its own is a no-op
	j.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	j := New(&countingPurger{}, logger.NewTestLogger(), metrics.New())
	j.Stop()
	assert.False(t, j.Active())
}

func TestConcurrentStopIsSafe(t *testing.T) {
	log := logger.NewTestLogger()
	j := New(&countingPurger{}, log, metrics.New())
	j.Start(context.Background(), time.Hour)
	require.True(t, j.Active())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Stop()
		}()
	}
	wg.Wait()

	assert.False(t, j.Active())
	stops := 0
	for _, msg := range log.GetMessages() {
		if msg.Message == "Component stopped" {
			stops++
		}
	}
	assert.Equal(t, 1, stops)

	j.Start(context.Background(), time.Hour)
	assert.True(t, j.Active(), "a stopped janitor can be started again")
	j.Stop()
}

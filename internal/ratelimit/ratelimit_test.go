package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitEnforcesMinimumSpacing(t *testing.T) {
	l := New(50*time.Millisecond, nil)

	start := time.Now()
	l.Wait()
	l.Wait()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestWaitNoDelayReturnsImmediately(t *testing.T) {
	l := New(0, nil)

	start := time.Now()
	l.Wait()
	l.Wait()
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitAcrossConcurrentCallersStaysSpaced(t *testing.T) {
	l := New(30*time.Millisecond, nil)

	const n = 5
	var wg sync.WaitGroup
	timestamps := make([]time.Time, n)

	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Wait()
			timestamps[i] = time.Now()
		}(i)
	}
	wg.Wait()

	// With n fetchers racing a single global limiter spaced at 30ms, the
	// last one to get through cannot have been issued before (n-1)*30ms
	// after the first Wait() call returned, since every issue increments
	// the shared clock by at least the spacing.
	assert.GreaterOrEqual(t, time.Since(start), time.Duration(n-1)*30*time.Millisecond)
}

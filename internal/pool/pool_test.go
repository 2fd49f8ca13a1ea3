package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tracker records the peak number of tasks running at once.
type tracker struct {
	mu     sync.Mutex
	active int
	peak   int
}

func (tr *tracker) enter() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.active++
	if tr.active > tr.peak {
		tr.peak = tr.active
	}
}

func (tr *tracker) leave() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.active--
}

func TestRunAlignsResultsAndBoundsConcurrency(t *testing.T) {
	for _, limit := range []int{1, 2, 3, 8} {
		for _, n := range []int{0, 1, 5, 17} {
			tr := &tracker{}
			tasks := make([]Task[int], n)
			for i := range tasks {
				tasks[i] = func() (int, error) {
					tr.enter()
					defer tr.leave()
					// later tasks finish first
					time.Sleep(time.Duration(n-i) * time.Millisecond)
					return i * i, nil
				}
			}

			results, err := Run(tasks, limit)
			require.NoError(t, err)
			require.Len(t, results, n, "limit=%d n=%d", limit, n)
			for i, r := range results {
				assert.Equal(t, i*i, r, "limit=%d n=%d index=%d", limit, n, i)
			}
			assert.LessOrEqual(t, tr.peak, limit, "limit=%d n=%d", limit, n)
		}
	}
}

func TestRunReachesLimit(t *testing.T) {
	const limit = 4

	var started sync.WaitGroup
	started.Add(limit)
	release := make(chan struct{})
	tr := &tracker{}

	tasks := make([]Task[struct{}], limit)
	for i := range tasks {
		tasks[i] = func() (struct{}, error) {
			tr.enter()
			defer tr.leave()
			started.Done()
			<-release
			return struct{}{}, nil
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := Run(tasks, limit)
		done <- err
	}()

	started.Wait()
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, limit, tr.peak)
}

func TestRunEachTaskOnce(t *testing.T) {
	counts := make([]atomic.Int32, 50)
	tasks := make([]Task[int], len(counts))
	for i := range tasks {
		tasks[i] = func() (int, error) {
			counts[i].Add(1)
			return i, nil
		}
	}

	_, err := Run(tasks, 7)
	require.NoError(t, err)
	for i := range counts {
		assert.Equal(t, int32(1), counts[i].Load(), "task %d", i)
	}
}

func TestRunEmptyReturnsNonNil(t *testing.T) {
	results, err := Run[string](nil, 3)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRunLimitBelowOneIsSerial(t *testing.T) {
	tr := &tracker{}
	tasks := make([]Task[int], 5)
	for i := range tasks {
		tasks[i] = func() (int, error) {
			tr.enter()
			defer tr.leave()
			time.Sleep(time.Millisecond)
			return i, nil
		}
	}

	results, err := Run(tasks, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, results)
	assert.Equal(t, 1, tr.peak)
}

func TestRunStopsClaimingAfterError(t *testing.T) {
	boom := errors.New("registry unreachable")
	var ran atomic.Int32

	tasks := make([]Task[int], 10)
	for i := range tasks {
		tasks[i] = func() (int, error) {
			ran.Add(1)
			if i == 2 {
				return 0, boom
			}
			return i, nil
		}
	}

	results, err := Run(tasks, 1)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, results)
	assert.Equal(t, int32(3), ran.Load())
}

func TestRunWaitsForInFlightSiblings(t *testing.T) {
	boom := errors.New("disk full")
	var siblingDone atomic.Bool

	tasks := []Task[int]{
		func() (int, error) {
			time.Sleep(20 * time.Millisecond)
			siblingDone.Store(true)
			return 1, nil
		},
		func() (int, error) {
			return 0, boom
		},
	}

	_, err := Run(tasks, 2)
	require.ErrorIs(t, err, boom)
	assert.True(t, siblingDone.Load(), "running sibling should not be cancelled")
}

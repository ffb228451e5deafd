package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu      sync.Mutex
	seen    []string
	active  atomic.Int32
	peak    atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeProcessor) Process(ctx context.Context, jobID string) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, jobID)
	f.mu.Unlock()
	return f.err
}

func (f *fakeProcessor) processed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func TestPool_ProcessesEveryJob(t *testing.T) {
	proc := &fakeProcessor{}
	pool := NewPool(proc, 3, 16, nil)
	pool.Start()

	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		require.NoError(t, pool.Dispatch(context.Background(), id))
	}
	require.NoError(t, pool.Close(context.Background()))

	assert.ElementsMatch(t, ids, proc.processed())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	pool := NewPool(proc, 2, 8, nil)
	pool.Start()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, pool.Dispatch(context.Background(), id))
	}
	require.Eventually(t, func() bool { return proc.active.Load() == 2 }, time.Second, 5*time.Millisecond)

	close(proc.release)
	require.NoError(t, pool.Close(context.Background()))
	assert.Equal(t, int32(2), proc.peak.Load())
	assert.Len(t, proc.processed(), 4)
}

func TestPool_QueueFull(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	pool := NewPool(proc, 1, 1, nil)
	pool.Start()
	defer func() {
		close(proc.release)
		_ = pool.Close(context.Background())
	}()

	require.NoError(t, pool.Dispatch(context.Background(), "running"))
	require.Eventually(t, func() bool { return proc.active.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, pool.Dispatch(context.Background(), "queued"))
	assert.ErrorIs(t, pool.Dispatch(context.Background(), "rejected"), ErrQueueFull)
}

func TestPool_DispatchAfterClose(t *testing.T) {
	pool := NewPool(&fakeProcessor{}, 1, 1, nil)
	pool.Start()
	require.NoError(t, pool.Close(context.Background()))

	assert.ErrorIs(t, pool.Dispatch(context.Background(), "late"), ErrClosed)
	assert.NoError(t, pool.Close(context.Background()))
}

func TestPool_CloseDeadlineCancelsJobs(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	pool := NewPool(proc, 1, 1, nil)
	pool.Start()

	require.NoError(t, pool.Dispatch(context.Background(), "stuck"))
	require.Eventually(t, func() bool { return proc.active.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Close(ctx), context.DeadlineExceeded)
	assert.Zero(t, proc.active.Load())
}

func TestSeparateWorker_ProcessTask(t *testing.T) {
	proc := &fakeProcessor{}
	w := NewSeparateWorker(proc, nil)

	task, err := NewSeparateTask("job-1")
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSeparate, task.Type())

	require.NoError(t, w.ProcessTask(context.Background(), task))
	assert.Equal(t, []string{"job-1"}, proc.processed())
}

func TestSeparateWorker_NeverRetries(t *testing.T) {
	tests := []struct {
		name string
		task *asynq.Task
		err  error
	}{
		{"bad payload", asynq.NewTask(TaskTypeSeparate, []byte("{")), nil},
		{"missing job id", asynq.NewTask(TaskTypeSeparate, []byte(`{}`)), nil},
		{"processing failed", nil, errors.New("separate: out of memory")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewSeparateWorker(&fakeProcessor{err: tt.err}, nil)
			task := tt.task
			if task == nil {
				var err error
				task, err = NewSeparateTask("job-1")
				require.NoError(t, err)
			}

			err := w.ProcessTask(context.Background(), task)
			require.Error(t, err)
			assert.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

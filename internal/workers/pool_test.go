package workers_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/workers"
)

func testPool(t *testing.T, cfg *workers.PoolConfig) *workers.Pool {
	t.Helper()
	p := workers.NewPool(zap.NewNop(), cfg)
	t.Cleanup(func() { _ = p.Stop() })
	return p
}

func TestSubmit_BeforeStartReturnsPoolStopped(t *testing.T) {
	p := testPool(t, nil)
	err := p.SubmitFunc(func() error { return nil })
	assert.ErrorIs(t, err, workers.ErrPoolStopped)
}

func TestSubmit_AfterStartExecutesTask(t *testing.T) {
	p := testPool(t, &workers.PoolConfig{
		Name: "test", NumWorkers: 2, QueueSize: 10,
		TaskTimeout: time.Second, ShutdownTimeout: time.Second, PanicRecovery: true,
	})
	p.Start()

	var ran atomic.Bool
	err := p.SubmitWait(workers.TaskFunc(func() error {
		ran.Store(true)
		return nil
	}))
	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestSubmitWait_PropagatesTaskError(t *testing.T) {
	p := testPool(t, &workers.PoolConfig{
		Name: "test", NumWorkers: 1, QueueSize: 10,
		TaskTimeout: time.Second, ShutdownTimeout: time.Second, PanicRecovery: true,
	})
	p.Start()

	want := errors.New("task failed")
	err := p.SubmitWait(workers.TaskFunc(func() error { return want }))
	assert.ErrorIs(t, err, want)
}

func TestExecuteTask_RecoversFromPanicAsTaskFailure(t *testing.T) {
	p := testPool(t, &workers.PoolConfig{
		Name: "test", NumWorkers: 1, QueueSize: 10,
		TaskTimeout: time.Second, ShutdownTimeout: time.Second, PanicRecovery: true,
	})
	p.Start()

	err := p.SubmitWait(workers.TaskFunc(func() error {
		panic("boom")
	}))
	require.Error(t, err)
	var panicErr *workers.PanicError
	assert.ErrorAs(t, err, &panicErr)

	assert.Eventually(t, func() bool {
		return p.Metrics().PanicRecovered == 1
	}, time.Second, 5*time.Millisecond)
}

func TestExecuteTask_TimesOutSlowTasks(t *testing.T) {
	p := testPool(t, &workers.PoolConfig{
		Name: "test", NumWorkers: 1, QueueSize: 10,
		TaskTimeout: 10 * time.Millisecond, ShutdownTimeout: time.Second, PanicRecovery: true,
	})
	p.Start()

	err := p.Submit(workers.TaskFunc(func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return p.Metrics().GetStats().TasksTimeout == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSubmitBatch_StopsAtFirstRejection(t *testing.T) {
	p := testPool(t, &workers.PoolConfig{
		Name: "test", NumWorkers: 0, QueueSize: 2,
		TaskTimeout: time.Second, ShutdownTimeout: time.Second, PanicRecovery: true,
	})
	p.Start()

	tasks := []workers.Task{
		workers.TaskFunc(func() error { return nil }),
		workers.TaskFunc(func() error { return nil }),
		workers.TaskFunc(func() error { return nil }),
	}
	submitted, err := p.SubmitBatch(tasks)
	assert.ErrorIs(t, err, workers.ErrQueueFull)
	assert.Equal(t, 2, submitted)
}

func TestStop_IsIdempotent(t *testing.T) {
	p := testPool(t, nil)
	p.Start()
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
	assert.False(t, p.IsRunning())
}

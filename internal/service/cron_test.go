package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GIGOpenSource/Collide-sub009/pkg/utils/lock"
)

type countingReconciler struct {
	runs atomic.Int32
}

func (r *countingReconciler) RunOnce(context.Context) (int, error) {
	r.runs.Add(1)
	return 0, nil
}

func (r *countingReconciler) LastStats() ReconcileStats { return ReconcileStats{} }

func TestCronRunReconcileHonorsLock(t *testing.T) {
	locker := lock.NewLocalLock()
	job := &countingReconciler{}
	svc := NewCronService(locker, job, "@every 1h", time.Minute)

	svc.RunReconcile()
	assert.Equal(t, int32(1), job.runs.Load())

	// 其他实例持有锁时跳过
	ok, err := locker.Acquire(context.Background(), reconcileLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	svc.RunReconcile()
	assert.Equal(t, int32(1), job.runs.Load())

	require.NoError(t, locker.Release(context.Background(), reconcileLockKey))
	svc.RunReconcile()
	assert.Equal(t, int32(2), job.runs.Load())
}

func TestCronInvalidSpec(t *testing.T) {
	svc := NewCronService(lock.NewLocalLock(), &countingReconciler{}, "not a spec", time.Minute)
	assert.Error(t, svc.Start())
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
)

func testOperation(key string) Operation {
	return Operation{
		ChainType:      fakeChain,
		BizID:          "ORD-1",
		BizType:        model.BizTypeBoxOpen,
		OperateType:    model.OperateTypeMint,
		IdempotencyKey: key,
	}
}

func TestLedgerExecuteExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var calls atomic.Int32
	fn := func(context.Context) (interface{}, error) {
		calls.Add(1)
		return map[string]string{"tx_hash": "0xabc"}, nil
	}

	first, err := env.ledger.Execute(ctx, testOperation("1"), fn)
	require.NoError(t, err)
	assert.Equal(t, model.OperationSucceeded, first.State)

	for i := 0; i < 5; i++ {
		rec, err := env.ledger.Execute(ctx, testOperation("1"), fn)
		require.NoError(t, err)
		assert.Equal(t, first.ID, rec.ID)

		var got map[string]string
		require.NoError(t, json.Unmarshal(rec.ResultPayload, &got))
		assert.Equal(t, "0xabc", got["tx_hash"])
	}
	assert.Equal(t, int32(1), calls.Load())

	// 不同幂等键是独立的操作
	_, err = env.ledger.Execute(ctx, testOperation("2"), fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLedgerFailureThenRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := testOperation("9")

	rec, err := env.ledger.Execute(ctx, op, func(context.Context) (interface{}, error) {
		return nil, errChainDown
	})
	assert.ErrorIs(t, err, errChainDown)
	assert.Equal(t, model.OperationFailed, rec.State)

	rec, err = env.ledger.Execute(ctx, op, func(context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.OperationSucceeded, rec.State)

	records, err := env.store.Operations().ListByBiz(ctx, op.BizType, op.BizID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.OperationFailed, records[0].State)
	assert.Equal(t, errChainDown.Error(), records[0].ErrorMessage)
	assert.NotNil(t, records[0].FinishedAt)
	assert.Equal(t, model.OperationSucceeded, records[1].State)
	for _, r := range records {
		assert.Equal(t, "9", r.IdempotencyKey)
	}
}

func TestLedgerInProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := testOperation("3")

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := env.ledger.Execute(ctx, op, func(context.Context) (interface{}, error) {
			close(entered)
			<-release
			return "ok", nil
		})
		done <- err
	}()
	<-entered

	var calls atomic.Int32
	_, err := env.ledger.Execute(ctx, op, func(context.Context) (interface{}, error) {
		calls.Add(1)
		return "dup", nil
	})
	assert.ErrorIs(t, err, errno.ErrOperationInProgress)
	assert.Zero(t, calls.Load())

	close(release)
	require.NoError(t, <-done)
}

func TestLedgerConcurrentExecute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := testOperation("4")

	var calls atomic.Int32
	fn := func(context.Context) (interface{}, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "ok", nil
	}

	const n = 8
	var wg sync.WaitGroup
	var succeeded, inProgress atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.Execute(ctx, op, fn)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, errno.ErrOperationInProgress):
				inProgress.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// 成功返回的可能是自己执行的，也可能是读到了别人的 SUCCEEDED
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(n), succeeded.Load()+inProgress.Load())

	records, err := env.store.Operations().ListByBiz(ctx, op.BizType, op.BizID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.OperationSucceeded, records[0].State)
}

func TestLedgerStaleProcessingIsRetried(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := testOperation("5")

	// 模拟进程在调用外部系统时崩溃: 只留下 PROCESSING 记录
	orphan := &model.OperationRecord{
		ChainType:      op.ChainType,
		BizID:          op.BizID,
		BizType:        op.BizType,
		OperateType:    op.OperateType,
		IdempotencyKey: op.IdempotencyKey,
	}
	inserted, err := env.store.Operations().InsertProcessing(ctx, orphan)
	require.NoError(t, err)
	require.True(t, inserted)

	var calls atomic.Int32
	fn := func(context.Context) (interface{}, error) {
		calls.Add(1)
		return "ok", nil
	}

	// 未超时: 视为在途
	_, err = env.ledger.Execute(ctx, op, fn)
	assert.ErrorIs(t, err, errno.ErrOperationInProgress)

	// 超时后重试一次并成功
	env.ledger.now = func() time.Time { return time.Now().Add(time.Hour) }
	rec, err := env.ledger.Execute(ctx, op, fn)
	require.NoError(t, err)
	assert.Equal(t, model.OperationSucceeded, rec.State)
	assert.Equal(t, int32(1), calls.Load())

	records, err := env.store.Operations().ListByBiz(ctx, op.BizType, op.BizID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, orphan.ID, records[0].ID)
	assert.Equal(t, model.OperationFailed, records[0].State)
	assert.Nil(t, records[0].GuardKey)
	assert.Equal(t, model.OperationSucceeded, records[1].State)
}

func TestLedgerRecordsFailureAfterCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	op := testOperation("6")

	_, err := env.ledger.Execute(ctx, op, func(context.Context) (interface{}, error) {
		cancel()
		return nil, context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)

	latest, err := env.store.Operations().Latest(context.Background(), op.BizType, op.BizID, op.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, model.OperationFailed, latest.State)
}

func TestLedgerUnencodableResultReleasesGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := testOperation("7")

	_, err := env.ledger.Execute(ctx, op, func(context.Context) (interface{}, error) {
		return make(chan int), nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode operation result")

	latest, err := env.store.Operations().Latest(ctx, op.BizType, op.BizID, op.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, model.OperationFailed, latest.State)
	assert.Contains(t, latest.ErrorMessage, "encode result")
	assert.Nil(t, latest.GuardKey)

	// guard 已释放，可以重试
	rec, err := env.ledger.Execute(ctx, op, func(context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.OperationSucceeded, rec.State)
}

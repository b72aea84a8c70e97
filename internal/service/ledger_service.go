package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/internal/repository"
	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
)

// Operation 一次外部调用的逻辑标识
type Operation struct {
	ChainType      string
	BizID          string
	BizType        string
	OperateType    string
	IdempotencyKey string
}

// OperationLedger 外部调用幂等账本
//
// 所有外部网关调用都必须经过 Execute:
//   - 已有 SUCCEEDED 记录: 直接返回，不调用 fn
//   - 已有 PROCESSING 记录且未超时: 返回 ErrOperationInProgress
//   - PROCESSING 超过 staleAfter: 视为崩溃遗留，改为 FAILED 后重试
type OperationLedger struct {
	ops        repository.OperationRepository
	staleAfter time.Duration
	now        func() time.Time
}

func NewOperationLedger(ops repository.OperationRepository, staleAfter time.Duration) *OperationLedger {
	return &OperationLedger{
		ops:        ops,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Execute 执行 fn 并记录结果
// fn 的返回值被序列化为 JSON 存入 result_payload；失败时返回的 record 状态为 FAILED
func (l *OperationLedger) Execute(ctx context.Context, op Operation, fn func(ctx context.Context) (interface{}, error)) (*model.OperationRecord, error) {
	fields := []zap.Field{
		zap.String("biz_type", op.BizType),
		zap.String("biz_id", op.BizID),
		zap.String("idempotency_key", op.IdempotencyKey),
	}

	// 1. 先查已有记录
	latest, err := l.ops.Latest(ctx, op.BizType, op.BizID, op.IdempotencyKey)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("%w: %v", errno.ErrDatabase, err)
	default:
		if rec, done, err := l.resolveExisting(ctx, latest, fields); done {
			return rec, err
		}
	}

	// 2. 抢占 guard_key
	rec := &model.OperationRecord{
		ChainType:      op.ChainType,
		BizID:          op.BizID,
		BizType:        op.BizType,
		OperateType:    op.OperateType,
		IdempotencyKey: op.IdempotencyKey,
	}
	inserted, err := l.ops.InsertProcessing(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errno.ErrDatabase, err)
	}
	if !inserted {
		// 并发的另一个尝试先插入了
		current, err := l.ops.Latest(ctx, op.BizType, op.BizID, op.IdempotencyKey)
		if err == nil && current.State == model.OperationSucceeded {
			return current, nil
		}
		return current, errno.ErrOperationInProgress
	}

	// 3. 调用外部系统
	result, callErr := fn(ctx)

	// 结果必须落库，即使调用方的 ctx 已经取消
	finishCtx := context.WithoutCancel(ctx)
	if callErr != nil {
		if err := l.ops.MarkFailed(finishCtx, rec.ID, callErr.Error()); err != nil {
			logger.Error("ledger mark failed error", append(fields, zap.Uint64("record_id", rec.ID), zap.Error(err))...)
		}
		rec.State = model.OperationFailed
		rec.GuardKey = nil
		rec.ErrorMessage = callErr.Error()
		return rec, callErr
	}

	payload, err := json.Marshal(result)
	if err != nil {
		if markErr := l.ops.MarkFailed(finishCtx, rec.ID, "encode result: "+err.Error()); markErr != nil {
			logger.Error("ledger mark failed error", append(fields, zap.Uint64("record_id", rec.ID), zap.Error(markErr))...)
		}
		return rec, fmt.Errorf("encode operation result: %w", err)
	}
	if err := l.ops.MarkSucceeded(finishCtx, rec.ID, payload); err != nil {
		// 记录已被判定超时改为 FAILED，下一次重试依赖网关按幂等键去重
		logger.Error("ledger mark succeeded error", append(fields, zap.Uint64("record_id", rec.ID), zap.Error(err))...)
		return rec, fmt.Errorf("%w: %v", errno.ErrDatabase, err)
	}

	now := l.now()
	rec.State = model.OperationSucceeded
	rec.ResultPayload = payload
	rec.FinishedAt = &now
	return rec, nil
}

// resolveExisting 处理已有记录，done=true 表示不需要再调用外部系统
func (l *OperationLedger) resolveExisting(ctx context.Context, latest *model.OperationRecord, fields []zap.Field) (*model.OperationRecord, bool, error) {
	switch latest.State {
	case model.OperationSucceeded:
		return latest, true, nil
	case model.OperationProcessing:
		age := l.now().Sub(latest.CreatedAt)
		if age < l.staleAfter {
			return latest, true, errno.ErrOperationInProgress
		}
		reclassified, err := l.ops.ReclassifyStale(ctx, latest.ID)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", errno.ErrDatabase, err)
		}
		if reclassified {
			logger.Warn("stale processing operation reclassified as failed",
				append(fields, zap.Uint64("record_id", latest.ID), zap.Duration("age", age))...)
		}
	}
	return nil, false, nil
}

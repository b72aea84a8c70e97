package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GIGOpenSource/Collide-sub009/internal/model"
)

type OperationRepo struct {
	db *gorm.DB
}

func (r *OperationRepo) Latest(ctx context.Context, bizType, bizID, idempotencyKey string) (*model.OperationRecord, error) {
	var rec model.OperationRecord
	err := r.db.WithContext(ctx).
		Where("biz_type = ? AND biz_id = ? AND idempotency_key = ?", bizType, bizID, idempotencyKey).
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		return nil, wrapErr("latest operation", err)
	}
	return &rec, nil
}

// InsertProcessing 依赖 guard_key 唯一索引实现 "不存在才插入"
// 跨进程的并发尝试 (listener 与对账任务) 只会有一个插入成功
func (r *OperationRepo) InsertProcessing(ctx context.Context, rec *model.OperationRecord) (bool, error) {
	guard := model.GuardKeyOf(rec.BizType, rec.BizID, rec.IdempotencyKey)
	rec.GuardKey = &guard
	rec.State = model.OperationProcessing

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, wrapErr("insert operation", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *OperationRepo) MarkSucceeded(ctx context.Context, id uint64, payload []byte) error {
	now := time.Now()
	return r.finish(ctx, id, map[string]interface{}{
		"state":          model.OperationSucceeded,
		"result_payload": datatypes.JSON(payload),
		"finished_at":    now,
	})
}

func (r *OperationRepo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	now := time.Now()
	return r.finish(ctx, id, map[string]interface{}{
		"state":         model.OperationFailed,
		"guard_key":     nil,
		"error_message": errMsg,
		"finished_at":   now,
	})
}

func (r *OperationRepo) ReclassifyStale(ctx context.Context, id uint64) (bool, error) {
	err := r.MarkFailed(ctx, id, "stale processing record reclassified")
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	return err == nil, err
}

func (r *OperationRepo) ListByBiz(ctx context.Context, bizType, bizID string) ([]model.OperationRecord, error) {
	var list []model.OperationRecord
	err := r.db.WithContext(ctx).
		Where("biz_type = ? AND biz_id = ?", bizType, bizID).
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, wrapErr("list operations", err)
	}
	return list, nil
}

// finish 只允许从 PROCESSING 迁出
func (r *OperationRepo) finish(ctx context.Context, id uint64, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&model.OperationRecord{}).
		Where("id = ? AND state = ?", id, model.OperationProcessing).
		Updates(values)
	if res.Error != nil {
		return wrapErr("finish operation", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

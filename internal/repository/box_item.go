package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/GIGOpenSource/Collide-sub009/internal/model"
)

type BoxItemRepo struct {
	db *gorm.DB
}

// Create 分配库存时创建 INIT 状态的格子
func (r *BoxItemRepo) Create(ctx context.Context, item *model.BoxItem) error {
	if item.State == "" {
		item.State = model.BoxItemStateInit
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return wrapErr("create box item", err)
	}
	return nil
}

func (r *BoxItemRepo) Get(ctx context.Context, id uint64) (*model.BoxItem, error) {
	var item model.BoxItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, wrapErr("get box item", err)
	}
	return &item, nil
}

func (r *BoxItemRepo) ListByOwner(ctx context.Context, ownerID uint64, limit int) ([]model.BoxItem, error) {
	var items []model.BoxItem
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, wrapErr("list box items", err)
	}
	return items, nil
}

// Assign 订单已被其他格子占用时返回 ErrDuplicate
// 并发下由 uk_box_items_order_id 兜底
func (r *BoxItemRepo) Assign(ctx context.Context, id, ownerID uint64, orderID string) (*model.BoxItem, error) {
	var taken int64
	err := r.db.WithContext(ctx).
		Model(&model.BoxItem{}).
		Where("order_id = ? AND id <> ?", orderID, id).
		Count(&taken).Error
	if err != nil {
		return nil, wrapErr("check order assignment", err)
	}
	if taken > 0 {
		return nil, ErrDuplicate
	}

	return r.transition(ctx, id, map[string]interface{}{
		"state":    model.BoxItemStateAssigned,
		"owner_id": ownerID,
		"order_id": orderID,
	}, "state = ?", model.BoxItemStateInit)
}

// TryOpen 单行条件更新:
// UPDATE box_items SET state='OPENING', version=version+1 WHERE id=? AND state='ASSIGNED' AND version=?
// 并发请求中只有一个能命中，其余得到 ErrConflict
func (r *BoxItemRepo) TryOpen(ctx context.Context, id, expectedVersion uint64) (*model.BoxItem, error) {
	return r.transition(ctx, id, map[string]interface{}{
		"state": model.BoxItemStateOpening,
	}, "state = ? AND version = ?", model.BoxItemStateAssigned, expectedVersion)
}

func (r *BoxItemRepo) MarkOpened(ctx context.Context, id uint64) error {
	_, err := r.transition(ctx, id, map[string]interface{}{
		"state": model.BoxItemStateOpened,
	}, "state = ?", model.BoxItemStateOpening)
	if !errors.Is(err, ErrConflict) {
		return err
	}

	// 条件未命中: 已经是 OPENED 视为成功，其余状态属于非法跳转
	item, getErr := r.Get(ctx, id)
	if getErr != nil {
		return getErr
	}
	if item.State == model.BoxItemStateOpened {
		return nil
	}
	return ErrConflict
}

// transition 执行带条件的状态迁移，version 自增；未命中时区分 ErrNotFound / ErrConflict
func (r *BoxItemRepo) transition(ctx context.Context, id uint64, values map[string]interface{}, cond string, args ...interface{}) (*model.BoxItem, error) {
	values["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).
		Model(&model.BoxItem{}).
		Where("id = ?", id).
		Where(cond, args...).
		Updates(values)
	if res.Error != nil {
		return nil, wrapErr("update box item", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return r.Get(ctx, id)
}

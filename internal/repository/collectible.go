package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GIGOpenSource/Collide-sub009/internal/model"
)

type CollectibleRepo struct {
	db *gorm.DB
}

// CreateIfAbsent INSERT ... ON CONFLICT (biz_no, biz_type) DO NOTHING
// 冲突时回查已有记录，保证同一业务单号只有一条藏品
func (r *CollectibleRepo) CreateIfAbsent(ctx context.Context, c *model.Collectible) (*model.Collectible, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "biz_no"}, {Name: "biz_type"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		return nil, false, wrapErr("create collectible", res.Error)
	}
	if res.RowsAffected == 1 {
		return c, true, nil
	}

	existing, err := r.GetByBiz(ctx, c.BizNo, c.BizType)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *CollectibleRepo) Get(ctx context.Context, id uint64) (*model.Collectible, error) {
	var c model.Collectible
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, wrapErr("get collectible", err)
	}
	return &c, nil
}

func (r *CollectibleRepo) GetByBiz(ctx context.Context, bizNo, bizType string) (*model.Collectible, error) {
	var c model.Collectible
	err := r.db.WithContext(ctx).
		Where("biz_no = ? AND biz_type = ?", bizNo, bizType).
		First(&c).Error
	if err != nil {
		return nil, wrapErr("get collectible by biz", err)
	}
	return &c, nil
}

func (r *CollectibleRepo) ListByOwner(ctx context.Context, ownerID uint64, limit int) ([]model.Collectible, error) {
	var list []model.Collectible
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, wrapErr("list collectibles", err)
	}
	return list, nil
}

// ListUnconfirmed 游标分页: WHERE mint_confirmed = false AND id >= minID ORDER BY id LIMIT n
// 不依赖数据库特有的分页语法
func (r *CollectibleRepo) ListUnconfirmed(ctx context.Context, minID uint64, limit int) ([]model.Collectible, error) {
	var list []model.Collectible
	err := r.db.WithContext(ctx).
		Where("mint_confirmed = ? AND id >= ?", false, minID).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, wrapErr("list unconfirmed collectibles", err)
	}
	return list, nil
}

// ConfirmMint 标记铸造完成，重复调用不会报错
func (r *CollectibleRepo) ConfirmMint(ctx context.Context, id uint64, txHash string, mintedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Collectible{}).
		Where("id = ? AND mint_confirmed = ?", id, false).
		Updates(map[string]interface{}{
			"mint_confirmed": true,
			"mint_tx_hash":   txHash,
			"minted_at":      mintedAt,
		})
	if res.Error != nil {
		return wrapErr("confirm mint", res.Error)
	}
	if res.RowsAffected == 0 {
		// 已确认或不存在
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

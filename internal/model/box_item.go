package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BoxItemState 盲盒格子状态，只能单向推进: INIT -> ASSIGNED -> OPENING -> OPENED
type BoxItemState string

const (
	BoxItemStateInit     BoxItemState = "INIT"     // 库存已分配给订单
	BoxItemStateAssigned BoxItemState = "ASSIGNED" // 已绑定到用户
	BoxItemStateOpening  BoxItemState = "OPENING"  // 开盒中，等待上链
	BoxItemStateOpened   BoxItemState = "OPENED"   // 终态
)

// BoxItem 盲盒格子表 (每个购买的盲盒位置一条)
// 核心设计: Version 字段实现乐观锁，state/version 只通过条件更新修改
type BoxItem struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	BoxID            uint64          `gorm:"not null;index" json:"box_id"`
	OwnerID          uint64          `gorm:"not null;default:0;index" json:"owner_id"`
	State            BoxItemState    `gorm:"type:varchar(16);not null;default:'INIT'" json:"state"`
	CollectibleName  string          `gorm:"type:varchar(255);not null" json:"collectible_name"`
	CollectibleCover string          `gorm:"type:varchar(512)" json:"collectible_cover"`
	GoodsID          uint64          `gorm:"not null;default:0" json:"goods_id"` // 对应藏品商品 ID
	Rarity           string          `gorm:"type:varchar(16)" json:"rarity"`
	PurchasePrice    decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"purchase_price"`
	ReferencePrice   decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"reference_price"`
	OrderID          string          `gorm:"type:varchar(64);uniqueIndex:uk_box_items_order_id,where:order_id <> ''" json:"order_id"` // 一个订单只对应一个格子
	Version          uint64          `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (BoxItem) TableName() string {
	return "box_items"
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// BizTypeBoxOpen 开盒产生的藏品
	BizTypeBoxOpen = "BOX_OPEN"

	GoodsTypeBlindBox = "BLIND_BOX"
)

// Collectible 用户持有藏品表，每个开盒成功的 BoxItem 对应一条
// (biz_no, biz_type) 唯一，保证重放时不会重复创建
type Collectible struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID         uint64          `gorm:"not null;index" json:"owner_id"`
	SourceBoxItemID uint64          `gorm:"not null;index" json:"source_box_item_id"`
	GoodsID         uint64          `gorm:"not null;default:0" json:"goods_id"`
	GoodsType       string          `gorm:"type:varchar(32);not null" json:"goods_type"`
	SerialNo        string          `gorm:"type:varchar(64);not null" json:"serial_no"`
	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	Cover           string          `gorm:"type:varchar(512)" json:"cover"`
	PurchasePrice   decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"purchase_price"`
	ReferencePrice  decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"reference_price"`
	Rarity          string          `gorm:"type:varchar(16)" json:"rarity"`
	BizNo           string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_collectible_biz" json:"biz_no"`
	BizType         string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_collectible_biz" json:"biz_type"`
	MintConfirmed   bool            `gorm:"not null;default:false;index" json:"mint_confirmed"` // ledger 出现 SUCCEEDED 记录后置为 true
	MintTxHash      string          `gorm:"type:varchar(128)" json:"mint_tx_hash,omitempty"`
	MintedAt        *time.Time      `json:"minted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Collectible) TableName() string {
	return "collectibles"
}

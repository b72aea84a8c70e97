package request

import "github.com/shopspring/decimal"

// AllocateBoxItemRequest 库存分配到订单
type AllocateBoxItemRequest struct {
	BoxID            uint64          `json:"box_id" binding:"required,gt=0"`
	GoodsID          uint64          `json:"goods_id"`
	CollectibleName  string          `json:"collectible_name" binding:"required,max=255"`
	CollectibleCover string          `json:"collectible_cover" binding:"max=512"`
	Rarity           string          `json:"rarity" binding:"max=16"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	ReferencePrice   decimal.Decimal `json:"reference_price"`
}

// AssignBoxItemRequest 支付完成后绑定用户
type AssignBoxItemRequest struct {
	OwnerID uint64 `json:"owner_id" binding:"required,gt=0"`
	OrderID string `json:"order_id" binding:"required,max=64"`
}

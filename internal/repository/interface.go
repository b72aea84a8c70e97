package repository

import (
	"context"
	"errors"
	"time"

	"github.com/GIGOpenSource/Collide-sub009/internal/model"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrConflict 条件更新未命中 (状态或版本号不匹配)
	ErrConflict = errors.New("conditional update conflict")
	// ErrDuplicate 唯一约束冲突
	ErrDuplicate = errors.New("duplicate record")
)

// BoxItemRepository 盲盒格子状态机存储
// state / version 只允许通过这里的条件更新修改
type BoxItemRepository interface {
	Create(ctx context.Context, item *model.BoxItem) error
	Get(ctx context.Context, id uint64) (*model.BoxItem, error)
	ListByOwner(ctx context.Context, ownerID uint64, limit int) ([]model.BoxItem, error)

	// Assign INIT -> ASSIGNED，绑定用户与订单
	Assign(ctx context.Context, id, ownerID uint64, orderID string) (*model.BoxItem, error)
	// TryOpen ASSIGNED -> OPENING，要求 version == expectedVersion，条件不满足返回 ErrConflict
	TryOpen(ctx context.Context, id, expectedVersion uint64) (*model.BoxItem, error)
	// MarkOpened OPENING -> OPENED，对已经 OPENED 的记录是 no-op
	MarkOpened(ctx context.Context, id uint64) error
}

// CollectibleRepository 用户藏品存储
type CollectibleRepository interface {
	// CreateIfAbsent 按 (biz_no, biz_type) 幂等创建，已存在时返回已有记录且 created=false
	CreateIfAbsent(ctx context.Context, c *model.Collectible) (existing *model.Collectible, created bool, err error)
	Get(ctx context.Context, id uint64) (*model.Collectible, error)
	GetByBiz(ctx context.Context, bizNo, bizType string) (*model.Collectible, error)
	ListByOwner(ctx context.Context, ownerID uint64, limit int) ([]model.Collectible, error)
	// ListUnconfirmed 按 id 升序返回 id >= minID 且未确认铸造的藏品
	ListUnconfirmed(ctx context.Context, minID uint64, limit int) ([]model.Collectible, error)
	ConfirmMint(ctx context.Context, id uint64, txHash string, mintedAt time.Time) error
}

// OperationRepository 外部调用幂等账本存储
type OperationRepository interface {
	// Latest 返回该逻辑操作最新的一条记录
	Latest(ctx context.Context, bizType, bizID, idempotencyKey string) (*model.OperationRecord, error)
	// InsertProcessing 插入 PROCESSING 记录，GuardKey 冲突时返回 false
	InsertProcessing(ctx context.Context, rec *model.OperationRecord) (bool, error)
	MarkSucceeded(ctx context.Context, id uint64, payload []byte) error
	MarkFailed(ctx context.Context, id uint64, errMsg string) error
	// ReclassifyStale 将超时的 PROCESSING 记录改为 FAILED 并释放 GuardKey
	ReclassifyStale(ctx context.Context, id uint64) (bool, error)
	ListByBiz(ctx context.Context, bizType, bizID string) ([]model.OperationRecord, error)
}

// OutboxRepository 本地消息表
type OutboxRepository interface {
	Add(ctx context.Context, topic, key string, payload interface{}) error
	ListPending(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkSent(ctx context.Context, id uint64) error
	// MarkAttemptFailed 记录一次投递失败，达到 maxAttempts 后置为 FAILED
	MarkAttemptFailed(ctx context.Context, id uint64, errMsg string, maxAttempts int) error
}

// Store 聚合所有仓储，并提供本地事务
type Store interface {
	BoxItems() BoxItemRepository
	Collectibles() CollectibleRepository
	Operations() OperationRepository
	Outbox() OutboxRepository

	// Transaction 在同一个数据库事务中执行 fn，fn 内只能使用传入的 tx
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

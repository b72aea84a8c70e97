package service

import (
	"context"

	"github.com/GIGOpenSource/Collide-sub009/internal/model"
)

// BlindBoxService 开盒与查询，供 HTTP handler 使用
type BlindBoxService interface {
	Allocate(ctx context.Context, item *model.BoxItem) error
	Assign(ctx context.Context, id, ownerID uint64, orderID string) (*model.BoxItem, error)

	// Open 同步开盒: 状态机 CAS + 创建藏品，不等待上链
	Open(ctx context.Context, boxItemID, requesterID uint64) (*model.Collectible, error)

	GetBoxItem(ctx context.Context, id uint64) (*model.BoxItem, error)
	ListBoxItems(ctx context.Context, ownerID uint64, limit int) ([]model.BoxItem, error)
	GetCollectible(ctx context.Context, id uint64) (*model.Collectible, error)
	ListCollectibles(ctx context.Context, ownerID uint64, limit int) ([]model.Collectible, error)
	// ListOperations 藏品的上链流水 (审计)
	ListOperations(ctx context.Context, collectibleID uint64) ([]model.OperationRecord, error)
}

// Reconciler 对账补偿任务
type Reconciler interface {
	RunOnce(ctx context.Context) (int, error)
	LastStats() ReconcileStats
}

// EventPublisher 进程内事件发布，event.Dispatcher 实现该接口
type EventPublisher interface {
	Publish(topic string, payload interface{}) error
}

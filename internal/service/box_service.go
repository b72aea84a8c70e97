package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GIGOpenSource/Collide-sub009/internal/event"
	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/internal/repository"
	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
	"github.com/GIGOpenSource/Collide-sub009/pkg/monitor"
	"github.com/GIGOpenSource/Collide-sub009/pkg/safe_random"
)

const serialPrefix = "BB"

// BoxService 盲盒开盒流程
//
// Open 只做本地存储操作，不调用外部网关:
// CAS(ASSIGNED -> OPENING) + 创建藏品 + 写 outbox 在同一个本地事务中提交，
// 提交后再发布进程内事件，发布失败只记日志，由对账任务兜底。
type BoxService struct {
	store       repository.Store
	publisher   EventPublisher
	outboxTopic string // 为空时不写 outbox
}

func NewBoxService(store repository.Store, publisher EventPublisher, outboxTopic string) *BoxService {
	return &BoxService{
		store:       store,
		publisher:   publisher,
		outboxTopic: outboxTopic,
	}
}

// Allocate 库存分配给订单时创建 INIT 状态的格子
func (s *BoxService) Allocate(ctx context.Context, item *model.BoxItem) error {
	item.ID = 0
	item.State = model.BoxItemStateInit
	item.Version = 0
	if err := s.store.BoxItems().Create(ctx, item); err != nil {
		return fmt.Errorf("%w: %v", errno.ErrDatabase, err)
	}
	return nil
}

// Assign 订单支付后把格子绑定给用户
func (s *BoxService) Assign(ctx context.Context, id, ownerID uint64, orderID string) (*model.BoxItem, error) {
	item, err := s.store.BoxItems().Assign(ctx, id, ownerID, orderID)
	if err != nil {
		return nil, mapBoxItemErr(err)
	}
	return item, nil
}

func (s *BoxService) Open(ctx context.Context, boxItemID, requesterID uint64) (*model.Collectible, error) {
	fields := []zap.Field{zap.Uint64("box_item_id", boxItemID), zap.Uint64("requester_id", requesterID)}

	// 1. 加载并校验归属
	item, err := s.store.BoxItems().Get(ctx, boxItemID)
	if err != nil {
		monitor.Business.ObserveOpen("error")
		return nil, mapBoxItemErr(err)
	}
	if item.OwnerID != requesterID {
		monitor.Business.ObserveOpen("denied")
		logger.Warn("open box denied: owner mismatch", append(fields, zap.Uint64("owner_id", item.OwnerID))...)
		return nil, errno.ErrPermissionDenied
	}

	serialNo, err := safe_random.GenerateSerialNo(serialPrefix)
	if err != nil {
		monitor.Business.ObserveOpen("error")
		return nil, fmt.Errorf("generate serial no: %w", err)
	}

	// 2. 本地事务: CAS + 幂等创建藏品 + outbox
	var (
		collectible *model.Collectible
		created     bool
		evt         event.BoxOpenedEvent
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		opening, err := tx.BoxItems().TryOpen(ctx, item.ID, item.Version)
		if err != nil {
			return err
		}

		collectible, created, err = tx.Collectibles().CreateIfAbsent(ctx, newCollectible(opening, serialNo))
		if err != nil {
			return err
		}
		// 业务单号已被其他格子的藏品占用，回滚 OPENING
		if collectible.SourceBoxItemID != opening.ID {
			return fmt.Errorf("%w: biz_no %s owned by box item %d", errno.ErrIllegalState, opening.OrderID, collectible.SourceBoxItemID)
		}

		evt = event.BoxOpenedEvent{
			EventID:       uuid.NewString(),
			BoxItemID:     opening.ID,
			CollectibleID: collectible.ID,
			OwnerID:       opening.OwnerID,
			OccurredAt:    time.Now(),
		}
		if s.outboxTopic != "" && created {
			return tx.Outbox().Add(ctx, s.outboxTopic, strconv.FormatUint(opening.ID, 10), evt)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			monitor.Business.ObserveOpen("conflict")
			logger.Info("open box conflict", append(fields, zap.Uint64("version", item.Version))...)
			return nil, errno.ErrAlreadyOpening
		}
		if errors.Is(err, errno.ErrIllegalState) {
			monitor.Business.ObserveOpen("conflict")
			logger.Error("open box rejected: collectible belongs to another box item", append(fields, zap.Error(err))...)
			return nil, errno.ErrIllegalState
		}
		monitor.Business.ObserveOpen("error")
		logger.Error("open box failed", append(fields, zap.Error(err))...)
		return nil, mapBoxItemErr(err)
	}

	fields = append(fields, zap.Uint64("collectible_id", collectible.ID), zap.Bool("created", created))

	// 3. 发布事件，不等待铸造
	if err := s.publisher.Publish(event.TopicBoxOpened, evt); err != nil {
		logger.Warn("publish box opened event failed, left to reconciliation", append(fields, zap.Error(err))...)
	}

	monitor.Business.ObserveOpen("success")
	logger.Info("box opened", fields...)
	return collectible, nil
}

func (s *BoxService) GetBoxItem(ctx context.Context, id uint64) (*model.BoxItem, error) {
	item, err := s.store.BoxItems().Get(ctx, id)
	if err != nil {
		return nil, mapBoxItemErr(err)
	}
	return item, nil
}

func (s *BoxService) ListBoxItems(ctx context.Context, ownerID uint64, limit int) ([]model.BoxItem, error) {
	items, err := s.store.BoxItems().ListByOwner(ctx, ownerID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errno.ErrDatabase, err)
	}
	return items, nil
}

func (s *BoxService) GetCollectible(ctx context.Context, id uint64) (*model.Collectible, error) {
	c, err := s.store.Collectibles().Get(ctx, id)
	if err != nil {
		return nil, mapCollectibleErr(err)
	}
	return c, nil
}

func (s *BoxService) ListCollectibles(ctx context.Context, ownerID uint64, limit int) ([]model.Collectible, error) {
	list, err := s.store.Collectibles().ListByOwner(ctx, ownerID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errno.ErrDatabase, err)
	}
	return list, nil
}

func (s *BoxService) ListOperations(ctx context.Context, collectibleID uint64) ([]model.OperationRecord, error) {
	c, err := s.store.Collectibles().Get(ctx, collectibleID)
	if err != nil {
		return nil, mapCollectibleErr(err)
	}
	records, err := s.store.Operations().ListByBiz(ctx, c.BizType, c.BizNo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errno.ErrDatabase, err)
	}
	return records, nil
}

func newCollectible(item *model.BoxItem, serialNo string) *model.Collectible {
	return &model.Collectible{
		OwnerID:         item.OwnerID,
		SourceBoxItemID: item.ID,
		GoodsID:         item.GoodsID,
		GoodsType:       model.GoodsTypeBlindBox,
		SerialNo:        serialNo,
		Name:            item.CollectibleName,
		Cover:           item.CollectibleCover,
		PurchasePrice:   item.PurchasePrice,
		ReferencePrice:  item.ReferencePrice,
		Rarity:          item.Rarity,
		BizNo:           item.OrderID,
		BizType:         model.BizTypeBoxOpen,
	}
}

func mapBoxItemErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errno.ErrBoxItemNotFound
	case errors.Is(err, repository.ErrConflict):
		return errno.ErrIllegalState
	case errors.Is(err, repository.ErrDuplicate):
		return errno.ErrOrderAssigned
	default:
		return fmt.Errorf("%w: %v", errno.ErrDatabase, err)
	}
}

func mapCollectibleErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errno.ErrCollectibleNotFound
	}
	return fmt.Errorf("%w: %v", errno.ErrDatabase, err)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

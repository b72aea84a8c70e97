package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GIGOpenSource/Collide-sub009/internal/event"
	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/internal/repository"
	"github.com/GIGOpenSource/Collide-sub009/internal/service/mq"
	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
)

// MintListener 消费开盒事件并发起铸造
// 任何失败都只记录日志，账本中留下的 FAILED 记录交给对账任务
type MintListener struct {
	store  repository.Store
	minter *MintService
}

func NewMintListener(store repository.Store, minter *MintService) *MintListener {
	return &MintListener{store: store, minter: minter}
}

// HandleOpened event.Dispatcher 的订阅函数
func (l *MintListener) HandleOpened(ctx context.Context, env event.Envelope) {
	var evt event.BoxOpenedEvent
	switch p := env.Payload.(type) {
	case event.BoxOpenedEvent:
		evt = p
	case *event.BoxOpenedEvent:
		evt = *p
	default:
		logger.Error("unexpected box opened payload", zap.String("event_id", env.ID), zap.Any("payload", env.Payload))
		return
	}
	_ = l.Process(ctx, evt)
}

// MessageHandler 适配 MQ 消费者
// 只有存储错误会返回 error 让消息重投，外部调用失败一律确认
func (l *MintListener) MessageHandler(ctx context.Context) func(msg *mq.Message) error {
	return func(msg *mq.Message) error {
		var evt event.BoxOpenedEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			logger.Error("drop malformed box opened message", zap.String("id", msg.ID), zap.Error(err))
			return nil
		}
		err := l.Process(ctx, evt)
		if errors.Is(err, errno.ErrDatabase) {
			return err
		}
		return nil
	}
}

// Process 重新加载 BoxItem 与藏品后走统一的铸造路径
func (l *MintListener) Process(ctx context.Context, evt event.BoxOpenedEvent) error {
	fields := []zap.Field{
		zap.String("event_id", evt.EventID),
		zap.Uint64("box_item_id", evt.BoxItemID),
		zap.Uint64("collectible_id", evt.CollectibleID),
	}

	item, err := l.store.BoxItems().Get(ctx, evt.BoxItemID)
	if err != nil {
		logger.Error("mint listener: load box item failed", append(fields, zap.Error(err))...)
		return storageErr(err)
	}
	c, err := l.store.Collectibles().Get(ctx, evt.CollectibleID)
	if err != nil {
		logger.Error("mint listener: load collectible failed", append(fields, zap.Error(err))...)
		return storageErr(err)
	}

	if c.SourceBoxItemID != item.ID {
		logger.Error("mint listener: collectible does not belong to box item", fields...)
		return errno.ErrIllegalState
	}
	if item.State == model.BoxItemStateOpened && c.MintConfirmed {
		logger.Debug("mint listener: already minted", fields...)
		return nil
	}
	if item.State != model.BoxItemStateOpening && item.State != model.BoxItemStateOpened {
		logger.Error("mint listener: unexpected box item state", append(fields, zap.String("state", string(item.State)))...)
		return errno.ErrIllegalState
	}

	fields = append(fields, zap.String("idempotency_key", IdempotencyKeyOf(c)))
	out, err := l.minter.Mint(ctx, c)
	if err != nil {
		if errors.Is(err, errno.ErrOperationInProgress) {
			logger.Info("mint listener: operation in progress, skipped", fields...)
		} else {
			logger.Warn("mint listener: mint failed, left to reconciliation", append(fields, zap.Error(err))...)
		}
		return err
	}

	logger.Info("collectible minted", append(fields, zap.String("tx_hash", out.TxHash))...)
	return nil
}

func storageErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", errno.ErrDatabase, err)
}

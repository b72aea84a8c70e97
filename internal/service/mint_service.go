package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/GIGOpenSource/Collide-sub009/internal/chain"
	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/internal/repository"
	"github.com/GIGOpenSource/Collide-sub009/pkg/crypto_util"
	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
	"github.com/GIGOpenSource/Collide-sub009/pkg/monitor"
)

// MintService 铸造的唯一入口，MintListener 与 ReconcileJob 共用
// 保证两条路径的幂等键推导完全一致
type MintService struct {
	store     repository.Store
	ledger    *OperationLedger
	gateways  *chain.Registry
	chainType string
	timeout   time.Duration
}

func NewMintService(store repository.Store, ledger *OperationLedger, gateways *chain.Registry, chainType string, timeout time.Duration) *MintService {
	return &MintService{
		store:     store,
		ledger:    ledger,
		gateways:  gateways,
		chainType: chainType,
		timeout:   timeout,
	}
}

// IdempotencyKeyOf 藏品铸造的幂等键，即藏品 ID
func IdempotencyKeyOf(c *model.Collectible) string {
	return strconv.FormatUint(c.ID, 10)
}

// OperationOf 藏品对应的账本操作
func (s *MintService) OperationOf(c *model.Collectible) Operation {
	return Operation{
		ChainType:      s.chainType,
		BizID:          c.BizNo,
		BizType:        c.BizType,
		OperateType:    model.OperateTypeMint,
		IdempotencyKey: IdempotencyKeyOf(c),
	}
}

// Mint 通过账本铸造藏品，成功后推进 BoxItem 到 OPENED 并确认藏品
// 对已确认的藏品重复调用不会再次请求网关
func (s *MintService) Mint(ctx context.Context, c *model.Collectible) (*chain.MintOutcome, error) {
	gw, err := s.gateways.Get(s.chainType)
	if err != nil {
		return nil, err
	}

	op := s.OperationOf(c)
	req := &chain.MintRequest{
		IdempotencyKey: op.IdempotencyKey,
		Fingerprint:    fingerprint(c),
		BizID:          c.BizNo,
		BizType:        c.BizType,
		OwnerID:        c.OwnerID,
		CollectibleID:  c.ID,
		SerialNo:       c.SerialNo,
		Name:           c.Name,
		Cover:          c.Cover,
		Rarity:         c.Rarity,
	}

	rec, err := s.ledger.Execute(ctx, op, func(ctx context.Context) (interface{}, error) {
		return s.call(ctx, gw, req)
	})
	if err != nil {
		return nil, err
	}

	var out chain.MintOutcome
	if err := json.Unmarshal(rec.ResultPayload, &out); err != nil {
		return nil, fmt.Errorf("decode mint outcome of record %d: %w", rec.ID, err)
	}
	if err := s.finalize(ctx, c, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call 带超时的单次网关调用，超时与失败统一映射为 errno
func (s *MintService) call(ctx context.Context, gw chain.Gateway, req *chain.MintRequest) (*chain.MintOutcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := gw.Mint(callCtx, req)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		monitor.Business.ObserveMint(gw.Type(), "success", elapsed)
		return out, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		monitor.Business.ObserveMint(gw.Type(), "timeout", elapsed)
		return nil, fmt.Errorf("%w: %w", errno.ErrExternalCallTimeout, err)
	default:
		monitor.Business.ObserveMint(gw.Type(), "failed", elapsed)
		return nil, fmt.Errorf("%w: %w", errno.ErrExternalCallFailed, err)
	}
}

// finalize 先推进 BoxItem 再确认藏品
// 中途崩溃时藏品仍是未确认状态，对账会读取账本中的成功结果重新 finalize
func (s *MintService) finalize(ctx context.Context, c *model.Collectible, out *chain.MintOutcome) error {
	mintedAt := out.MintedAt
	if mintedAt.IsZero() {
		mintedAt = time.Now()
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.BoxItems().MarkOpened(ctx, c.SourceBoxItemID); err != nil {
			return fmt.Errorf("mark box item %d opened: %w", c.SourceBoxItemID, err)
		}
		if err := tx.Collectibles().ConfirmMint(ctx, c.ID, out.TxHash, mintedAt); err != nil {
			return fmt.Errorf("confirm collectible %d: %w", c.ID, err)
		}
		return nil
	})
	if err != nil {
		logger.Error("finalize mint failed",
			zap.Uint64("collectible_id", c.ID),
			zap.Uint64("box_item_id", c.SourceBoxItemID),
			zap.Error(err))
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: %v", errno.ErrIllegalState, err)
		}
		return fmt.Errorf("%w: %v", errno.ErrDatabase, err)
	}
	return nil
}

// fingerprint 请求内容指纹，便于外部服务核对同一幂等键的请求体是否一致
func fingerprint(c *model.Collectible) string {
	raw := fmt.Sprintf("%d|%d|%d|%s|%s|%s", c.ID, c.OwnerID, c.SourceBoxItemID, c.SerialNo, c.BizType, c.BizNo)
	return crypto_util.CalculateBlake3([]byte(raw))
}

package chain

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/GIGOpenSource/Collide-sub009/pkg/crypto_util"
)

// MockGateway 模拟链 (对应非生产环境的 profile)
// 交易哈希由幂等键确定性生成，同一请求重放得到同一个哈希
type MockGateway struct {
	latency time.Duration
	height  atomic.Uint64
}

func NewMockGateway(latency time.Duration) *MockGateway {
	g := &MockGateway{latency: latency}
	g.height.Store(1_000_000)
	return g
}

func (g *MockGateway) Type() string {
	return TypeMock
}

func (g *MockGateway) Mint(ctx context.Context, req *MintRequest) (*MintOutcome, error) {
	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	hash := crypto_util.CalculateKeccak256([]byte(req.BizType + ":" + req.BizID + ":" + req.IdempotencyKey))
	return &MintOutcome{
		ChainType:   TypeMock,
		TxHash:      "0x" + hash,
		TokenID:     req.SerialNo,
		BlockHeight: g.height.Add(1),
		MintedAt:    time.Now(),
	}, nil
}

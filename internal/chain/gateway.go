package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
)

// 支持的链类型
const (
	TypeMock    = "MOCK"    // 模拟链，不产生网络调用
	TypeJSONRPC = "JSONRPC" // 通过 JSON-RPC 调用外部铸造服务
)

// MintRequest 一次铸造请求
// IdempotencyKey 由账本生成，同一逻辑操作的每次重试都相同，外部服务可据此去重
type MintRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	Fingerprint    string `json:"fingerprint"`
	BizID          string `json:"biz_id"`
	BizType        string `json:"biz_type"`
	OwnerID        uint64 `json:"owner_id"`
	CollectibleID  uint64 `json:"collectible_id"`
	SerialNo       string `json:"serial_no"`
	Name           string `json:"name"`
	Cover          string `json:"cover"`
	Rarity         string `json:"rarity"`
}

// MintOutcome 铸造结果，会被完整写入账本的 result_payload
type MintOutcome struct {
	ChainType   string    `json:"chain_type"`
	TxHash      string    `json:"tx_hash"`
	TokenID     string    `json:"token_id"`
	BlockHeight uint64    `json:"block_height"`
	MintedAt    time.Time `json:"minted_at"`
}

// Gateway 外部铸造网络的抽象
// 实现方只负责一次网络调用，不做重试；重试由账本和对账任务负责
type Gateway interface {
	Type() string
	Mint(ctx context.Context, req *MintRequest) (*MintOutcome, error)
}

// Registry 按 chainType 选择网关实现
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway)}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Type()] = g
}

func (r *Registry) Get(chainType string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[chainType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errno.ErrUnknownChain, chainType)
	}
	return g, nil
}

// Types 返回已注册的链类型 (排序后)
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.gateways))
	for t := range r.gateways {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

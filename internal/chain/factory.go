package chain

import (
	"context"

	"github.com/GIGOpenSource/Collide-sub009/pkg/config"
)

// NewRegistryFromConfig 按配置构造网关注册表
// MOCK 始终可用，配置了 rpc_url 时额外注册 JSONRPC；cfg.Type 必须已注册
func NewRegistryFromConfig(ctx context.Context, cfg config.ChainConfig) (*Registry, func(), error) {
	registry := NewRegistry(NewMockGateway(0))
	cleanup := func() {}

	if cfg.RpcUrl != "" {
		gw, err := NewJSONRPCGateway(ctx, cfg.RpcUrl, cfg.RpcMethod)
		if err != nil {
			return nil, cleanup, err
		}
		registry.Register(gw)
		cleanup = gw.Close
	}

	if _, err := registry.Get(cfg.Type); err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return registry, cleanup, nil
}

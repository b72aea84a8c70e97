package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// JSONRPCGateway 生产环境网关: 调用托管铸造服务的 JSON-RPC 接口
//
//	--> {"jsonrpc":"2.0","id":1,"method":"nft_mint","params":[{...MintRequest}]}
//	<-- {"jsonrpc":"2.0","id":1,"result":{...MintOutcome}}
type JSONRPCGateway struct {
	client *rpc.Client
	method string
}

// NewJSONRPCGateway 创建网关，HTTP 端点是惰性连接的，这里不会发起网络请求
func NewJSONRPCGateway(ctx context.Context, url, method string) (*JSONRPCGateway, error) {
	if url == "" {
		return nil, errors.New("chain rpc_url is empty")
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	if method == "" {
		method = "nft_mint"
	}
	return &JSONRPCGateway{client: client, method: method}, nil
}

func (g *JSONRPCGateway) Type() string {
	return TypeJSONRPC
}

func (g *JSONRPCGateway) Mint(ctx context.Context, req *MintRequest) (*MintOutcome, error) {
	var out MintOutcome
	if err := g.client.CallContext(ctx, &out, g.method, req); err != nil {
		return nil, err
	}
	if out.TxHash == "" {
		return nil, errors.New("chain rpc returned empty tx hash")
	}
	out.ChainType = TypeJSONRPC
	return &out, nil
}

func (g *JSONRPCGateway) Close() {
	g.client.Close()
}

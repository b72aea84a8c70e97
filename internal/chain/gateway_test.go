package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GIGOpenSource/Collide-sub009/pkg/config"
	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewMockGateway(0))

	g, err := r.Get(TypeMock)
	require.NoError(t, err)
	assert.Equal(t, TypeMock, g.Type())

	_, err = r.Get("SOLANA")
	assert.ErrorIs(t, err, errno.ErrUnknownChain)

	assert.Equal(t, []string{TypeMock}, r.Types())
}

func TestMockGatewayDeterministicHash(t *testing.T) {
	g := NewMockGateway(0)
	req := &MintRequest{IdempotencyKey: "BOX_OPEN:ORD-1", BizID: "1", BizType: "BOX_OPEN", SerialNo: "SN-1"}

	first, err := g.Mint(context.Background(), req)
	require.NoError(t, err)
	second, err := g.Mint(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.TxHash, second.TxHash)
	assert.Len(t, first.TxHash, 66)
	assert.Equal(t, "SN-1", first.TokenID)
	assert.Greater(t, second.BlockHeight, first.BlockHeight)
}

func TestMockGatewayHonorsDeadline(t *testing.T) {
	g := NewMockGateway(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Mint(ctx, &MintRequest{IdempotencyKey: "k"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// rpcServer 模拟外部铸造服务的 JSON-RPC 端点
func rpcServer(t *testing.T, handle func(method string, params []json.RawMessage) (interface{}, *rpcError)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		result, rpcErr := handle(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func TestJSONRPCGatewayMint(t *testing.T) {
	var got MintRequest
	srv := rpcServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		assert.Equal(t, "nft_mint", method)
		require.Len(t, params, 1)
		require.NoError(t, json.Unmarshal(params[0], &got))
		return map[string]interface{}{"tx_hash": "0xfeed", "token_id": "77", "block_height": 12}, nil
	})
	defer srv.Close()

	g, err := NewJSONRPCGateway(context.Background(), srv.URL, "")
	require.NoError(t, err)
	defer g.Close()

	out, err := g.Mint(context.Background(), &MintRequest{IdempotencyKey: "BOX_OPEN:ORD-5", CollectibleID: 5})
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", out.TxHash)
	assert.Equal(t, "77", out.TokenID)
	assert.Equal(t, uint64(12), out.BlockHeight)
	assert.Equal(t, TypeJSONRPC, out.ChainType)
	assert.Equal(t, "BOX_OPEN:ORD-5", got.IdempotencyKey)
	assert.Equal(t, uint64(5), got.CollectibleID)
}

func TestJSONRPCGatewayError(t *testing.T) {
	srv := rpcServer(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "mint quota exceeded"}
	})
	defer srv.Close()

	g, err := NewJSONRPCGateway(context.Background(), srv.URL, "nft_mint")
	require.NoError(t, err)
	defer g.Close()

	_, err = g.Mint(context.Background(), &MintRequest{IdempotencyKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mint quota exceeded")
}

func TestJSONRPCGatewayRequiresURL(t *testing.T) {
	_, err := NewJSONRPCGateway(context.Background(), "", "")
	assert.Error(t, err)
}

func TestNewRegistryFromConfig(t *testing.T) {
	r, cleanup, err := NewRegistryFromConfig(context.Background(), config.ChainConfig{Type: TypeMock})
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, []string{TypeMock}, r.Types())

	// JSONRPC 没有 rpc_url 时不可用
	_, _, err = NewRegistryFromConfig(context.Background(), config.ChainConfig{Type: TypeJSONRPC})
	assert.ErrorIs(t, err, errno.ErrUnknownChain)

	r, cleanup, err = NewRegistryFromConfig(context.Background(), config.ChainConfig{Type: TypeJSONRPC, RpcUrl: "http://127.0.0.1:1"})
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, []string{TypeJSONRPC, TypeMock}, r.Types())
}

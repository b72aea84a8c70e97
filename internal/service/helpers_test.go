package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/GIGOpenSource/Collide-sub009/internal/chain"
	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/internal/repository"
	"github.com/GIGOpenSource/Collide-sub009/internal/testutil"
)

const fakeChain = "FAKE"

var errChainDown = errors.New("chain node unavailable")

// fakeGateway 可编排失败次数与延迟的网关
type fakeGateway struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int // 每个幂等键剩余的失败次数
	failAll  bool
	delay    time.Duration
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:    make(map[string]int),
		failures: make(map[string]int),
	}
}

func (g *fakeGateway) Type() string { return fakeChain }

func (g *fakeGateway) Mint(ctx context.Context, req *chain.MintRequest) (*chain.MintOutcome, error) {
	g.mu.Lock()
	g.calls[req.IdempotencyKey]++
	fail := g.failAll || g.failures[req.IdempotencyKey] > 0
	if g.failures[req.IdempotencyKey] > 0 {
		g.failures[req.IdempotencyKey]--
	}
	delay := g.delay
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errChainDown
	}
	return &chain.MintOutcome{
		ChainType: fakeChain,
		TxHash:    "0xtx" + req.IdempotencyKey,
		TokenID:   req.SerialNo,
		MintedAt:  time.Now(),
	}, nil
}

func (g *fakeGateway) failNext(key string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[key] = n
}

func (g *fakeGateway) setFailAll(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failAll = v
}

func (g *fakeGateway) callCount(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

func (g *fakeGateway) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}

// recordingPublisher 记录发布的事件，err 非空时模拟队列已满
type recordingPublisher struct {
	mu     sync.Mutex
	events []interface{}
	err    error
}

func (p *recordingPublisher) Publish(_ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, payload)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type testEnv struct {
	db        *gorm.DB
	store     *repository.GormStore
	gateway   *fakeGateway
	ledger    *OperationLedger
	minter    *MintService
	boxes     *BoxService
	listener  *MintListener
	publisher *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	gw := newFakeGateway()
	ledger := NewOperationLedger(store.Operations(), 5*time.Minute)
	minter := NewMintService(store, ledger, chain.NewRegistry(gw), fakeChain, time.Second)
	pub := &recordingPublisher{}

	return &testEnv{
		db:        db,
		store:     store,
		gateway:   gw,
		ledger:    ledger,
		minter:    minter,
		boxes:     NewBoxService(store, pub, "blindbox_events_opened"),
		listener:  NewMintListener(store, minter),
		publisher: pub,
	}
}

func (e *testEnv) newReconcileJob(pageSize, maxPages int) *ReconcileJob {
	return NewReconcileJob(e.store, e.minter, ReconcileConfig{
		PageSize:    pageSize,
		MaxPages:    maxPages,
		Concurrency: 2,
	})
}

// assignedItem 创建一个已分配给 owner 的格子
func (e *testEnv) assignedItem(t *testing.T, owner uint64, orderID string) *model.BoxItem {
	t.Helper()
	ctx := context.Background()

	item := &model.BoxItem{
		BoxID:            7,
		CollectibleName:  "Lucky Cat",
		CollectibleCover: "https://cdn.example.com/cat.png",
		Rarity:           "SR",
		PurchasePrice:    decimal.RequireFromString("29.9"),
		ReferencePrice:   decimal.RequireFromString("88"),
	}
	require.NoError(t, e.boxes.Allocate(ctx, item))
	assigned, err := e.boxes.Assign(ctx, item.ID, owner, orderID)
	require.NoError(t, err)
	return assigned
}

// openedCollectibles 开 n 个盒子但不触发铸造
func (e *testEnv) openedCollectibles(t *testing.T, n int) []*model.Collectible {
	t.Helper()
	out := make([]*model.Collectible, 0, n)
	for i := 0; i < n; i++ {
		item := e.assignedItem(t, 100, fmt.Sprintf("ORD-%d", i))
		c, err := e.boxes.Open(context.Background(), item.ID, 100)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func (e *testEnv) operations(t *testing.T, c *model.Collectible) []model.OperationRecord {
	t.Helper()
	records, err := e.store.Operations().ListByBiz(context.Background(), c.BizType, c.BizNo)
	require.NoError(t, err)
	return records
}

func (e *testEnv) boxItem(t *testing.T, id uint64) *model.BoxItem {
	t.Helper()
	item, err := e.store.BoxItems().Get(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (e *testEnv) collectible(t *testing.T, id uint64) *model.Collectible {
	t.Helper()
	c, err := e.store.Collectibles().Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

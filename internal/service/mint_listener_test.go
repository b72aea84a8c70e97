package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GIGOpenSource/Collide-sub009/internal/event"
	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/internal/service/mq"
	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
)

func openedEvent(item *model.BoxItem, c *model.Collectible) event.BoxOpenedEvent {
	return event.BoxOpenedEvent{EventID: "evt-1", BoxItemID: item.ID, CollectibleID: c.ID, OwnerID: c.OwnerID}
}

func TestMintListenerMints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.assignedItem(t, 1, "ORD-1")
	c, err := env.boxes.Open(ctx, item.ID, 1)
	require.NoError(t, err)

	require.NoError(t, env.listener.Process(ctx, openedEvent(item, c)))

	assert.Equal(t, model.BoxItemStateOpened, env.boxItem(t, item.ID).State)
	got := env.collectible(t, c.ID)
	assert.True(t, got.MintConfirmed)
	assert.Equal(t, "0xtx"+IdempotencyKeyOf(c), got.MintTxHash)
	assert.NotNil(t, got.MintedAt)

	records := env.operations(t, c)
	require.Len(t, records, 1)
	assert.Equal(t, model.OperationSucceeded, records[0].State)
	assert.Equal(t, IdempotencyKeyOf(c), records[0].IdempotencyKey)
	assert.Equal(t, fakeChain, records[0].ChainType)

	// 重复投递不会再次调用网关
	require.NoError(t, env.listener.Process(ctx, openedEvent(item, c)))
	assert.Equal(t, 1, env.gateway.callCount(IdempotencyKeyOf(c)))
}

func TestMintListenerFailureLeavesFailedRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.assignedItem(t, 1, "ORD-2")
	c, err := env.boxes.Open(ctx, item.ID, 1)
	require.NoError(t, err)
	env.gateway.failNext(IdempotencyKeyOf(c), 1)

	// HandleOpened 不会向 dispatcher 抛出错误
	env.listener.HandleOpened(ctx, event.Envelope{Topic: event.TopicBoxOpened, Payload: openedEvent(item, c)})

	assert.Equal(t, model.BoxItemStateOpening, env.boxItem(t, item.ID).State)
	assert.False(t, env.collectible(t, c.ID).MintConfirmed)
	records := env.operations(t, c)
	require.Len(t, records, 1)
	assert.Equal(t, model.OperationFailed, records[0].State)
	assert.Contains(t, records[0].ErrorMessage, errChainDown.Error())
}

func TestMintTimeoutIsRecordedAsFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.minter.timeout = 20 * time.Millisecond
	env.gateway.delay = time.Second

	item := env.assignedItem(t, 1, "ORD-SLOW")
	c, err := env.boxes.Open(ctx, item.ID, 1)
	require.NoError(t, err)

	start := time.Now()
	err = env.listener.Process(ctx, openedEvent(item, c))
	assert.ErrorIs(t, err, errno.ErrExternalCallTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	records := env.operations(t, c)
	require.Len(t, records, 1)
	assert.Equal(t, model.OperationFailed, records[0].State)
	assert.Nil(t, records[0].GuardKey)
}

func TestMintUnknownChain(t *testing.T) {
	env := newTestEnv(t)
	env.minter.chainType = "SOLANA"
	item := env.assignedItem(t, 1, "ORD-3")
	c, err := env.boxes.Open(context.Background(), item.ID, 1)
	require.NoError(t, err)

	_, err = env.minter.Mint(context.Background(), c)
	assert.ErrorIs(t, err, errno.ErrUnknownChain)
	assert.Empty(t, env.operations(t, c))
}

func TestMintListenerMessageHandler(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.assignedItem(t, 1, "ORD-MQ")
	c, err := env.boxes.Open(ctx, item.ID, 1)
	require.NoError(t, err)

	handle := env.listener.MessageHandler(ctx)

	// 格式错误的消息被确认丢弃
	assert.NoError(t, handle(&mq.Message{ID: "1-0", Payload: []byte("{not json")}))

	// 外部调用失败不要求重投
	env.gateway.failNext(IdempotencyKeyOf(c), 1)
	payload, err := json.Marshal(openedEvent(item, c))
	require.NoError(t, err)
	assert.NoError(t, handle(&mq.Message{ID: "2-0", Payload: payload}))
	assert.False(t, env.collectible(t, c.ID).MintConfirmed)

	assert.NoError(t, handle(&mq.Message{ID: "3-0", Payload: payload}))
	assert.True(t, env.collectible(t, c.ID).MintConfirmed)
}

// 完整链路: dispatcher -> listener -> gateway
func TestOpenBoxDispatchedMint(t *testing.T) {
	env := newTestEnv(t)
	d := event.NewDispatcher(16, 2)
	d.Subscribe(event.TopicBoxOpened, env.listener.HandleOpened)
	env.boxes = NewBoxService(env.store, d, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	item := env.assignedItem(t, 1, "ORD-E2E")
	c, err := env.boxes.Open(ctx, item.ID, 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.store.Collectibles().Get(context.Background(), c.ID)
		return err == nil && got.MintConfirmed
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, model.BoxItemStateOpened, env.boxItem(t, item.ID).State)
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GIGOpenSource/Collide-sub009/internal/event"
	"github.com/GIGOpenSource/Collide-sub009/internal/model"
)

type fakeProducer struct {
	mu   sync.Mutex
	sent []string // topic/key
	err  error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, topic+"/"+key)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestRelayPublishesOutbox(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.assignedItem(t, 1, "ORD-RELAY")
	_, err := env.boxes.Open(ctx, item.ID, 1)
	require.NoError(t, err)

	producer := &fakeProducer{}
	relay := NewRelayService(env.store.Outbox(), producer, RelayConfig{BatchSize: 10})

	sent, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{event.TopicBoxOpened + "/" + "1"}, producer.sent)

	pending, err := env.store.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// 已发送的消息不会重复投递
	sent, err = relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestRelayGivesUpAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.Outbox().Add(ctx, event.TopicBoxOpened, "9", map[string]int{"box_item_id": 9}))

	producer := &fakeProducer{err: errors.New("broker down")}
	relay := NewRelayService(env.store.Outbox(), producer, RelayConfig{BatchSize: 10, MaxAttempts: 2})

	for i := 0; i < 2; i++ {
		sent, err := relay.ProcessOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, sent)
	}

	var msg model.OutboxMessage
	require.NoError(t, env.db.First(&msg).Error)
	assert.Equal(t, model.OutboxFailed, msg.Status)
	assert.Equal(t, 2, msg.AttemptCount)
	assert.Equal(t, "broker down", msg.LastError)
}

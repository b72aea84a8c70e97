package event

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDelivers(t *testing.T) {
	d := NewDispatcher(16, 4)

	var mu sync.Mutex
	got := make(map[uint64]bool)
	var wg sync.WaitGroup
	wg.Add(10)
	d.Subscribe(TopicBoxOpened, func(_ context.Context, env Envelope) {
		defer wg.Done()
		evt := env.Payload.(BoxOpenedEvent)
		mu.Lock()
		got[evt.BoxItemID] = true
		mu.Unlock()
	})

	d.Start(context.Background())
	defer d.Stop()

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, d.Publish(TopicBoxOpened, BoxOpenedEvent{BoxItemID: i}))
	}
	waitTimeout(t, &wg, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 10)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// 未启动的 dispatcher 不会消费，队列容量即可投递的上限
	d := NewDispatcher(2, 1)

	require.NoError(t, d.Publish(TopicBoxOpened, BoxOpenedEvent{BoxItemID: 1}))
	require.NoError(t, d.Publish(TopicBoxOpened, BoxOpenedEvent{BoxItemID: 2}))

	start := time.Now()
	err := d.Publish(TopicBoxOpened, BoxOpenedEvent{BoxItemID: 3})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 2, d.Pending())
}

func TestDispatcherRecoversPanic(t *testing.T) {
	d := NewDispatcher(8, 1)

	var calls atomic.Int32
	done := make(chan struct{})
	d.Subscribe("t", func(_ context.Context, env Envelope) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		close(done)
	})
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Publish("t", 1))
	require.NoError(t, d.Publish("t", 2))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive handler panic")
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcherStop(t *testing.T) {
	d := NewDispatcher(8, 2)

	release := make(chan struct{})
	entered := make(chan struct{})
	var finished atomic.Bool
	d.Subscribe("t", func(_ context.Context, _ Envelope) {
		close(entered)
		<-release
		finished.Store(true)
	})
	d.Start(context.Background())
	require.NoError(t, d.Publish("t", nil))
	<-entered

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	// Stop 必须等待在途 handler
	select {
	case <-stopped:
		t.Fatal("Stop returned before in-flight handler finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-stopped
	assert.True(t, finished.Load())

	assert.ErrorIs(t, d.Publish("t", nil), ErrStopped)
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for handlers")
	}
}

package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
	"github.com/GIGOpenSource/Collide-sub009/pkg/monitor"
)

var (
	// ErrQueueFull 队列已满，事件被丢弃
	ErrQueueFull = errors.New("event queue full")
	// ErrStopped dispatcher 已停止
	ErrStopped = errors.New("event dispatcher stopped")
)

// Envelope 队列中的一条事件
type Envelope struct {
	ID         string
	Topic      string
	Payload    interface{}
	EnqueuedAt time.Time
}

// Handler 事件处理函数，运行在 dispatcher 的 worker 上
type Handler func(ctx context.Context, env Envelope)

// Dispatcher 进程内异步事件分发 (at-most-once)
//
// Publish 永不阻塞调用方: 队列满时直接丢弃并记录日志，由对账任务兜底。
// 同一 topic 可以有多个订阅者，它们在同一个 worker 上依次执行。
type Dispatcher struct {
	queue   chan Envelope
	workers int

	mu       sync.RWMutex
	handlers map[string][]Handler

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
	stopped bool
}

func NewDispatcher(queueSize, workers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:    make(chan Envelope, queueSize),
		workers:  workers,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe 注册处理函数，应在 Start 之前调用
func (d *Dispatcher) Subscribe(topic string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = append(d.handlers[topic], h)
}

// Publish 非阻塞投递
func (d *Dispatcher) Publish(topic string, payload interface{}) error {
	d.mu.RLock()
	stopped := d.stopped
	d.mu.RUnlock()
	if stopped {
		return ErrStopped
	}

	env := Envelope{
		ID:         uuid.NewString(),
		Topic:      topic,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}

	select {
	case d.queue <- env:
		return nil
	default:
		monitor.Business.ObserveDropped(topic)
		logger.Warn("event dropped: queue full",
			zap.String("topic", topic),
			zap.String("event_id", env.ID),
			zap.Int("capacity", cap(d.queue)))
		return fmt.Errorf("%w: topic=%s", ErrQueueFull, topic)
	}
}

// Start 启动 worker，重复调用无效果
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	logger.Info("event dispatcher started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.queue)))
}

// Stop 停止接收新事件并等待正在执行的 handler 结束
// 队列中尚未被取走的事件直接丢弃
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	logger.Info("event dispatcher stopped", zap.Int("discarded", len(d.queue)))
}

// Pending 当前排队中的事件数
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-d.queue:
			d.dispatch(ctx, id, env)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, workerID int, env Envelope) {
	d.mu.RLock()
	handlers := d.handlers[env.Topic]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		logger.Debug("no subscriber for event", zap.String("topic", env.Topic), zap.String("event_id", env.ID))
		return
	}

	for _, h := range handlers {
		d.invoke(ctx, workerID, h, env)
	}
}

// invoke 执行单个 handler，捕获 panic 避免 worker 退出
func (d *Dispatcher) invoke(ctx context.Context, workerID int, h Handler, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panic",
				zap.Int("worker", workerID),
				zap.String("topic", env.Topic),
				zap.String("event_id", env.ID),
				zap.Any("panic", r))
		}
	}()
	h(ctx, env)
}

package mq

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
)

// KafkaProducer 实现 Producer 接口
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer 创建 Kafka 生产者
// Writer 不绑定 Topic，由每条消息指定
func NewKafkaProducer(brokers []string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{}, // 按 Key 哈希，同一个 box item 的消息落在同一分区
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write error: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer 实现 Consumer 接口
//
// 处理失败的消息原地退避重试，成功后才提交 offset；
// 同一分区的后续消息在此期间不会被处理，因此不会越过失败消息提交。
type KafkaConsumer struct {
	brokers []string
	groupID string

	retryBackoff time.Duration
	maxBackoff   time.Duration

	mu     sync.Mutex
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		brokers:      brokers,
		groupID:      groupID,
		retryBackoff: time.Second,
		maxBackoff:   30 * time.Second,
	}
}

// Subscribe 消费循环，处理成功后才提交 offset
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		GroupID:     c.groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	c.mu.Lock()
	c.reader = reader
	c.mu.Unlock()
	defer func() { _ = c.Close() }()

	logger.Info("kafka consumer started", zap.String("topic", topic), zap.String("group", c.groupID))

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("kafka fetch failed", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		msg := &Message{
			ID:      strconv.Itoa(m.Partition) + "/" + strconv.FormatInt(m.Offset, 10),
			Topic:   topic,
			Key:     string(m.Key),
			Payload: m.Value,
		}
		if !c.handleWithRetry(ctx, msg, handler) {
			// ctx 已取消，不提交，重启后从该 offset 重新投递
			return nil
		}
		if err := reader.CommitMessages(ctx, m); err != nil {
			logger.Warn("kafka commit failed", zap.String("id", msg.ID), zap.Error(err))
		}
	}
}

// handleWithRetry 直到 handler 成功才返回 true，ctx 取消时返回 false
func (c *KafkaConsumer) handleWithRetry(ctx context.Context, msg *Message, handler func(msg *Message) error) bool {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		err := handler(msg)
		if err == nil {
			return true
		}
		logger.Warn("kafka message handler failed, retrying",
			zap.String("id", msg.ID), zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// Close 可重复调用
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	reader := c.reader
	c.reader = nil
	c.mu.Unlock()
	if reader == nil {
		return nil
	}
	return reader.Close()
}

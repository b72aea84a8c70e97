package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
)

// RedisProducer 基于 Redis Streams 的 Producer
type RedisProducer struct {
	client *redis.Client
	maxLen int64
}

// NewRedisProducer maxLen <= 0 表示不裁剪 stream
func NewRedisProducer(client *redis.Client, maxLen int64) *RedisProducer {
	return &RedisProducer{client: client, maxLen: maxLen}
}

// Publish XADD <topic> * key <key> payload <payload>
func (p *RedisProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"key":     key,
			"payload": payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd error: %w", err)
	}
	return nil
}

// Close 连接由调用方管理
func (p *RedisProducer) Close() error {
	return nil
}

// RedisConsumer 基于 Consumer Group 的 Redis Streams 消费者
//
// handler 返回 error 的消息不 ACK，留在 PEL 中；
// 空闲超过 claimIdle 后通过 XAUTOCLAIM 重新认领并再次投递。
type RedisConsumer struct {
	client *redis.Client
	group  string
	name   string

	block     time.Duration // XREADGROUP 阻塞时长
	claimIdle time.Duration // PEL 中的消息空闲多久后重投
	batch     int64
}

func NewRedisConsumer(client *redis.Client, group, name string) *RedisConsumer {
	return &RedisConsumer{
		client:    client,
		group:     group,
		name:      name,
		block:     2 * time.Second,
		claimIdle: 30 * time.Second,
		batch:     16,
	}
}

func (c *RedisConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	if err := c.ensureGroup(ctx, topic); err != nil {
		return err
	}

	logger.Info("redis stream consumer started",
		zap.String("topic", topic), zap.String("group", c.group), zap.String("consumer", c.name))

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.poll(ctx, topic, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("redis stream read failed", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
		}
	}
}

// ensureGroup XGROUP CREATE <stream> <group> 0 MKSTREAM
// 从 0 开始，消费组创建前已写入的消息也能被处理
func (c *RedisConsumer) ensureGroup(ctx context.Context, topic string) error {
	err := c.client.XGroupCreateMkStream(ctx, topic, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// poll 先重投 PEL 中超时未确认的消息，再读取新消息
func (c *RedisConsumer) poll(ctx context.Context, topic string, handler func(msg *Message) error) error {
	claimed, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   topic,
		Group:    c.group,
		Consumer: c.name,
		MinIdle:  c.claimIdle,
		Start:    "0-0",
		Count:    c.batch,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis xautoclaim: %w", err)
	}
	for _, x := range claimed {
		logger.Info("redis stream redeliver pending message", zap.String("id", x.ID))
		c.handle(ctx, topic, x, handler)
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{topic, ">"},
		Count:    c.batch,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		for _, x := range stream.Messages {
			c.handle(ctx, topic, x, handler)
		}
	}
	return nil
}

func (c *RedisConsumer) handle(ctx context.Context, topic string, x redis.XMessage, handler func(msg *Message) error) {
	val, ok := x.Values["payload"].(string)
	if !ok {
		// 格式错误的消息直接 ACK，避免反复投递
		logger.Warn("redis stream message missing payload", zap.String("id", x.ID))
		c.ack(ctx, topic, x.ID)
		return
	}
	key, _ := x.Values["key"].(string)

	msg := &Message{
		ID:      x.ID,
		Topic:   topic,
		Key:     key,
		Payload: []byte(val),
	}
	if err := handler(msg); err != nil {
		// 不 ACK，空闲超过 claimIdle 后由 XAUTOCLAIM 重投
		logger.Warn("redis stream handler failed", zap.String("id", x.ID), zap.Error(err))
		return
	}
	c.ack(ctx, topic, x.ID)
}

func (c *RedisConsumer) ack(ctx context.Context, topic, id string) {
	if err := c.client.XAck(ctx, topic, c.group, id).Err(); err != nil {
		logger.Warn("redis stream ack failed", zap.String("id", id), zap.Error(err))
	}
}

// Close 连接由调用方管理
func (c *RedisConsumer) Close() error {
	return nil
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GIGOpenSource/Collide-sub009/internal/repository"
	"github.com/GIGOpenSource/Collide-sub009/internal/service/mq"
	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
	"github.com/GIGOpenSource/Collide-sub009/pkg/monitor"
)

type RelayConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// RelayService 负责将本地消息表的消息搬运到 MQ
// 发送成功后才标记 SENT，属于至少一次投递，消费方 (MintListener) 依赖账本幂等
type RelayService struct {
	outbox   repository.OutboxRepository
	producer mq.Producer
	cfg      RelayConfig
}

func NewRelayService(outbox repository.OutboxRepository, producer mq.Producer, cfg RelayConfig) *RelayService {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &RelayService{
		outbox:   outbox,
		producer: producer,
		cfg:      cfg,
	}
}

// Start 轮询直到 ctx 取消
func (s *RelayService) Start(ctx context.Context) {
	logger.Info("outbox relay started", zap.Duration("interval", s.cfg.Interval))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := s.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("outbox relay batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 投递一批 PENDING 消息，返回成功条数
func (s *RelayService) ProcessOnce(ctx context.Context) (int, error) {
	messages, err := s.outbox.ListPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range messages {
		if err := s.producer.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload); err != nil {
			logger.Warn("outbox publish failed",
				zap.Uint64("outbox_id", msg.ID),
				zap.Int("attempt", msg.AttemptCount+1),
				zap.Error(err))
			if err := s.outbox.MarkAttemptFailed(ctx, msg.ID, err.Error(), s.cfg.MaxAttempts); err != nil {
				logger.Error("outbox mark attempt failed", zap.Uint64("outbox_id", msg.ID), zap.Error(err))
			}
			continue
		}

		// 如果这里更新失败，下次还会发
		if err := s.outbox.MarkSent(ctx, msg.ID); err != nil {
			logger.Error("outbox mark sent failed", zap.Uint64("outbox_id", msg.ID), zap.Error(err))
			continue
		}
		monitor.Business.ObserveRelay(msg.Topic)
		sent++
	}
	return sent, nil
}

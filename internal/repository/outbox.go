package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/GIGOpenSource/Collide-sub009/internal/model"
)

type OutboxRepo struct {
	db *gorm.DB
}

func (r *OutboxRepo) Add(ctx context.Context, topic, key string, payload interface{}) error {
	if err := model.CreateOutboxMessage(r.db.WithContext(ctx), topic, key, payload); err != nil {
		return wrapErr("create outbox message", err)
	}
	return nil
}

func (r *OutboxRepo) ListPending(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	var messages []model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, wrapErr("list outbox", err)
	}
	return messages, nil
}

func (r *OutboxRepo) MarkSent(ctx context.Context, id uint64) error {
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.OutboxSent,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
	if err != nil {
		return wrapErr("mark outbox sent", err)
	}
	return nil
}

func (r *OutboxRepo) MarkAttemptFailed(ctx context.Context, id uint64, errMsg string, maxAttempts int) error {
	var msg model.OutboxMessage
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return wrapErr("get outbox message", err)
	}

	status := model.OutboxPending
	if msg.AttemptCount+1 >= maxAttempts {
		status = model.OutboxFailed
	}
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    errMsg,
		}).Error
	if err != nil {
		return wrapErr("mark outbox failed", err)
	}
	return nil
}

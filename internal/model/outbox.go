package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

// OutboxMessage 本地消息表 (Transactional Outbox)
type OutboxMessage struct {
	ID           uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic        string         `gorm:"type:varchar(255);not null" json:"topic"`
	MessageKey   string         `gorm:"type:varchar(128)" json:"message_key"` // 分区键
	Payload      datatypes.JSON `gorm:"not null" json:"payload"`
	Status       string         `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"` // PENDING, SENT, FAILED
	AttemptCount int            `gorm:"not null;default:0" json:"attempt_count"`
	LastError    string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// CreateOutboxMessage 在同一个事务中创建业务数据和 Outbox 消息
func CreateOutboxMessage(tx *gorm.DB, topic, key string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := OutboxMessage{
		Topic:      topic,
		MessageKey: key,
		Payload:    datatypes.JSON(payloadBytes),
		Status:     OutboxPending,
	}

	return tx.Create(&msg).Error
}

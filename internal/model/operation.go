package model

import (
	"time"

	"gorm.io/datatypes"
)

type OperationState string

const (
	OperationProcessing OperationState = "PROCESSING"
	OperationSucceeded  OperationState = "SUCCEEDED"
	OperationFailed     OperationState = "FAILED"
)

const (
	OperateTypeMint = "MINT"
)

// OperationRecord 外部链调用流水 (幂等账本)
// 每次调用外部网关前插入一条 PROCESSING 记录，调用返回后更新为 SUCCEEDED / FAILED，从不删除。
//
// GuardKey 在 PROCESSING / SUCCEEDED 时等于 biz_type:biz_id:idempotency_key，FAILED 时为 NULL。
// 其上的唯一索引保证同一逻辑操作同时只有一个在途尝试，且最多一条 SUCCEEDED。
type OperationRecord struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainType      string         `gorm:"type:varchar(32);not null" json:"chain_type"`
	BizID          string         `gorm:"type:varchar(64);not null;index:idx_operation_biz" json:"biz_id"`
	BizType        string         `gorm:"type:varchar(32);not null;index:idx_operation_biz" json:"biz_type"`
	OperateType    string         `gorm:"type:varchar(32);not null" json:"operate_type"`
	IdempotencyKey string         `gorm:"type:varchar(128);not null;index" json:"idempotency_key"`
	GuardKey       *string        `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	State          OperationState `gorm:"type:varchar(16);not null;index" json:"state"`
	ResultPayload  datatypes.JSON `json:"result_payload,omitempty"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

func (OperationRecord) TableName() string {
	return "operation_records"
}

// GuardKeyOf 计算逻辑操作的唯一键
func GuardKeyOf(bizType, bizID, idempotencyKey string) string {
	return bizType + ":" + bizID + ":" + idempotencyKey
}

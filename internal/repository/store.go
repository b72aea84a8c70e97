package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormStore 基于 gorm 的 Store 实现 (生产环境 PostgreSQL，测试使用 SQLite)
type GormStore struct {
	db *gorm.DB

	boxItems     *BoxItemRepo
	collectibles *CollectibleRepo
	operations   *OperationRepo
	outbox       *OutboxRepo
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:           db,
		boxItems:     &BoxItemRepo{db: db},
		collectibles: &CollectibleRepo{db: db},
		operations:   &OperationRepo{db: db},
		outbox:       &OutboxRepo{db: db},
	}
}

func (s *GormStore) BoxItems() BoxItemRepository         { return s.boxItems }
func (s *GormStore) Collectibles() CollectibleRepository { return s.collectibles }
func (s *GormStore) Operations() OperationRepository     { return s.operations }
func (s *GormStore) Outbox() OutboxRepository            { return s.outbox }

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// DB 返回底层连接，仅供迁移与健康检查使用
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func wrapErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

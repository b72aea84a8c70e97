package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "github.com/GIGOpenSource/Collide-sub009/pkg/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns int
	MaxOpenConns int
	Debug        bool // 打印 SQL 语句方便调试
}

// ConnectPostgres 连接到 PostgreSQL 数据库
// dsn: "host=localhost user=gorm password=gorm dbname=gorm port=9920 sslmode=disable"
func ConnectPostgres(dsn string, pool PoolConfig) (*gorm.DB, error) {
	logMode := logger.Warn
	if pool.Debug {
		logMode = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logMode),
		TranslateError: true, // 唯一约束冲突转换为 gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 连接池配置
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns) // 空闲连接数
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns) // 最大连接数
	}
	sqlDB.SetConnMaxLifetime(time.Hour) // 连接最大存活时间

	applog.Info("PostgreSQL 连接成功", zap.Int("max_open_conns", pool.MaxOpenConns))
	return db, nil
}

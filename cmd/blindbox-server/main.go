package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GIGOpenSource/Collide-sub009/internal/chain"
	"github.com/GIGOpenSource/Collide-sub009/internal/event"
	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/internal/repository"
	"github.com/GIGOpenSource/Collide-sub009/internal/server"
	"github.com/GIGOpenSource/Collide-sub009/internal/service"
	"github.com/GIGOpenSource/Collide-sub009/internal/service/mq"
	"github.com/GIGOpenSource/Collide-sub009/pkg/config"
	"github.com/GIGOpenSource/Collide-sub009/pkg/database"
	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
	"github.com/GIGOpenSource/Collide-sub009/pkg/utils/lock"
)

// @title Blind Box Server API
// @version 1.0
// @description 盲盒开盒与藏品铸造对账服务

// @host localhost:8080
// @BasePath /
func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.InitWithConfig(cfg.App.Env, cfg.Log)
	defer logger.Sync()

	if cfg.Reconcile.StaleAfter <= cfg.Chain.Timeout {
		// 否则仍在等待网关返回的尝试会被判定为崩溃遗留
		logger.Warn("reconcile.stale_after should exceed chain.timeout",
			zap.Duration("stale_after", cfg.Reconcile.StaleAfter),
			zap.Duration("chain_timeout", cfg.Chain.Timeout))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. 连接数据库
	db, err := database.ConnectPostgres(cfg.DB.DSN(), database.PoolConfig{
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		Debug:        cfg.App.Env == "development",
	})
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3. 执行数据库迁移
	if cfg.App.Env == "development" {
		logger.Info("开发环境: 自动迁移 Schema (GORM AutoMigrate)...")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
	}

	// 4. 连接 Redis (分布式锁 + Redis Streams)
	// 没有 Redis 时退化为单实例锁，且不启用 MQ
	var rdb *redis.Client
	var locker lock.DistributedLock = lock.NewLocalLock()
	if cfg.Redis.Addr != "" {
		rdb, err = database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis 不可用，使用本地锁", zap.Error(err))
			rdb = nil
		} else {
			locker = lock.NewRedisLock(rdb)
		}
	}

	// 5. 链网关
	gateways, closeGateways, err := chain.NewRegistryFromConfig(ctx, cfg.Chain)
	if err != nil {
		logger.Fatal("初始化链网关失败", zap.Error(err), zap.String("chain_type", cfg.Chain.Type))
	}
	defer closeGateways()
	logger.Info("链网关已就绪", zap.String("chain_type", cfg.Chain.Type), zap.Strings("registered", gateways.Types()))

	// 6. 核心服务
	store := repository.NewStore(db)
	ledger := service.NewOperationLedger(store.Operations(), cfg.Reconcile.StaleAfter)
	minter := service.NewMintService(store, ledger, gateways, cfg.Chain.Type, cfg.Chain.Timeout)
	listener := service.NewMintListener(store, minter)

	dispatcher := event.NewDispatcher(cfg.Dispatcher.QueueSize, cfg.Dispatcher.Workers)
	dispatcher.Subscribe(event.TopicBoxOpened, listener.HandleOpened)
	dispatcher.Start(ctx)

	// 7. 消息队列: outbox relay 与可选的开盒事件消费
	producer, consumer := newMQ(cfg, rdb)
	outboxTopic := ""
	if producer != nil {
		outboxTopic = cfg.MQ.OpenedTopic
		relay := service.NewRelayService(store.Outbox(), producer, service.RelayConfig{
			Interval:    cfg.Relay.Interval,
			BatchSize:   cfg.Relay.BatchSize,
			MaxAttempts: cfg.Relay.MaxAttempts,
		})
		go relay.Start(ctx)
	}
	if consumer != nil && cfg.MQ.ConsumeOpened {
		go func() {
			if err := consumer.Subscribe(ctx, cfg.MQ.OpenedTopic, listener.MessageHandler(ctx)); err != nil {
				logger.Error("开盒事件消费退出", zap.Error(err))
			}
		}()
	}

	boxes := service.NewBoxService(store, dispatcher, outboxTopic)
	job := service.NewReconcileJob(store, minter, service.ReconcileConfig{
		PageSize:    cfg.Reconcile.PageSize,
		MaxPages:    cfg.Reconcile.MaxPages,
		Concurrency: cfg.Reconcile.Concurrency,
		MintQPS:     cfg.Reconcile.MintQPS,
		RunTimeout:  cfg.Reconcile.LockTTL,
	})

	// 8. 定时对账
	cronService := service.NewCronService(locker, job, cfg.Reconcile.Spec, cfg.Reconcile.LockTTL)
	if err := cronService.Start(); err != nil {
		logger.Fatal("Cron 启动失败", zap.Error(err), zap.String("spec", cfg.Reconcile.Spec))
	}

	// 9. HTTP
	r := server.NewHTTPRouter(server.Deps{Boxes: boxes, Reconciler: job})
	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, r)

	// 运行 (阻塞)
	app.Run(ctx)

	// 10. 退出后资源清理: 先停生产者，再停消费者
	cronService.Stop()
	cancel()
	dispatcher.Stop()
	if producer != nil {
		_ = producer.Close()
	}
	if consumer != nil {
		_ = consumer.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logger.Info("系统已退出")
}

// newMQ 按 mq.type 构造生产者与消费者，"none" 或缺少 Redis 时返回 nil
func newMQ(cfg config.Config, rdb *redis.Client) (mq.Producer, mq.Consumer) {
	switch cfg.MQ.Type {
	case "kafka":
		logger.Info("使用 Kafka 作为消息队列...", zap.Strings("brokers", cfg.Kafka.Brokers))
		return mq.NewKafkaProducer(cfg.Kafka.Brokers), mq.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.MQ.ConsumerGroup)
	case "redis":
		if rdb == nil {
			logger.Warn("mq.type=redis 但 Redis 不可用，禁用 outbox relay")
			return nil, nil
		}
		logger.Info("使用 Redis Streams 作为消息队列...")
		return mq.NewRedisProducer(rdb, 100000), mq.NewRedisConsumer(rdb, cfg.MQ.ConsumerGroup, cfg.MQ.ConsumerName)
	default:
		logger.Info("未启用消息队列，开盒事件仅在进程内分发")
		return nil, nil
	}
}

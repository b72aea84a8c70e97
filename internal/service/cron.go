package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
	"github.com/GIGOpenSource/Collide-sub009/pkg/utils/lock"
)

const reconcileLockKey = "cron:lock:reconcile"

// CronService 定时触发对账
// 分布式锁保证多实例下同一时刻只有一个实例在跑
type CronService struct {
	cron    *cron.Cron
	locker  lock.DistributedLock
	job     Reconciler
	spec    string
	lockTTL time.Duration
}

func NewCronService(locker lock.DistributedLock, job Reconciler, spec string, lockTTL time.Duration) *CronService {
	// SkipIfStillRunning: 上一次还没跑完时跳过本次触发
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return &CronService{
		cron:    c,
		locker:  locker,
		job:     job,
		spec:    spec,
		lockTTL: lockTTL,
	}
}

func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunReconcile); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("Cron Service started", zap.String("reconcile_spec", s.spec))
	return nil
}

// Stop 等待正在执行的任务结束
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Cron Service stopped")
}

// RunReconcile 获取锁后执行一次对账，拿不到锁直接跳过
func (s *CronService) RunReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL)
	defer cancel()

	locked, err := s.locker.Acquire(ctx, reconcileLockKey, s.lockTTL)
	if err != nil || !locked {
		logger.Debug("reconcile: lock not acquired, skip", zap.Error(err))
		return
	}
	defer func() {
		if err := s.locker.Release(context.Background(), reconcileLockKey); err != nil {
			logger.Warn("reconcile: release lock failed", zap.Error(err))
		}
	}()

	processed, err := s.job.RunOnce(ctx)
	if err != nil {
		logger.Error("reconcile run failed", zap.Int("processed", processed), zap.Error(err))
		return
	}
	logger.Info("reconcile run done", zap.Int("processed", processed))
}

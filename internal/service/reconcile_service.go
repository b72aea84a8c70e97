package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/internal/repository"
	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
	"github.com/GIGOpenSource/Collide-sub009/pkg/monitor"
)

type ReconcileConfig struct {
	PageSize    int
	MaxPages    int           // 单次运行最多处理的页数，0 表示直到空页
	Concurrency int           // 每页并发的铸造数
	MintQPS     float64       // 对网关的限速，<=0 不限速
	RunTimeout  time.Duration // 单次运行的超时，与调用方的 ctx 无关
}

// ReconcileStats 最近一次运行的统计
type ReconcileStats struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Pages     int           `json:"pages"`
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Cursor    uint64        `json:"cursor"`    // 下一次运行的起点
	Cursors   []uint64      `json:"cursors"`   // 每页处理后的游标
	Completed bool          `json:"completed"` // 是否扫到了空页
	LastError string        `json:"last_error,omitempty"`
}

// ReconcileJob 对账补偿任务
//
// 按 id 游标分页扫描未确认铸造的藏品，逐个走与 MintListener 相同的铸造路径。
// 扫到空页时游标归零，下一次运行重新从头扫描失败过的藏品；
// 因 MaxPages 提前结束时保留游标，下一次从断点继续。
type ReconcileJob struct {
	store   repository.Store
	minter  *MintService
	cfg     ReconcileConfig
	limiter *rate.Limiter

	flight singleflight.Group

	mu     sync.Mutex
	cursor uint64
	last   ReconcileStats
}

func NewReconcileJob(store repository.Store, minter *MintService, cfg ReconcileConfig) *ReconcileJob {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.MintQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MintQPS), cfg.Concurrency)
	}
	return &ReconcileJob{
		store:   store,
		minter:  minter,
		cfg:     cfg,
		limiter: limiter,
	}
}

// RunOnce 执行一次扫描，进程内单飞: 并发调用共享同一次运行的结果
// 调用方取消只会停止等待，不会中断其他调用方共享的运行
func (j *ReconcileJob) RunOnce(ctx context.Context) (int, error) {
	ch := j.flight.DoChan("reconcile", func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.cfg.RunTimeout)
		defer cancel()
		return j.run(runCtx)
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Shared {
			logger.Debug("reconcile run shared with in-flight caller")
		}
		processed, _ := res.Val.(int)
		return processed, res.Err
	}
}

func (j *ReconcileJob) LastStats() ReconcileStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	stats := j.last
	stats.Cursors = append([]uint64(nil), j.last.Cursors...)
	return stats
}

// Cursor 当前游标
func (j *ReconcileJob) Cursor() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cursor
}

func (j *ReconcileJob) run(ctx context.Context) (int, error) {
	j.mu.Lock()
	cursor := j.cursor
	j.mu.Unlock()

	stats := ReconcileStats{StartedAt: time.Now()}
	var runErr error

	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if j.cfg.MaxPages > 0 && stats.Pages >= j.cfg.MaxPages {
			break
		}

		page, err := j.store.Collectibles().ListUnconfirmed(ctx, cursor, j.cfg.PageSize)
		if err != nil {
			runErr = fmt.Errorf("%w: %v", errno.ErrDatabase, err)
			break
		}
		if len(page) == 0 {
			stats.Completed = true
			cursor = 0
			break
		}

		j.processPage(ctx, page, &stats)
		stats.Pages++
		stats.Processed += len(page)
		cursor = page[len(page)-1].ID + 1
		stats.Cursors = append(stats.Cursors, cursor)
	}

	stats.Cursor = cursor
	stats.Duration = time.Since(stats.StartedAt)
	if runErr != nil {
		stats.LastError = runErr.Error()
	}

	j.mu.Lock()
	j.cursor = cursor
	j.last = stats
	j.mu.Unlock()

	monitor.Business.ObserveReconcileRun(stats.Duration)
	logger.Info("reconcile run finished",
		zap.Int("pages", stats.Pages),
		zap.Int("processed", stats.Processed),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Uint64("cursor", cursor),
		zap.Bool("completed", stats.Completed),
		zap.Duration("duration", stats.Duration))

	return stats.Processed, runErr
}

// processPage 页内有界并发，单个藏品的失败不会中断整页
func (j *ReconcileJob) processPage(ctx context.Context, page []model.Collectible, stats *ReconcileStats) {
	var succeeded, failed, skipped atomic.Int32

	var g errgroup.Group
	g.SetLimit(j.cfg.Concurrency)
	for i := range page {
		c := &page[i]
		g.Go(func() error {
			if err := j.limiter.Wait(ctx); err != nil {
				skipped.Add(1)
				return nil
			}
			switch result := j.reconcileOne(ctx, c); result {
			case "success":
				succeeded.Add(1)
			case "skipped":
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Succeeded += int(succeeded.Load())
	stats.Failed += int(failed.Load())
	stats.Skipped += int(skipped.Load())
}

func (j *ReconcileJob) reconcileOne(ctx context.Context, c *model.Collectible) string {
	fields := []zap.Field{
		zap.Uint64("collectible_id", c.ID),
		zap.Uint64("box_item_id", c.SourceBoxItemID),
		zap.String("idempotency_key", IdempotencyKeyOf(c)),
	}

	_, err := j.minter.Mint(ctx, c)
	result := "success"
	switch {
	case err == nil:
		logger.Info("reconcile: collectible minted", fields...)
	case errors.Is(err, errno.ErrOperationInProgress):
		result = "skipped"
		logger.Debug("reconcile: operation in progress", fields...)
	default:
		result = "failed"
		logger.Warn("reconcile: mint failed, retry next run", append(fields, zap.Error(err))...)
	}
	monitor.Business.ObserveReconcile(result)
	return result
}

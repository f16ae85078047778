// Package scheduler 按 cron 表达式周期性触发批量抓取。
// 只负责时钟，批次内部的重试、隔离都在下层完成。
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/iabetor/feedhub/internal/feed"
	"github.com/iabetor/feedhub/internal/ingest"
	"github.com/iabetor/feedhub/internal/logger"
)

// Runner 执行一轮批量抓取，由 ingest.Orchestrator 实现。
type Runner interface {
	RunBatch(ctx context.Context, filter ingest.Filter) feed.BatchStats
}

// Scheduler 定时批量抓取调度器。
type Scheduler struct {
	c      *cron.Cron
	runner Runner
	spec   string
}

// New 创建调度器。spec 为 robfig/cron 表达式（如 "@every 1h"）。
func New(spec string, runner Runner) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("cron 表达式 %q 无效: %w", spec, err)
	}
	return &Scheduler{c: cron.New(), runner: runner, spec: spec}, nil
}

// Start 启动调度循环。ctx 取消后调用方应再调用 Stop 等待在途批次。
// 同一时刻只会有一个批次在跑：上一批还没结束时跳过本次触发。
func (s *Scheduler) Start(ctx context.Context) error {
	running := make(chan struct{}, 1)
	_, err := s.c.AddFunc(s.spec, func() {
		select {
		case running <- struct{}{}:
		default:
			logger.Warnf("[scheduler] 上一批次尚未结束，跳过本次触发")
			return
		}
		defer func() { <-running }()

		if ctx.Err() != nil {
			return
		}
		s.runner.RunBatch(ctx, ingest.Filter{ScheduledOnly: true})
	})
	if err != nil {
		return err
	}
	s.c.Start()
	logger.Infof("[scheduler] 调度器已启动 (%s)", s.spec)
	return nil
}

// Stop 停止触发新批次并等待在途批次结束。
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
	logger.Infof("[scheduler] 调度器已停止")
}

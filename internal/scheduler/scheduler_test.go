package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iabetor/feedhub/internal/feed"
	"github.com/iabetor/feedhub/internal/ingest"
)

type countingRunner struct {
	calls        int32
	notScheduled int32
}

func (r *countingRunner) RunBatch(ctx context.Context, filter ingest.Filter) feed.BatchStats {
	atomic.AddInt32(&r.calls, 1)
	if !filter.ScheduledOnly {
		atomic.AddInt32(&r.notScheduled, 1)
	}
	return feed.BatchStats{}
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("not a cron spec", &countingRunner{}); err == nil {
		t.Fatal("非法 cron 表达式应返回错误")
	}
}

func TestSchedulerTriggersBatches(t *testing.T) {
	r := &countingRunner{}
	s, err := New("@every 100ms", r)
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start 失败: %v", err)
	}

	time.Sleep(350 * time.Millisecond)
	cancel()
	s.Stop()

	if n := atomic.LoadInt32(&r.calls); n < 2 {
		t.Errorf("期望至少触发 2 次批次，实际 %d 次", n)
	}
	if atomic.LoadInt32(&r.notScheduled) != 0 {
		t.Error("定时批次应设置 ScheduledOnly")
	}
}

type slowRunner struct {
	calls int32
}

func (r *slowRunner) RunBatch(ctx context.Context, filter ingest.Filter) feed.BatchStats {
	atomic.AddInt32(&r.calls, 1)
	time.Sleep(300 * time.Millisecond)
	return feed.BatchStats{}
}

func TestSchedulerSkipsOverlappingBatches(t *testing.T) {
	r := &slowRunner{}
	s, err := New("@every 50ms", r)
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start 失败: %v", err)
	}

	time.Sleep(400 * time.Millisecond)
	cancel()
	s.Stop()

	// 单个批次要跑 300ms，400ms 内最多启动 2 个，不应并行堆积
	if n := atomic.LoadInt32(&r.calls); n > 2 {
		t.Errorf("批次不应重叠执行，实际启动 %d 次", n)
	}
}

// Package ingest 驱动抓取流水线：单个订阅源按
// 抓取 → 解析 → 去重 → (可选正文抽取) → 入库 → 更新状态
// 顺序执行；多个订阅源在有界工作池里并发跑，互不影响。
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/feedhub/internal/diff"
	"github.com/iabetor/feedhub/internal/enrich"
	"github.com/iabetor/feedhub/internal/feed"
	"github.com/iabetor/feedhub/internal/logger"
	"github.com/iabetor/feedhub/internal/parser"
	"github.com/iabetor/feedhub/internal/registry"
	"github.com/iabetor/feedhub/internal/store"
)

const (
	defaultMaxConcurrent = 5
	maxConcurrentCap     = 10
)

// Transport 抓取原始字节的接口，由 fetcher.Client 实现。
// 测试中替换为可注入失败和计数的桩。
type Transport interface {
	Fetch(ctx context.Context, url string) ([]byte, int, error)
}

// Options 编排器的可选配置。
type Options struct {
	// MaxConcurrent 工作池大小，默认 5，上限 10。
	MaxConcurrent int
	// Enrich 入库前的正文抽取钩子，nil 表示关闭。
	Enrich enrich.Func
}

// Filter 限定一轮批量抓取的范围。
type Filter struct {
	// Category 非空时只抓该分类。
	Category string
	// ScheduledOnly 为 true 时跳过 manual 源，
	// 并跳过距上次成功抓取还没到间隔窗口的源（定时批次用）。
	ScheduledOnly bool
}

// Orchestrator 抓取编排器。
type Orchestrator struct {
	reg           *registry.Registry
	st            *store.Store
	transport     Transport
	parse         parser.Func
	enrich        enrich.Func
	maxConcurrent int
}

// New 创建编排器。parse 为 nil 时使用 parser.Parse。
func New(reg *registry.Registry, st *store.Store, transport Transport, parse parser.Func, opts Options) *Orchestrator {
	if parse == nil {
		parse = parser.Parse
	}
	n := opts.MaxConcurrent
	if n <= 0 {
		n = defaultMaxConcurrent
	}
	if n > maxConcurrentCap {
		n = maxConcurrentCap
	}
	return &Orchestrator{
		reg:           reg,
		st:            st,
		transport:     transport,
		parse:         parse,
		enrich:        opts.Enrich,
		maxConcurrent: n,
	}
}

// FetchOne 对单个订阅源执行一轮完整流水线。
// 流水线内任何阶段的错误都被就地捕获，转成失败的 FetchResult 返回，
// 不会向外抛出。
func (o *Orchestrator) FetchOne(ctx context.Context, id string) feed.FetchResult {
	f, err := o.reg.GetFeed(id)
	if err != nil {
		return feed.FetchResult{FeedID: id, ErrorMsg: err.Error()}
	}
	return o.fetchFeed(ctx, f)
}

func (o *Orchestrator) fetchFeed(ctx context.Context, f feed.Feed) feed.FetchResult {
	if !f.Enabled {
		return feed.FetchResult{FeedID: f.ID, Success: true, Skipped: true}
	}

	data, _, err := o.transport.Fetch(ctx, f.URL)
	if err != nil {
		return o.fail(f, err)
	}

	items, err := o.parse(data)
	if err != nil {
		return o.fail(f, err)
	}

	ef, err := o.st.LoadEntries(f.ID)
	if err != nil {
		return o.fail(f, err)
	}
	existing := make(map[string]struct{}, len(ef.Items))
	for _, it := range ef.Items {
		existing[it.Link] = struct{}{}
	}

	fresh := diff.Detect(existing, items)

	now := time.Now().UTC()
	entries := make([]feed.Entry, 0, len(fresh))
	for _, it := range fresh {
		content := it.Content
		if o.enrich != nil {
			if text, err := o.enrich(ctx, it.Link); err != nil {
				logger.Warnf("[ingest] 正文抽取失败 %s: %v", it.Link, err)
			} else if text != "" {
				content = text
			}
		}
		entries = append(entries, feed.Entry{
			ID:        uuid.NewString(),
			FeedID:    f.ID,
			Title:     it.Title,
			Link:      it.Link,
			Published: it.Published,
			Summary:   it.Summary,
			Content:   content,
			Author:    it.Author,
			FetchedAt: now,
		})
	}

	if err := o.st.AppendEntries(f.ID, entries); err != nil {
		return o.fail(f, err)
	}

	if err := o.reg.MarkFetched(f.ID, feed.StatusSuccess, now); err != nil {
		logger.Warnf("[ingest] 更新 %s 抓取状态失败: %v", f.ID, err)
	}

	logger.Debugf("[ingest] %s 抓取完成: 共 %d 条，新增 %d 条", f.URL, len(items), len(entries))
	return feed.FetchResult{
		FeedID:      f.ID,
		Success:     true,
		EntriesSeen: len(items),
		NewEntries:  len(entries),
	}
}

// fail 把一条流水线错误记成该订阅源的失败结果，并更新其状态。
func (o *Orchestrator) fail(f feed.Feed, err error) feed.FetchResult {
	logger.Warnf("[ingest] %s 抓取失败: %v", f.URL, err)
	if merr := o.reg.MarkFetched(f.ID, feed.StatusFailure, time.Now().UTC()); merr != nil {
		logger.Warnf("[ingest] 更新 %s 抓取状态失败: %v", f.ID, merr)
	}
	return feed.FetchResult{FeedID: f.ID, ErrorMsg: err.Error()}
}

// FetchAll 对过滤后的全部启用源并发执行流水线。
// 工作池大小固定，所有结果在一次屏障汇合后返回，源之间没有顺序保证。
// ctx 取消后不再派发新任务，已在途的流水线自然结束。
func (o *Orchestrator) FetchAll(ctx context.Context, filter Filter) ([]feed.FetchResult, error) {
	feeds, err := o.reg.ListFeeds(filter.Category, true)
	if err != nil {
		return nil, err
	}
	if filter.ScheduledOnly {
		feeds = dueFeeds(feeds, time.Now().UTC())
	}
	if len(feeds) == 0 {
		return []feed.FetchResult{}, nil
	}

	jobs := make(chan feed.Feed)
	results := make(chan feed.FetchResult, len(feeds))

	var wg sync.WaitGroup
	for i := 0; i < o.maxConcurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				results <- o.fetchFeed(ctx, f)
			}
		}()
	}

dispatch:
	for _, f := range feeds {
		if ctx.Err() != nil {
			logger.Infof("[ingest] 收到取消信号，停止派发剩余订阅源")
			break
		}
		select {
		case jobs <- f:
		case <-ctx.Done():
			logger.Infof("[ingest] 收到取消信号，停止派发剩余订阅源")
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]feed.FetchResult, 0, len(feeds))
	for r := range results {
		out = append(out, r)
	}
	return out, nil
}

// RunBatch 执行一轮批量抓取并汇总统计。
// 单个源的失败只计入 FailureCount，批次本身总会完整跑完。
func (o *Orchestrator) RunBatch(ctx context.Context, filter Filter) feed.BatchStats {
	stats := feed.BatchStats{StartedAt: time.Now().UTC()}

	results, err := o.FetchAll(ctx, filter)
	if err != nil {
		logger.Errorf("[ingest] 批量抓取无法启动: %v", err)
		stats.FinishedAt = time.Now().UTC()
		return stats
	}

	for _, r := range results {
		stats.TotalFeeds++
		if r.Success {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
		stats.NewEntries += r.NewEntries
	}
	stats.FinishedAt = time.Now().UTC()

	logger.Infof("[ingest] 批次完成: %d 个源，成功 %d，失败 %d，新增 %d 条，耗时 %v",
		stats.TotalFeeds, stats.SuccessCount, stats.FailureCount, stats.NewEntries,
		stats.FinishedAt.Sub(stats.StartedAt).Round(time.Millisecond))
	return stats
}

// dueFeeds 过滤出本轮定时批次需要抓取的源：
// manual 源始终跳过；daily/weekly 源在窗口内已抓过的跳过。
func dueFeeds(feeds []feed.Feed, now time.Time) []feed.Feed {
	due := make([]feed.Feed, 0, len(feeds))
	for _, f := range feeds {
		w := f.FetchInterval.Window()
		if w == 0 {
			continue
		}
		if f.LastFetched != nil && f.LastStatus == feed.StatusSuccess && now.Sub(*f.LastFetched) < w {
			continue
		}
		due = append(due, f)
	}
	return due
}

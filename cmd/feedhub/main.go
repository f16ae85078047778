package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/iabetor/feedhub/internal/config"
	"github.com/iabetor/feedhub/internal/enrich"
	"github.com/iabetor/feedhub/internal/feed"
	"github.com/iabetor/feedhub/internal/fetcher"
	"github.com/iabetor/feedhub/internal/ingest"
	"github.com/iabetor/feedhub/internal/lock"
	"github.com/iabetor/feedhub/internal/logger"
	"github.com/iabetor/feedhub/internal/query"
	"github.com/iabetor/feedhub/internal/registry"
	"github.com/iabetor/feedhub/internal/scheduler"
	"github.com/iabetor/feedhub/internal/store"
)

const usage = `用法: feedhub [-config 路径] <命令> [参数]

命令:
  add      添加订阅源       -url -title -category -interval
  list     列出订阅源       [-category] [-enabled]
  get      查看订阅源       -id
  update   更新订阅源       -id [-title] [-category] [-interval] [-enable|-disable]
  remove   删除订阅源       -id
  fetch    抓取             [-id] [-category]
  entries  查看条目         -id [-limit] [-offset]
  search   搜索条目         -q [-category] [-fields] [-limit] [-offset]
  serve    以守护进程运行定时抓取
`

// app 汇集各组件，按配置装配一次。
type app struct {
	cfg   *config.Config
	reg   *registry.Registry
	orch  *ingest.Orchestrator
	query *query.Service
}

func newApp(cfg *config.Config) (*app, error) {
	locks := lock.NewManager(cfg.DataDir, cfg.Lock.CrossProcess)
	st, err := store.New(cfg.DataDir, locks, cfg.LockTimeout())
	if err != nil {
		return nil, err
	}
	reg := registry.New(st)

	var enrichFn enrich.Func
	if cfg.Enrich.Enabled {
		enrichFn = enrich.New(cfg.EnrichTimeout(), cfg.Fetch.UserAgent)
	}
	orch := ingest.New(reg, st, fetcher.New(cfg.FetchTimeout(), cfg.Fetch.UserAgent), nil, ingest.Options{
		MaxConcurrent: cfg.Fetch.MaxConcurrent,
		Enrich:        enrichFn,
	})

	return &app{
		cfg:   cfg,
		reg:   reg,
		orch:  orch,
		query: query.New(st, reg),
	}, nil
}

func main() {
	configPath := flag.String("config", "configs/feedhub.yaml", "配置文件路径")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := a.run(cmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func (a *app) run(cmd string, args []string) error {
	switch cmd {
	case "add":
		return a.cmdAdd(args)
	case "list":
		return a.cmdList(args)
	case "get":
		return a.cmdGet(args)
	case "update":
		return a.cmdUpdate(args)
	case "remove":
		return a.cmdRemove(args)
	case "fetch":
		return a.cmdFetch(args)
	case "entries":
		return a.cmdEntries(args)
	case "search":
		return a.cmdSearch(args)
	case "serve":
		return a.cmdServe()
	default:
		return fmt.Errorf("未知命令: %s", cmd)
	}
}

func (a *app) cmdAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	url := fs.String("url", "", "订阅源 URL (必填)")
	title := fs.String("title", "", "标题")
	category := fs.String("category", "", "分类")
	interval := fs.String("interval", "daily", "抓取频率: daily/weekly/manual")
	fs.Parse(args)

	id, err := a.reg.AddFeed(*url, *title, *category, feed.Interval(*interval))
	if err != nil {
		return err
	}
	fmt.Printf("已添加订阅源 %s\n", id)
	return nil
}

func (a *app) cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	category := fs.String("category", "", "按分类过滤")
	enabledOnly := fs.Bool("enabled", false, "只显示启用的源")
	fs.Parse(args)

	feeds, err := a.reg.ListFeeds(*category, *enabledOnly)
	if err != nil {
		return err
	}
	for _, f := range feeds {
		state := "启用"
		if !f.Enabled {
			state = "停用"
		}
		fmt.Printf("%s  [%s/%s/%s]  %s  (%s)\n", f.ID, f.Category, f.FetchInterval, f.LastStatus, f.Title, state)
	}
	fmt.Printf("共 %d 个订阅源\n", len(feeds))
	return nil
}

func (a *app) cmdGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	id := fs.String("id", "", "订阅源 ID (必填)")
	fs.Parse(args)

	f, err := a.reg.GetFeed(*id)
	if err != nil {
		return err
	}
	fmt.Printf("ID:       %s\nURL:      %s\n标题:     %s\n分类:     %s\n频率:     %s\n状态:     %s\n启用:     %v\n",
		f.ID, f.URL, f.Title, f.Category, f.FetchInterval, f.LastStatus, f.Enabled)
	if f.LastFetched != nil {
		fmt.Printf("上次抓取: %s\n", f.LastFetched.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

func (a *app) cmdUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.String("id", "", "订阅源 ID (必填)")
	title := fs.String("title", "", "新标题")
	category := fs.String("category", "", "新分类")
	interval := fs.String("interval", "", "新抓取频率")
	enable := fs.Bool("enable", false, "启用")
	disable := fs.Bool("disable", false, "停用")
	fs.Parse(args)

	var p registry.Patch
	if *title != "" {
		p.Title = title
	}
	if *category != "" {
		p.Category = category
	}
	if *interval != "" {
		iv := feed.Interval(*interval)
		p.Interval = &iv
	}
	if *enable {
		v := true
		p.Enabled = &v
	} else if *disable {
		v := false
		p.Enabled = &v
	}

	if err := a.reg.UpdateFeed(*id, p); err != nil {
		return err
	}
	fmt.Println("已更新")
	return nil
}

func (a *app) cmdRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	id := fs.String("id", "", "订阅源 ID (必填)")
	fs.Parse(args)

	if err := a.reg.RemoveFeed(*id); err != nil {
		return err
	}
	fmt.Println("已删除（含条目日志）")
	return nil
}

func (a *app) cmdFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	id := fs.String("id", "", "只抓取指定订阅源")
	category := fs.String("category", "", "只抓取指定分类")
	fs.Parse(args)

	ctx := signalContext()

	if *id != "" {
		r := a.orch.FetchOne(ctx, *id)
		printResult(r)
		return nil
	}

	stats := a.orch.RunBatch(ctx, ingest.Filter{Category: *category})
	fmt.Printf("批次完成: %d 个源，成功 %d，失败 %d，新增 %d 条\n",
		stats.TotalFeeds, stats.SuccessCount, stats.FailureCount, stats.NewEntries)
	return nil
}

func printResult(r feed.FetchResult) {
	if r.Skipped {
		fmt.Printf("%s: 已跳过（源已停用）\n", r.FeedID)
		return
	}
	if r.Success {
		fmt.Printf("%s: 共 %d 条，新增 %d 条\n", r.FeedID, r.EntriesSeen, r.NewEntries)
		return
	}
	fmt.Printf("%s: 抓取失败: %s\n", r.FeedID, r.ErrorMsg)
}

func (a *app) cmdEntries(args []string) error {
	fs := flag.NewFlagSet("entries", flag.ExitOnError)
	id := fs.String("id", "", "订阅源 ID (必填)")
	limit := fs.Int("limit", 20, "返回条数")
	offset := fs.Int("offset", 0, "偏移")
	fs.Parse(args)

	entries, err := a.query.Entries(*id, *limit, *offset)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func (a *app) cmdSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	q := fs.String("q", "", "搜索关键词 (必填)")
	category := fs.String("category", "", "只搜指定分类")
	fields := fs.String("fields", "", "匹配字段，逗号分隔 (默认 title,summary)")
	limit := fs.Int("limit", 20, "返回条数")
	offset := fs.Int("offset", 0, "偏移")
	fs.Parse(args)

	opts := query.SearchOptions{
		Category: *category,
		Limit:    *limit,
		Offset:   *offset,
	}
	if *fields != "" {
		opts.Fields = strings.Split(*fields, ",")
	}

	entries, err := a.query.Search(*q, opts)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func printEntries(entries []feed.Entry) {
	for _, e := range entries {
		when := ""
		if e.Published != nil {
			when = e.Published.Format("2006-01-02")
		}
		fmt.Printf("- %s  %s\n  %s\n", when, e.Title, e.Link)
	}
	fmt.Printf("共 %d 条\n", len(entries))
}

func (a *app) cmdServe() error {
	ctx := signalContext()

	sched, err := scheduler.New(a.cfg.Schedule.Cron, a.orch)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Infof("[main] 正在关闭...")
	sched.Stop()
	return nil
}

// signalContext 返回收到 SIGINT/SIGTERM 时取消的 context。
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

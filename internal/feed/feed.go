// Package feed 定义订阅源与条目的领域模型。
package feed

import "time"

// Interval 抓取频率。
type Interval string

const (
	IntervalDaily  Interval = "daily"
	IntervalWeekly Interval = "weekly"
	IntervalManual Interval = "manual"
)

// Valid 判断是否为合法的抓取频率。
func (i Interval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalManual:
		return true
	}
	return false
}

// Window 返回该频率对应的最小抓取间隔。manual 返回 0。
func (i Interval) Window() time.Duration {
	switch i {
	case IntervalDaily:
		return 24 * time.Hour
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Status 最近一次抓取的结果状态。
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPending Status = "pending"
)

// Feed 已注册的订阅源。
// ID 在创建时生成且不可变；URL 在全部订阅源中唯一。
type Feed struct {
	ID            string     `json:"feed_id"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Category      string     `json:"category"`
	FetchInterval Interval   `json:"fetch_interval"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastFetched   *time.Time `json:"last_fetched"`
	LastStatus    Status     `json:"last_status"`
	Enabled       bool       `json:"enabled"`
}

// Entry 已入库的单条内容。创建后不再修改。
// Link 在所属订阅源的条目集合内唯一，是去重键。
type Entry struct {
	ID        string     `json:"item_id"`
	FeedID    string     `json:"-"`
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Published *time.Time `json:"published"`
	Summary   string     `json:"summary,omitempty"`
	Content   string     `json:"content,omitempty"`
	Author    string     `json:"author,omitempty"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Item 解析器产出的规范化条目，尚未入库。
type Item struct {
	Title     string
	Link      string
	Published *time.Time
	Summary   string
	Content   string
	Author    string
}

// FetchResult 单个订阅源一轮抓取的结果，不落盘。
type FetchResult struct {
	FeedID      string
	Success     bool
	Skipped     bool
	EntriesSeen int
	NewEntries  int
	ErrorMsg    string
}

// BatchStats 一轮批量抓取的汇总统计。
type BatchStats struct {
	TotalFeeds   int
	SuccessCount int
	FailureCount int
	NewEntries   int
	StartedAt    time.Time
	FinishedAt   time.Time
}

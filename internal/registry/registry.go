// Package registry 维护订阅源注册表：增删改查与唯一性约束。
package registry

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/feedhub/internal/feed"
	"github.com/iabetor/feedhub/internal/feederr"
	"github.com/iabetor/feedhub/internal/store"
)

const (
	maxURLLen      = 2048
	maxTitleLen    = 256
	maxCategoryLen = 64
)

// Registry 订阅源注册表，状态全部落在 Store。
type Registry struct {
	store *store.Store
}

// New 创建注册表。
func New(st *store.Store) *Registry {
	return &Registry{store: st}
}

// AddFeed 注册新订阅源并返回其 ID。
// URL 必须是 http/https；与已注册 URL 精确重复时返回 feederr.ErrAlreadyExists。
func (r *Registry) AddFeed(rawURL, title, category string, interval feed.Interval) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", err
	}
	if len(title) > maxTitleLen {
		return "", &feederr.ValidationError{Field: "title", Reason: fmt.Sprintf("长度超过 %d", maxTitleLen)}
	}
	if len(category) > maxCategoryLen {
		return "", &feederr.ValidationError{Field: "category", Reason: fmt.Sprintf("长度超过 %d", maxCategoryLen)}
	}
	if interval == "" {
		interval = feed.IntervalDaily
	}
	if !interval.Valid() {
		return "", &feederr.ValidationError{Field: "interval", Reason: "必须是 daily/weekly/manual 之一"}
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	err := r.store.UpdateFeeds(func(ff *store.FeedsFile) error {
		for _, f := range ff.Feeds {
			if f.URL == rawURL {
				return fmt.Errorf("%s: %w", rawURL, feederr.ErrAlreadyExists)
			}
		}
		ff.Feeds = append(ff.Feeds, feed.Feed{
			ID:            id,
			URL:           rawURL,
			Title:         title,
			Category:      category,
			FetchInterval: interval,
			CreatedAt:     now,
			UpdatedAt:     now,
			LastStatus:    feed.StatusPending,
			Enabled:       true,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListFeeds 列出订阅源。category 非空时只返回该分类；
// enabledOnly 为 true 时过滤掉停用的源。纯读操作。
func (r *Registry) ListFeeds(category string, enabledOnly bool) ([]feed.Feed, error) {
	ff, err := r.store.LoadFeeds()
	if err != nil {
		return nil, err
	}
	out := make([]feed.Feed, 0, len(ff.Feeds))
	for _, f := range ff.Feeds {
		if category != "" && f.Category != category {
			continue
		}
		if enabledOnly && !f.Enabled {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// GetFeed 按 ID 查找订阅源。
func (r *Registry) GetFeed(id string) (feed.Feed, error) {
	ff, err := r.store.LoadFeeds()
	if err != nil {
		return feed.Feed{}, err
	}
	for _, f := range ff.Feeds {
		if f.ID == id {
			return f, nil
		}
	}
	return feed.Feed{}, fmt.Errorf("%s: %w", id, feederr.ErrNotFound)
}

// Patch 部分更新。nil 字段保持不变。
type Patch struct {
	Title    *string
	Category *string
	Interval *feed.Interval
	Enabled  *bool
}

// UpdateFeed 按 Patch 更新订阅源元数据。
func (r *Registry) UpdateFeed(id string, p Patch) error {
	if p.Title != nil && len(*p.Title) > maxTitleLen {
		return &feederr.ValidationError{Field: "title", Reason: fmt.Sprintf("长度超过 %d", maxTitleLen)}
	}
	if p.Category != nil && len(*p.Category) > maxCategoryLen {
		return &feederr.ValidationError{Field: "category", Reason: fmt.Sprintf("长度超过 %d", maxCategoryLen)}
	}
	if p.Interval != nil && !p.Interval.Valid() {
		return &feederr.ValidationError{Field: "interval", Reason: "必须是 daily/weekly/manual 之一"}
	}
	return r.store.UpdateFeeds(func(ff *store.FeedsFile) error {
		for i := range ff.Feeds {
			if ff.Feeds[i].ID != id {
				continue
			}
			if p.Title != nil {
				ff.Feeds[i].Title = *p.Title
			}
			if p.Category != nil {
				ff.Feeds[i].Category = *p.Category
			}
			if p.Interval != nil {
				ff.Feeds[i].FetchInterval = *p.Interval
			}
			if p.Enabled != nil {
				ff.Feeds[i].Enabled = *p.Enabled
			}
			ff.Feeds[i].UpdatedAt = time.Now().UTC()
			return nil
		}
		return fmt.Errorf("%s: %w", id, feederr.ErrNotFound)
	})
}

// RemoveFeed 删除订阅源记录，并级联删除其条目日志。
func (r *Registry) RemoveFeed(id string) error {
	err := r.store.UpdateFeeds(func(ff *store.FeedsFile) error {
		for i := range ff.Feeds {
			if ff.Feeds[i].ID == id {
				ff.Feeds = append(ff.Feeds[:i], ff.Feeds[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%s: %w", id, feederr.ErrNotFound)
	})
	if err != nil {
		return err
	}
	return r.store.RemoveEntries(id)
}

// MarkFetched 记录一次抓取的结果状态，只供编排器调用。
func (r *Registry) MarkFetched(id string, status feed.Status, at time.Time) error {
	return r.store.UpdateFeeds(func(ff *store.FeedsFile) error {
		for i := range ff.Feeds {
			if ff.Feeds[i].ID == id {
				t := at.UTC()
				ff.Feeds[i].LastFetched = &t
				ff.Feeds[i].LastStatus = status
				ff.Feeds[i].UpdatedAt = t
				return nil
			}
		}
		return fmt.Errorf("%s: %w", id, feederr.ErrNotFound)
	})
}

// validateURL 校验 URL 形态：http/https、长度上限。
func validateURL(rawURL string) error {
	if rawURL == "" {
		return &feederr.ValidationError{Field: "url", Reason: "不能为空"}
	}
	if len(rawURL) > maxURLLen {
		return &feederr.ValidationError{Field: "url", Reason: fmt.Sprintf("长度超过 %d", maxURLLen)}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &feederr.ValidationError{Field: "url", Reason: "不是合法的 URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &feederr.ValidationError{Field: "url", Reason: "只支持 http/https"}
	}
	if u.Host == "" {
		return &feederr.ValidationError{Field: "url", Reason: "缺少主机名"}
	}
	return nil
}

// Package query 提供对已入库条目的只读查询：分页读取与关键词搜索。
// 只走 Store 的读路径，不持写锁。
package query

import (
	"sort"
	"strings"

	"github.com/iabetor/feedhub/internal/feed"
	"github.com/iabetor/feedhub/internal/registry"
	"github.com/iabetor/feedhub/internal/store"
)

const defaultLimit = 20

// Service 条目查询服务。
type Service struct {
	st  *store.Store
	reg *registry.Registry
}

// New 创建查询服务。
func New(st *store.Store, reg *registry.Registry) *Service {
	return &Service{st: st, reg: reg}
}

// Entries 分页读取单个订阅源的条目，按抓取时间倒序（同批次内按发布时间倒序）。
// 订阅源不存在时返回 feederr.ErrNotFound。
func (s *Service) Entries(feedID string, limit, offset int) ([]feed.Entry, error) {
	if _, err := s.reg.GetFeed(feedID); err != nil {
		return nil, err
	}
	ef, err := s.st.LoadEntries(feedID)
	if err != nil {
		return nil, err
	}
	entries := make([]feed.Entry, len(ef.Items))
	copy(entries, ef.Items)
	sortNewestFirst(entries)
	return page(entries, limit, offset), nil
}

// SearchOptions 搜索参数。
type SearchOptions struct {
	// Category 非空时只搜该分类下的订阅源。
	Category string
	// Fields 参与匹配的字段（title/summary/content/author），
	// 为空时默认 title+summary。
	Fields []string
	Limit  int
	Offset int
}

// Search 跨订阅源做大小写不敏感的子串搜索。
func (s *Service) Search(q string, opts SearchOptions) ([]feed.Entry, error) {
	feeds, err := s.reg.ListFeeds(opts.Category, false)
	if err != nil {
		return nil, err
	}

	fields := opts.Fields
	if len(fields) == 0 {
		fields = []string{"title", "summary"}
	}
	needle := strings.ToLower(q)

	var matched []feed.Entry
	for _, f := range feeds {
		ef, err := s.st.LoadEntries(f.ID)
		if err != nil {
			return nil, err
		}
		for _, e := range ef.Items {
			if needle == "" || matches(e, fields, needle) {
				matched = append(matched, e)
			}
		}
	}

	sortNewestFirst(matched)
	return page(matched, opts.Limit, opts.Offset), nil
}

// matches 判断条目在指定字段上是否包含 needle（needle 已小写）。
func matches(e feed.Entry, fields []string, needle string) bool {
	for _, field := range fields {
		var v string
		switch field {
		case "title":
			v = e.Title
		case "summary":
			v = e.Summary
		case "content":
			v = e.Content
		case "author":
			v = e.Author
		}
		if v != "" && strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func sortNewestFirst(entries []feed.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].FetchedAt.Equal(entries[j].FetchedAt) {
			return entries[i].FetchedAt.After(entries[j].FetchedAt)
		}
		pi, pj := entries[i].Published, entries[j].Published
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return pi.After(*pj)
		}
	})
}

func page(entries []feed.Entry, limit, offset int) []feed.Entry {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return []feed.Entry{}
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end]
}

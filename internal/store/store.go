// Package store 负责订阅源注册表和条目日志的落盘。
// 磁盘布局：
//
//	<root>/feeds.json          订阅源注册表
//	<root>/<feed_id>/items.json  单个订阅源的条目日志
//
// 所有写入都是"读-改-写"并整体持锁，文件级别先写临时文件再原子重命名，
// 崩溃不会留下写了一半的损坏文件。
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iabetor/feedhub/internal/feed"
	"github.com/iabetor/feedhub/internal/feederr"
	"github.com/iabetor/feedhub/internal/lock"
)

// SchemaVersion 磁盘 JSON 的版本号，加载时严格校验。
const SchemaVersion = "1.0"

const (
	feedsResource = "feeds"
	feedsFileName = "feeds.json"
	itemsFileName = "items.json"
)

// FeedsFile feeds.json 的完整内容。
type FeedsFile struct {
	Version string      `json:"version"`
	Feeds   []feed.Feed `json:"feeds"`
}

// EntriesFile 单个订阅源 items.json 的完整内容。
type EntriesFile struct {
	Version string       `json:"version"`
	FeedID  string       `json:"feed_id"`
	Items   []feed.Entry `json:"items"`
}

// Store 版本化 JSON 文件存储。
type Store struct {
	root        string
	locks       *lock.Manager
	lockTimeout time.Duration
}

// New 创建存储。root 不存在时自动创建。
func New(root string, locks *lock.Manager, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, &feederr.StorageError{Path: root, Err: err}
	}
	return &Store{root: root, locks: locks, lockTimeout: lockTimeout}, nil
}

// Root 返回数据根目录。
func (s *Store) Root() string { return s.root }

// LoadFeeds 读取订阅源注册表。文件不存在时返回空的初始化结构。
func (s *Store) LoadFeeds() (*FeedsFile, error) {
	ff := &FeedsFile{Version: SchemaVersion, Feeds: []feed.Feed{}}
	if err := s.readJSON(s.feedsPath(), ff); err != nil {
		return nil, err
	}
	if err := s.checkVersion(s.feedsPath(), ff.Version); err != nil {
		return nil, err
	}
	return ff, nil
}

// SaveFeeds 持注册表锁覆盖写入 feeds.json。
func (s *Store) SaveFeeds(ff *FeedsFile) error {
	return s.locks.WithLock(feedsResource, s.lockTimeout, func() error {
		ff.Version = SchemaVersion
		return s.writeJSON(s.feedsPath(), ff)
	})
}

// UpdateFeeds 持注册表锁执行一次读-改-写。
// mutate 返回错误时放弃写入，原样返回该错误。
func (s *Store) UpdateFeeds(mutate func(*FeedsFile) error) error {
	return s.locks.WithLock(feedsResource, s.lockTimeout, func() error {
		ff := &FeedsFile{Version: SchemaVersion, Feeds: []feed.Feed{}}
		if err := s.readJSON(s.feedsPath(), ff); err != nil {
			return err
		}
		if err := s.checkVersion(s.feedsPath(), ff.Version); err != nil {
			return err
		}
		if err := mutate(ff); err != nil {
			return err
		}
		ff.Version = SchemaVersion
		return s.writeJSON(s.feedsPath(), ff)
	})
}

// LoadEntries 读取订阅源的条目日志。文件不存在时返回空的初始化结构。
func (s *Store) LoadEntries(feedID string) (*EntriesFile, error) {
	ef := &EntriesFile{Version: SchemaVersion, FeedID: feedID, Items: []feed.Entry{}}
	if err := s.readJSON(s.itemsPath(feedID), ef); err != nil {
		return nil, err
	}
	if err := s.checkVersion(s.itemsPath(feedID), ef.Version); err != nil {
		return nil, err
	}
	for i := range ef.Items {
		ef.Items[i].FeedID = feedID
	}
	return ef, nil
}

// AppendEntries 持该订阅源的条目锁，把 entries 追加到日志末尾。
// 持锁期间再按 Link 过滤一次，保证并发写入下链接依然唯一。
func (s *Store) AppendEntries(feedID string, entries []feed.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.locks.WithLock("feed:"+feedID, s.lockTimeout, func() error {
		path := s.itemsPath(feedID)
		ef := &EntriesFile{Version: SchemaVersion, FeedID: feedID, Items: []feed.Entry{}}
		if err := s.readJSON(path, ef); err != nil {
			return err
		}
		if err := s.checkVersion(path, ef.Version); err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(ef.Items))
		for _, it := range ef.Items {
			seen[it.Link] = struct{}{}
		}
		for _, e := range entries {
			if _, dup := seen[e.Link]; dup {
				continue
			}
			seen[e.Link] = struct{}{}
			ef.Items = append(ef.Items, e)
		}

		ef.Version = SchemaVersion
		ef.FeedID = feedID
		return s.writeJSON(path, ef)
	})
}

// RemoveEntries 删除订阅源的整个条目目录，用于删除订阅源时的级联清理。
func (s *Store) RemoveEntries(feedID string) error {
	return s.locks.WithLock("feed:"+feedID, s.lockTimeout, func() error {
		dir := filepath.Join(s.root, feedID)
		if err := os.RemoveAll(dir); err != nil {
			return &feederr.StorageError{Path: dir, Err: err}
		}
		return nil
	})
}

func (s *Store) feedsPath() string { return filepath.Join(s.root, feedsFileName) }

func (s *Store) itemsPath(feedID string) string {
	return filepath.Join(s.root, feedID, itemsFileName)
}

// readJSON 把文件解析进 v。文件不存在时保持 v 的初始值不变。
func (s *Store) readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &feederr.StorageError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &feederr.StorageError{Path: path, Err: fmt.Errorf("JSON 损坏: %w", err)}
	}
	return nil
}

// writeJSON 先写同目录下的临时文件，再原子重命名到目标路径。
func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &feederr.StorageError{Path: path, Err: err}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &feederr.StorageError{Path: dir, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &feederr.StorageError{Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &feederr.StorageError{Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &feederr.StorageError{Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &feederr.StorageError{Path: path, Err: err}
	}
	return nil
}

// checkVersion 校验磁盘数据的版本号，未知版本直接报错而不是静默兼容。
func (s *Store) checkVersion(path, version string) error {
	if version != SchemaVersion {
		return &feederr.StorageError{
			Path: path,
			Err:  errors.New("不支持的数据版本: " + version),
		}
	}
	return nil
}

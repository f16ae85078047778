// Package feederr 定义引擎各层共享的错误类型。
// 调用方通过 errors.Is / errors.As 分支处理，不解析错误文本。
package feederr

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists URL 已被注册。
	ErrAlreadyExists = errors.New("订阅源已存在")
	// ErrNotFound 指定的订阅源不存在。
	ErrNotFound = errors.New("订阅源不存在")
	// ErrLockTimeout 在超时时间内未能获取锁。
	ErrLockTimeout = errors.New("获取锁超时")
)

// ValidationError 输入校验失败，在任何 I/O 之前返回。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("参数 %s 无效: %s", e.Field, e.Reason)
}

// FetchError HTTP 抓取的终态失败：重试耗尽，或不可重试的 4xx。
type FetchError struct {
	URL        string
	StatusCode int // 0 表示未收到响应（连接错误、超时）
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("抓取 %s 失败 (HTTP %d, 尝试 %d 次)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("抓取 %s 失败 (尝试 %d 次): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError Feed 内容无法解析。
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("解析 Feed 失败: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// StorageError 磁盘 I/O 失败或磁盘上的数据损坏。
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string { return fmt.Sprintf("存储操作失败 (%s): %v", e.Path, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

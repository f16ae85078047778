// Package parser 把抓取到的原始字节解析为规范化条目。
// 格式语法（RSS 2.0 / Atom）完全委托给 gofeed，本包只做字段映射和清洗。
package parser

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/iabetor/feedhub/internal/feed"
	"github.com/iabetor/feedhub/internal/feederr"
)

// maxSummaryLen 摘要最大字符数，超出截断。
const maxSummaryLen = 500

// Func 解析函数签名。编排器通过它接入解析器，测试中可替换为桩。
type Func func(data []byte) ([]feed.Item, error)

// Parse 解析 RSS/Atom 字节为规范化条目。
// 无法解析时返回 feederr.ParseError。
func Parse(data []byte) ([]feed.Item, error) {
	fp := gofeed.NewParser()
	f, err := fp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &feederr.ParseError{Err: err}
	}

	items := make([]feed.Item, 0, len(f.Items))
	for _, gi := range f.Items {
		if gi == nil || gi.Link == "" {
			continue
		}

		summary := gi.Description
		if summary == "" {
			summary = gi.Content
		}
		summary = truncate(StripHTML(summary), maxSummaryLen)

		published := gi.PublishedParsed
		if published == nil {
			published = gi.UpdatedParsed
		}

		author := ""
		if len(gi.Authors) > 0 && gi.Authors[0] != nil {
			author = gi.Authors[0].Name
		}

		items = append(items, feed.Item{
			Title:     gi.Title,
			Link:      gi.Link,
			Published: published,
			Summary:   summary,
			Content:   gi.Content,
			Author:    author,
		})
	}
	return items, nil
}

// StripHTML 剥离 HTML 标签与实体，只保留纯文本。
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	tz := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		tt := tz.Next()
		switch tt {
		case html.ErrorToken:
			return collapseSpaces(b.String())
		case html.StartTagToken:
			name, _ := tz.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := tz.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tz.Text())
				b.WriteByte(' ')
			}
		}
	}
}

// collapseSpaces 合并连续空白并去掉首尾空白。
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate 按 UTF-8 字符数截断字符串。
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

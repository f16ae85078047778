// Package enrich 提供可选的正文抽取：抓取条目链接指向的页面，
// 用 goquery 提取主体文本填充 Entry.Content。
// 抽取失败只记日志，不影响条目入库。
package enrich

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// maxContentLen 抽取正文的最大字符数。
const maxContentLen = 20000

// 按优先级尝试的正文容器选择器。
var contentSelectors = []string{
	"article",
	"main",
	"#content",
	".post-content",
	".entry-content",
}

// Func 正文抽取函数签名。返回抽取到的纯文本正文。
type Func func(ctx context.Context, link string) (string, error)

// New 创建默认的正文抽取器。
func New(timeout time.Duration, userAgent string) Func {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, link string) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("HTTP %d", resp.StatusCode)
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return "", err
		}
		return Extract(doc), nil
	}
}

// Extract 从文档中提取主体文本。优先找常见的正文容器，
// 都没有时退回整个 body。
func Extract(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside").Remove()

	var sel *goquery.Selection
	for _, q := range contentSelectors {
		if s := doc.Find(q); s.Length() > 0 {
			sel = s.First()
			break
		}
	}
	if sel == nil {
		sel = doc.Find("body")
	}

	text := strings.Join(strings.Fields(sel.Text()), " ")
	if utf8.RuneCountInString(text) > maxContentLen {
		text = string([]rune(text)[:maxContentLen])
	}
	return text
}

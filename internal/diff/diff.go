// Package diff 计算本轮解析结果中尚未入库的条目。
package diff

import "github.com/iabetor/feedhub/internal/feed"

// Detect 返回 items 中 Link 不在 existing 里的子集，保持输入顺序。
// 纯函数，无 I/O。链接按原始字符串精确比较，不做大小写或
// 尾部斜杠归一化：链接被视为发布方选定的不透明标识。
// 同一批 items 内部重复的链接只保留第一条。
func Detect(existing map[string]struct{}, items []feed.Item) []feed.Item {
	fresh := make([]feed.Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := existing[it.Link]; ok {
			continue
		}
		if _, dup := seen[it.Link]; dup {
			continue
		}
		seen[it.Link] = struct{}{}
		fresh = append(fresh, it)
	}
	return fresh
}

package cache

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// IndexFile 是无扩展名路径（视为目录）对应的文件名。
const IndexFile = "index.html"

// Target 将请求 URL 映射为 Root 下的文件路径：丢弃 query 与 fragment，
// 先按 "/" 为根规范化（".." 无法越过根），再为目录式路径追加 index.html。
//
//	/             -> <Root>/index.html
//	/foo          -> <Root>/foo/index.html
//	/foo/         -> <Root>/foo/index.html
//	/foo/bar.txt  -> <Root>/foo/bar.txt
func (c *Cacher) Target(rawURL string) string {
	return targetPath(c.opts.Root, rawURL)
}

func targetPath(root, rawURL string) string {
	p := urlPath(rawURL)
	clean := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") || path.Ext(clean) == "" {
		clean = path.Join(clean, IndexFile)
	}
	return filepath.Join(root, filepath.FromSlash(clean))
}

// urlPath 取出 URL 的路径部分；无法解析时按第一个 ? 或 # 截断。
func urlPath(rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		return parsed.Path
	}
	if idx := strings.IndexAny(rawURL, "?#"); idx >= 0 {
		return rawURL[:idx]
	}
	return rawURL
}

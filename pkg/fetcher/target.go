package fetcher

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// PagePlaceholder は URL テンプレート内のページ番号の位置を示します。
const PagePlaceholder = "{page}"

// Target は取得対象のURLと固定ヘッダーです。
type Target struct {
	URL    string
	Header http.Header
}

// NewTarget はURLから Target を生成します。
func NewTarget(rawURL string) Target {
	return Target{URL: rawURL}
}

// PageTarget は URL テンプレートの {page} をページ番号で置換した Target を生成します。
func PageTarget(template string, page int) Target {
	return Target{URL: strings.ReplaceAll(template, PagePlaceholder, strconv.Itoa(page))}
}

// WithHeader はヘッダーを追加した Target のコピーを返します。
func (t Target) WithHeader(key, value string) Target {
	h := t.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(key, value)
	t.Header = h
	return t
}

// origin は Referer に使用する scheme://host/ を返します。
func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

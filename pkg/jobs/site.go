package jobs

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shouni/go-job-crawler/pkg/fetcher"
	"github.com/shouni/go-job-crawler/pkg/types"
)

// ErrNoTitle は詳細ページからタイトルを抽出できなかったことを示します。
var ErrNoTitle = errors.New("求人タイトルが見つかりません")

// ErrUnknownSite は登録されていないサイト名が指定されたことを示します。
var ErrUnknownSite = errors.New("未対応のサイトです")

// detailExtractor は解析済みドキュメントから求人の各項目を抽出します。
type detailExtractor func(doc *goquery.Document) types.JobPosting

// Site は求人サイトごとの一覧URLと抽出ルールです。
type Site struct {
	Name       string
	BaseURL    string
	ListingURL string // {page} をページ番号に置換して使用

	linkSelector  string
	extractDetail detailExtractor
}

var registry = map[string]*Site{}

func register(s *Site) {
	registry[s.Name] = s
}

// Lookup は名前からサイトを取得します。
func Lookup(name string) (*Site, error) {
	s, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (対応サイト: %s)", ErrUnknownSite, name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names は登録済みのサイト名をソートして返します。
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListingTarget は一覧ページの取得対象を返します。
func (s *Site) ListingTarget(page int) fetcher.Target {
	return fetcher.PageTarget(s.ListingURL, page)
}

// ExtractURLs は一覧ページのHTMLから求人詳細ページのURLを抽出します。
// クエリ文字列は除去され、相対URLはサイトのベースURLで解決されます。
func (s *Site) ExtractURLs(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}

	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ベースURLの解析に失敗しました: %w", err)
	}

	var urls []string
	doc.Find(s.linkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if link := cleanLink(base, href); link != "" {
			urls = append(urls, link)
		}
	})
	return urls, nil
}

// ExtractJob は詳細ページのHTMLから求人を抽出します。
// タイトルがない場合は ErrNoTitle を返します。
func (s *Site) ExtractJob(html []byte, pageURL string) (*types.JobPosting, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}

	job := s.extractDetail(doc)
	job.URL = pageURL
	if job.Title == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoTitle, pageURL)
	}
	return &job, nil
}

// cleanLink はリンクからクエリとフラグメントを除去し、絶対URLに解決します。
func cleanLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

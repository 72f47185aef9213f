package feed

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/shouni/go-job-crawler/pkg/fetcher"
	"github.com/shouni/go-job-crawler/pkg/retry"
)

// Fetcher は Parser が依存するページ取得のインターフェースです。*fetcher.Fetcher が実装します。
type Fetcher interface {
	Fetch(ctx context.Context, target fetcher.Target, label string, policy retry.Policy) (*fetcher.Result, error)
}

// Parser 構造体
type Parser struct {
	client Fetcher
	policy retry.Policy
}

// NewParser は新しい Parser インスタンスを初期化し、依存関係を注入します。
func NewParser(client Fetcher, policy retry.Policy) *Parser {
	return &Parser{client: client, policy: policy}
}

// FetchAndParse は指定されたURLからフィードを取得し、パースします。
func (p *Parser) FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	res, err := p.client.Fetch(ctx, fetcher.NewTarget(feedURL), "feed", p.policy)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得失敗 (URL: %s): %w", feedURL, err)
	}

	fp := gofeed.NewParser()
	feed, parseErr := fp.Parse(bytes.NewReader(res.Body))
	if parseErr != nil {
		return nil, fmt.Errorf("RSSフィードのパース失敗 (URL: %s): %w", feedURL, parseErr)
	}
	return feed, nil
}

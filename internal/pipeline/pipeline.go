package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/shouni/go-job-crawler/internal/config"
	"github.com/shouni/go-job-crawler/pkg/crawl"
	"github.com/shouni/go-job-crawler/pkg/feed"
	"github.com/shouni/go-job-crawler/pkg/fetcher"
	"github.com/shouni/go-job-crawler/pkg/httpclient"
	"github.com/shouni/go-job-crawler/pkg/jobs"
	"github.com/shouni/go-job-crawler/pkg/store"
)

// App は設定から組み立てた依存関係をまとめたものです。コマンドごとに1つ生成します。
type App struct {
	Config *config.Config
	Logger *slog.Logger
	RunID  string

	listing *fetcher.Fetcher // 一覧ページ用 (クライアントのタイムアウト)
	detail  *fetcher.Fetcher // 詳細ページ用 (リクエストごとにランダムなタイムアウト)
	crawlOp []crawl.Option
}

// New は設定から HTTP クライアント、フェッチャー、クローラーの依存関係を組み立てます。
func New(cfg *config.Config, logger *slog.Logger, clientOptions ...httpclient.Option) *App {
	runID := uuid.NewString()
	logger = logger.With(slog.String("run_id", runID))

	opts := append([]httpclient.Option{
		httpclient.WithCloudflareBypass(cfg.HTTP.CloudflareBypass),
		httpclient.WithMaxBodySize(cfg.HTTP.MaxBodySize),
	}, clientOptions...)
	client := httpclient.New(cfg.HTTP.Timeout, opts...)

	return &App{
		Config:  cfg,
		Logger:  logger,
		RunID:   runID,
		listing: fetcher.New(client, fetcher.WithLogger(logger), fetcher.WithHeaderProfile(cfg.HTTP.HeaderProfile(false))),
		detail:  fetcher.New(client, fetcher.WithLogger(logger), fetcher.WithHeaderProfile(cfg.HTTP.HeaderProfile(true))),
		crawlOp: []crawl.Option{crawl.WithLogger(logger), crawl.WithRunID(runID)},
	}
}

// WithCrawlOptions はクローラーに渡すオプションを追加します。
func (a *App) WithCrawlOptions(options ...crawl.Option) *App {
	a.crawlOp = append(a.crawlOp, options...)
	return a
}

// CollectURLs はサイトの一覧ページからURLを収集し、URLファイルに追記します。
// fresh が true の場合は収集前にURLファイルを空にします。
func (a *App) CollectURLs(ctx context.Context, siteName string, fresh bool) (crawl.Summary, error) {
	site, err := jobs.Lookup(siteName)
	if err != nil {
		return crawl.Summary{}, err
	}

	urlFile := store.NewURLFile(a.Config.Output.URLsFile)
	if fresh {
		if err := urlFile.Truncate(); err != nil {
			return crawl.Summary{}, err
		}
	}

	collector := crawl.NewURLCollector(a.listing, a.Config.CrawlerConfig(), a.crawlOp...)
	return collector.Collect(ctx, site, urlFile)
}

// CrawlDetails は inputFile のURLの詳細ページを取得し、設定された出力先にバッチで保存します。
// inputFile が空の場合は設定のURLファイルを使用します。
func (a *App) CrawlDetails(ctx context.Context, siteName, inputFile string) (crawl.DetailReport, error) {
	site, err := jobs.Lookup(siteName)
	if err != nil {
		return crawl.DetailReport{}, err
	}

	if inputFile == "" {
		inputFile = a.Config.Output.URLsFile
	}
	urls, err := store.NewURLFile(inputFile).ReadURLs()
	if err != nil {
		return crawl.DetailReport{}, err
	}

	sink, err := a.openSink(ctx)
	if err != nil {
		return crawl.DetailReport{}, err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			a.Logger.Warn("出力先のクローズに失敗しました", slog.String("error", cerr.Error()))
		}
	}()

	a.Logger.Info("詳細ページの取得を開始します",
		slog.String("site", site.Name),
		slog.Int("urls", len(urls)),
		slog.String("sink", a.Config.Output.Sink))

	crawler := crawl.NewDetailCrawler(a.detail, a.Config.CrawlerConfig(), a.crawlOp...)
	return crawler.Run(ctx, site, urls, sink)
}

// CollectFeed はフィードのアイテムのリンクをURLファイルに追記し、追記した件数を返します。
func (a *App) CollectFeed(ctx context.Context, feedURL string) (int, error) {
	feedURL, err := NormalizeURL(feedURL)
	if err != nil {
		return 0, err
	}

	parsed, err := feed.NewParser(a.listing, a.Config.Retry.Policy()).FetchAndParse(ctx, feedURL)
	if err != nil {
		return 0, err
	}

	links := feed.GetAllLinks(feed.NewFeedAdapter(parsed))
	if err := store.NewURLFile(a.Config.Output.URLsFile).Append(links); err != nil {
		return 0, err
	}
	a.Logger.Info("フィードのURLを保存しました", slog.String("feed", feedURL), slog.Int("urls", len(links)))
	return len(links), nil
}

// FetchOne は1つのURLをリトライポリシーに従って取得します。
func (a *App) FetchOne(ctx context.Context, rawURL string) (*fetcher.Result, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	return a.listing.Fetch(ctx, fetcher.NewTarget(target), "single", a.Config.Retry.Policy())
}

func (a *App) openSink(ctx context.Context) (store.BatchSink, error) {
	switch a.Config.Output.Sink {
	case config.SinkSQLite:
		return store.NewSQLiteSink(ctx, a.Config.Output.SQLitePath, a.RunID)
	default:
		return store.NewJSONBatchSink(a.Config.Output.Dir)
	}
}

// NormalizeURL はURLを検証します。スキームがない場合は https:// を補完します。
func NormalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("URLが指定されていません")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("URLのパースエラー: %w", err)
	}

	// スキームがない場合は補完する
	if parsedURL.Scheme == "" {
		rawURL = "https://" + rawURL
		parsedURL, err = url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("URLのパースエラー (スキーム補完後): %w", err)
		}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("無効なURLスキームです。httpまたはhttpsを指定してください: %s", rawURL)
	}
	if parsedURL.Host == "" {
		return "", fmt.Errorf("URLにホストがありません: %s", rawURL)
	}
	return rawURL, nil
}

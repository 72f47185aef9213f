package crawl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-job-crawler/pkg/fetcher"
	"github.com/shouni/go-job-crawler/pkg/jobs"
)

// URLSink は収集したURLの出力先です。*store.URLFile が実装します。
type URLSink interface {
	Append(urls []string) error
}

// URLCollector は一覧ページを順番に取得し、求人詳細ページのURLを収集します。
type URLCollector struct {
	base
}

// NewURLCollector は、新しい URLCollector を生成します。
func NewURLCollector(f Fetcher, cfg Config, options ...Option) *URLCollector {
	return &URLCollector{base: newBase(f, cfg, options...)}
}

// Collect は StartPage から一覧ページを取得し、各ページのURLを sink に追記します。
// 次のいずれかで終了します:
//   - 404 (データの終端)
//   - URLを1件も含まないページ
//   - EndPage に到達
//   - MaxConsecutiveFailures 回連続の取得失敗
//
// それ以外の失敗はそのページを飛ばして次のページに進みます。
// 取得の成否にかかわらず、次のページを取得する前にランダムな待機を挟みます。
func (c *URLCollector) Collect(ctx context.Context, site *jobs.Site, sink URLSink) (Summary, error) {
	sum := Summary{RunID: c.runID}
	consecutiveFailures := 0
	logger := c.logger.With(slog.String("site", site.Name))

	for page := c.cfg.StartPage; ; page++ {
		if c.cfg.EndPage > 0 && page > c.cfg.EndPage {
			sum.StopReason = StopEndPage
			break
		}
		sum.LastPage = page

		urls, err := c.collectPage(ctx, site, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			if fetcher.IsNotFound(err) {
				logger.Info("404 を受信しました。最後のページに到達したと判断します", slog.Int("page", page))
				sum.StopReason = StopNotFound
				break
			}

			sum.Failed++
			consecutiveFailures++
			logger.Warn("ページの取得に失敗しました",
				slog.Int("page", page),
				slog.Int("consecutive_failures", consecutiveFailures),
				slog.String("error", err.Error()))
			if consecutiveFailures >= c.cfg.MaxConsecutiveFailures {
				logger.Error("連続失敗の上限に達したため収集を中止します", slog.Int("consecutive_failures", consecutiveFailures))
				sum.StopReason = StopTooManyFailures
				break
			}
			logger.Info("このページを飛ばして次のページに進みます", slog.Int("page", page))
			if err := c.pause(ctx); err != nil {
				return sum, err
			}
			continue
		}

		consecutiveFailures = 0
		if len(urls) == 0 {
			logger.Info("URLが見つからないため収集を終了します", slog.Int("page", page))
			sum.StopReason = StopEmptyPage
			break
		}

		if err := sink.Append(urls); err != nil {
			return sum, fmt.Errorf("URLの保存に失敗しました (ページ %d): %w", page, err)
		}
		sum.Pages++
		sum.URLs += len(urls)
		logger.Info("ページのURLを保存しました", slog.Int("page", page), slog.Int("urls", len(urls)))

		if c.cfg.EndPage > 0 && page >= c.cfg.EndPage {
			sum.StopReason = StopEndPage
			break
		}
		if err := c.pause(ctx); err != nil {
			return sum, err
		}
	}

	logger.Info("URLの収集が完了しました",
		slog.Int("last_page", sum.LastPage),
		slog.Int("pages", sum.Pages),
		slog.Int("urls", sum.URLs),
		slog.String("stop_reason", sum.StopReason))
	return sum, nil
}

func (c *URLCollector) collectPage(ctx context.Context, site *jobs.Site, page int) ([]string, error) {
	res, err := c.fetcher.Fetch(ctx, site.ListingTarget(page), fmt.Sprintf("page %d", page), c.cfg.Policy)
	if err != nil {
		return nil, err
	}
	return site.ExtractURLs(res.Body)
}

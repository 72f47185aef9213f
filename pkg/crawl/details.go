package crawl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-job-crawler/pkg/fetcher"
	"github.com/shouni/go-job-crawler/pkg/jobs"
	"github.com/shouni/go-job-crawler/pkg/store"
	"github.com/shouni/go-job-crawler/pkg/types"
)

// DetailCrawler は求人詳細ページを順番に取得・抽出し、バッチ単位で保存します。
type DetailCrawler struct {
	base
}

// NewDetailCrawler は、新しい DetailCrawler を生成します。
func NewDetailCrawler(f Fetcher, cfg Config, options ...Option) *DetailCrawler {
	return &DetailCrawler{base: newBase(f, cfg, options...)}
}

// DetailReport は Run の結果です。Failures は失敗したURLとその理由です。
type DetailReport struct {
	Summary
	Failures []types.URLResult
}

// Run は urls の詳細ページを取得し、BatchSize 件ごとに sink へ書き込みます。
// 失敗したURLはログに記録して飛ばします。最後の端数のバッチも保存されます。
// コンテキストが終了した場合は、それまでの端数を保存してからエラーを返します。
func (c *DetailCrawler) Run(ctx context.Context, site *jobs.Site, urls []string, sink store.BatchSink) (DetailReport, error) {
	report := DetailReport{Summary: Summary{RunID: c.runID, URLs: len(urls)}}
	logger := c.logger.With(slog.String("site", site.Name))

	var pending []types.JobPosting
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batch := types.Batch{Number: report.Batches + 1, Jobs: pending}
		// 中断後も端数のバッチは保存する
		if err := sink.WriteBatch(context.WithoutCancel(ctx), batch); err != nil {
			return fmt.Errorf("バッチ %d の保存に失敗しました: %w", batch.Number, err)
		}
		report.Batches++
		logger.Info("バッチを保存しました", slog.Int("batch", batch.Number), slog.Int("jobs", len(pending)))
		pending = nil
		return nil
	}

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return report, joinFlush(flush(), err)
		}

		logger.Info("詳細ページを取得します", slog.Int("index", i+1), slog.Int("total", len(urls)), slog.String("url", u))
		job, err := c.crawlOne(ctx, site, u)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, joinFlush(flush(), ctxErr)
			}
			report.Failed++
			report.Failures = append(report.Failures, types.URLResult{URL: u, Error: err})
			logger.Warn("詳細ページの処理に失敗しました", slog.String("url", u), slog.String("error", err.Error()))
		} else {
			report.Succeeded++
			pending = append(pending, *job)
			if len(pending) >= c.cfg.BatchSize {
				if err := flush(); err != nil {
					return report, err
				}
			}
		}

		if i < len(urls)-1 {
			if err := c.pause(ctx); err != nil {
				return report, joinFlush(flush(), err)
			}
		}
	}

	if err := flush(); err != nil {
		return report, err
	}
	logger.Info("詳細ページの取得が完了しました",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Int("batches", report.Batches))
	return report, nil
}

func (c *DetailCrawler) crawlOne(ctx context.Context, site *jobs.Site, u string) (*types.JobPosting, error) {
	res, err := c.fetcher.Fetch(ctx, fetcher.NewTarget(u), "job detail", c.cfg.Policy)
	if err != nil {
		return nil, err
	}
	return site.ExtractJob(res.Body, u)
}

// joinFlush は中断時の保存エラーと中断理由を結合します。
func joinFlush(flushErr, cause error) error {
	if flushErr != nil {
		return fmt.Errorf("%w (中断時の保存にも失敗しました: %v)", cause, flushErr)
	}
	return cause
}

package crawl

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/go-job-crawler/pkg/fetcher"
	"github.com/shouni/go-job-crawler/pkg/retry"
)

const (
	// DefaultDelayMin と DefaultDelayMax はリクエスト間のランダムな待機時間の範囲です。
	DefaultDelayMin = 2 * time.Second
	DefaultDelayMax = 5 * time.Second
	// DefaultMaxConsecutiveFailures は一覧の収集を中止するまでの連続失敗ページ数です。
	DefaultMaxConsecutiveFailures = 5
	// DefaultBatchSize は1つのバッチに含める求人の数です。
	DefaultBatchSize = 10
)

// 収集の終了理由
const (
	StopNotFound        = "not_found"
	StopEmptyPage       = "empty_page"
	StopEndPage         = "end_page"
	StopTooManyFailures = "too_many_failures"
	StopCompleted       = "completed"
)

// Fetcher はクローラーが依存するページ取得のインターフェースです。*fetcher.Fetcher が実装します。
type Fetcher interface {
	Fetch(ctx context.Context, target fetcher.Target, label string, policy retry.Policy) (*fetcher.Result, error)
}

// Config はクローラーの動作設定です。
type Config struct {
	Policy                 retry.Policy
	DelayMin               time.Duration
	DelayMax               time.Duration
	MaxConsecutiveFailures int
	StartPage              int
	EndPage                int // 0 の場合は上限なし
	BatchSize              int
}

// DefaultConfig はデフォルトの設定を返します。
func DefaultConfig() Config {
	return Config{
		Policy:                 retry.DefaultPolicy(),
		DelayMin:               DefaultDelayMin,
		DelayMax:               DefaultDelayMax,
		MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		StartPage:              1,
		BatchSize:              DefaultBatchSize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = d.MaxConsecutiveFailures
	}
	if c.StartPage <= 0 {
		c.StartPage = d.StartPage
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.DelayMax < c.DelayMin {
		c.DelayMax = c.DelayMin
	}
	return c
}

// Summary はクロール1回分の集計です。
type Summary struct {
	RunID      string
	Pages      int    // 取得に成功した一覧ページ数
	URLs       int    // 収集したURL数
	Succeeded  int    // 抽出に成功した詳細ページ数
	Failed     int    // 失敗したページ数
	Batches    int    // 保存したバッチ数
	LastPage   int    // 最後に試行したページ番号
	StopReason string // 一覧収集の終了理由
}

// SleepFunc は待機を行う関数です。コンテキストが終了した場合はエラーを返します。
type SleepFunc func(ctx context.Context, d time.Duration) error

type base struct {
	fetcher Fetcher
	cfg     Config
	logger  *slog.Logger
	sleep   SleepFunc
	randN   func(n int64) int64
	runID   string
}

// Option はクローラーの設定を行うための関数型です。
type Option func(*base)

// WithLogger はログ出力先を設定します。
func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSleep は待機関数を差し替えます。
func WithSleep(fn SleepFunc) Option {
	return func(b *base) {
		if fn != nil {
			b.sleep = fn
		}
	}
}

// WithRunID は実行IDを設定します。未設定の場合は UUID が生成されます。
func WithRunID(id string) Option {
	return func(b *base) {
		if id != "" {
			b.runID = id
		}
	}
}

func newBase(f Fetcher, cfg Config, options ...Option) base {
	b := base{
		fetcher: f,
		cfg:     cfg.withDefaults(),
		logger:  slog.Default(),
		sleep:   sleepContext,
		randN:   rand.Int64N,
	}
	for _, opt := range options {
		opt(&b)
	}
	if b.runID == "" {
		b.runID = uuid.NewString()
	}
	b.logger = b.logger.With(slog.String("run_id", b.runID))
	return b
}

// RunID は実行IDを返します。
func (b *base) RunID() string {
	return b.runID
}

// pause はリクエスト間のランダムな待機を行います。
func (b *base) pause(ctx context.Context) error {
	d := b.cfg.DelayMin
	if span := b.cfg.DelayMax - b.cfg.DelayMin; span > 0 {
		d += time.Duration(b.randN(int64(span) + 1))
	}
	if d <= 0 {
		return ctx.Err()
	}
	b.logger.Debug("次のリクエストまで待機します", slog.Duration("delay", d))
	return b.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

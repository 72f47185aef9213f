package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shouni/go-job-crawler/pkg/httpclient"
	"github.com/shouni/go-job-crawler/pkg/retry"
)

// Getter は1回のHTTP GETを実行するインターフェースです。*httpclient.Client が実装します。
type Getter interface {
	Get(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

// Result は取得に成功したページです。
type Result struct {
	URL        string
	Body       []byte
	StatusCode int
	Attempts   int
}

// Fetcher はリトライポリシーに従ってページを取得します。
// 複数のゴルーチンから同時に使用できます (呼び出しごとに状態を持ちます)。
type Fetcher struct {
	client   Getter
	logger   *slog.Logger
	profile  HeaderProfile
	rand     Randomizer
	newTimer func() backoff.Timer
}

// Option は Fetcher の設定を行うための関数型です。
type Option func(*Fetcher)

// WithLogger はログ出力先を設定します。
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithHeaderProfile は試行ごとに付与するヘッダーの設定を差し替えます。
func WithHeaderProfile(p HeaderProfile) Option {
	return func(f *Fetcher) {
		f.profile = p
	}
}

// WithRandomizer は User-Agent とタイムアウトの選択に使う乱数源を差し替えます。
func WithRandomizer(r Randomizer) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.rand = r
		}
	}
}

// WithTimer は呼び出しごとに使用する待機タイマーの生成関数を設定します。
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(f *Fetcher) {
		f.newTimer = newTimer
	}
}

// New は、新しい Fetcher を生成します。
func New(client Getter, options ...Option) *Fetcher {
	f := &Fetcher{
		client:  client,
		logger:  slog.Default(),
		profile: DefaultHeaderProfile(),
		rand:    globalRand{},
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Fetch は target を取得します。
// 成功時は最初の2xxレスポンスのボディを返します。
// 失敗時のエラーは常に *TerminalFailure で、最後の試行の分類と試行回数を含みます。
// label はログに出力する対象の説明です (例: "page 3", "job detail")。
// policy がゼロ値の場合は retry.DefaultPolicy() を使用します。
func (f *Fetcher) Fetch(ctx context.Context, target Target, label string, policy retry.Policy) (*Result, error) {
	if policy == (retry.Policy{}) {
		policy = retry.DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, &TerminalFailure{URL: target.URL, Class: retry.ClassNone, Err: fmt.Errorf("%w: %w", ErrInvalidPolicy, err)}
	}

	logger := f.logger.With(slog.String("label", label), slog.String("url", target.URL))

	var (
		resp       *httpclient.Response
		lastStatus int
	)

	// 1回の試行
	attemptOnce := func(attempt int) (retry.ErrorClass, error) {
		logger.Info("取得を試行します",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", policy.MaxAttempts))

		req := httpclient.Request{
			URL:     target.URL,
			Header:  f.profile.header(target, f.rand),
			Timeout: f.profile.timeout(f.rand),
		}
		r, err := f.client.Get(ctx, req)
		if err != nil {
			class := Classify(err)
			lastStatus = statusCodeOf(err)
			logger.Warn("取得に失敗しました",
				slog.Int("attempt", attempt+1),
				slog.String("class", class.String()),
				slog.Int("status", lastStatus),
				slog.String("error", err.Error()))
			return class, err
		}

		resp = r
		lastStatus = r.StatusCode
		return retry.ClassNone, nil
	}

	opts := []retry.Option{
		retry.WithNotify(func(attempt int, class retry.ErrorClass, err error, delay time.Duration) {
			logger.Info("待機してから再試行します",
				slog.Int("attempt", attempt+1),
				slog.String("class", class.String()),
				slog.Duration("delay", delay))
		}),
	}
	if f.newTimer != nil {
		opts = append(opts, retry.WithTimer(f.newTimer()))
	}

	res := retry.Do(ctx, policy, attemptOnce, opts...)
	if res.Err == nil && resp != nil {
		logger.Info("取得に成功しました",
			slog.Int("attempts", res.Attempts),
			slog.Int("status", resp.StatusCode),
			slog.Int("bytes", len(resp.Body)))
		return &Result{
			URL:        target.URL,
			Body:       resp.Body,
			StatusCode: resp.StatusCode,
			Attempts:   res.Attempts,
		}, nil
	}

	failure := &TerminalFailure{
		URL:        target.URL,
		Class:      res.Class,
		StatusCode: lastStatus,
		Attempts:   res.Attempts,
		Exhausted:  res.Exhausted,
		Err:        res.Err,
	}

	switch {
	case res.Exhausted:
		logger.Error("最大試行回数に到達したため取得を中止します",
			slog.Int("attempts", res.Attempts),
			slog.String("class", res.Class.String()))
	case res.Interrupted:
		logger.Warn("待機中にキャンセルされたため取得を中止します",
			slog.Int("attempts", res.Attempts),
			slog.String("class", res.Class.String()))
	default:
		logger.Error("リトライ不可のエラーのため取得を中止します",
			slog.Int("attempts", res.Attempts),
			slog.String("class", res.Class.String()),
			slog.Int("status", lastStatus))
	}
	return nil, failure
}

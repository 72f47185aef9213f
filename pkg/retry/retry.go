package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Operation はリトライ可能な1回の試行です。attempt は0始まりの試行番号です。
// 成功時は (ClassNone, nil)、失敗時はエラーとその分類を返します。
type Operation func(attempt int) (ErrorClass, error)

// NotifyFunc は待機の直前に呼び出されます。attempt は失敗した試行の番号です。
type NotifyFunc func(attempt int, class ErrorClass, err error, delay time.Duration)

// Result は Do の最終状態です。
type Result struct {
	Attempts    int        // 実行した試行回数
	Class       ErrorClass // 最後に失敗した試行の分類 (成功時は ClassNone)
	Err         error      // 最後のエラー (成功時は nil)
	Exhausted   bool       // リトライ可能な失敗のまま最大試行回数に到達した
	Interrupted bool       // 待機中にコンテキストが終了した
}

type options struct {
	timer  backoff.Timer
	notify NotifyFunc
}

// Option は Do の動作を変更します。
type Option func(*options)

// WithTimer は待機に使用するタイマーを差し替えます。テストで実時間の待機を避けるために使います。
func WithTimer(t backoff.Timer) Option {
	return func(o *options) {
		o.timer = t
	}
}

// WithNotify は待機前に呼ばれるコールバックを設定します。
func WithNotify(fn NotifyFunc) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// classBackOff は、直前の試行の分類と試行番号から待機時間を決める backoff.BackOff 実装です。
type classBackOff struct {
	policy  Policy
	attempt int
	class   ErrorClass
}

func (b *classBackOff) observe(attempt int, class ErrorClass) {
	b.attempt = attempt
	b.class = class
}

func (b *classBackOff) NextBackOff() time.Duration {
	return b.policy.Delay(b.class, b.attempt)
}

func (b *classBackOff) Reset() {
	b.attempt = 0
	b.class = ClassNone
}

// Do は Policy に従って op を順番に試行します。
// リトライ不可の分類は最初の発生で即座に終了し、リトライ可能な分類は最大試行回数まで
// 分類ごとの指数バックオフを挟んで再試行します。最後の試行の後には待機しません。
func Do(ctx context.Context, p Policy, op Operation, opts ...Option) Result {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	cb := &classBackOff{policy: p}
	bo := backoff.WithContext(backoff.WithMaxRetries(cb, uint64(p.MaxAttempts-1)), ctx)

	var res Result

	// リトライ処理内で実行される実際の操作
	retryableOp := func() error {
		attempt := res.Attempts
		res.Attempts++

		class, err := op(attempt)
		if err == nil {
			res.Class, res.Err = ClassNone, nil
			return nil
		}
		res.Class, res.Err = class, err
		cb.observe(attempt, class)

		if !class.Retryable() {
			return backoff.Permanent(err) // 永続エラーとしてラップし、即時終了
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		if o.notify != nil {
			o.notify(res.Attempts-1, res.Class, err, delay)
		}
	}

	err := backoff.RetryNotifyWithTimer(retryableOp, bo, notify, o.timer)
	if err == nil {
		return res
	}

	switch {
	case !res.Class.Retryable():
		// 最初の発生で中止したリトライ不可のエラー
	case res.Attempts >= p.MaxAttempts:
		res.Exhausted = true
	default:
		res.Interrupted = true
		res.Err = fmt.Errorf("リトライ待機が中断されました (最終エラー: %v): %w", res.Err, err)
	}
	return res
}

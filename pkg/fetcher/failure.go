package fetcher

import (
	"errors"
	"fmt"

	"github.com/shouni/go-job-crawler/pkg/httpclient"
	"github.com/shouni/go-job-crawler/pkg/retry"
)

// ErrInvalidPolicy はリトライポリシーが不正で、1回も試行しなかったことを表します。
// この場合の TerminalFailure は Class が retry.ClassNone、Attempts が 0 です。
var ErrInvalidPolicy = errors.New("リトライポリシーが不正です")

// TerminalFailure は1回のフェッチ呼び出しが最終的に失敗したことを表します。
// Fetch が失敗時に返すエラーは常にこの型です。
type TerminalFailure struct {
	URL        string
	Class      retry.ErrorClass // 最後の試行の分類
	StatusCode int              // 最後に受信したステータスコード (レスポンスなしの場合は 0)
	Attempts   int              // 実行した試行回数
	Exhausted  bool             // リトライ可能な失敗のまま最大試行回数に到達した
	Err        error            // 最後の試行のエラー
}

func (f *TerminalFailure) Error() string {
	reason := "リトライ不可のエラー"
	if f.Exhausted {
		reason = "最大試行回数に到達"
	}
	return fmt.Sprintf("URL(%s)の取得に失敗しました: %s (分類: %s, 試行回数: %d, ステータス: %d): %v",
		f.URL, reason, f.Class, f.Attempts, f.StatusCode, f.Err)
}

func (f *TerminalFailure) Unwrap() error {
	return f.Err
}

// AsTerminalFailure はエラーチェーンから TerminalFailure を取り出します。
func AsTerminalFailure(err error) (*TerminalFailure, bool) {
	var failure *TerminalFailure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// IsNotFound はエラーが 404 による終了かどうかを返します。ページネーションの終端判定に使います。
func IsNotFound(err error) bool {
	failure, ok := AsTerminalFailure(err)
	return ok && failure.Class == retry.NotFound
}

// Classify は1回の試行のエラーを ErrorClass に分類します。
// チャレンジはステータスより優先され、レスポンスのないエラーはすべて NetworkError です。
func Classify(err error) retry.ErrorClass {
	if err == nil {
		return retry.ClassNone
	}

	var challengeErr *httpclient.ChallengeError
	if errors.As(err, &challengeErr) {
		return retry.ChallengeFailure
	}

	if code, ok := httpclient.IsStatusError(err); ok {
		if class := retry.ClassifyStatus(code); class != retry.ClassNone {
			return class
		}
		return retry.OtherHTTPError
	}

	// ボディが大きすぎる場合は再試行しても結果は変わらない
	if errors.Is(err, httpclient.ErrBodyTooLarge) {
		return retry.OtherHTTPError
	}

	return retry.NetworkError
}

// statusCodeOf はエラーに含まれるステータスコードを返します。
func statusCodeOf(err error) int {
	var challengeErr *httpclient.ChallengeError
	if errors.As(err, &challengeErr) {
		return challengeErr.StatusCode
	}
	code, _ := httpclient.IsStatusError(err)
	return code
}

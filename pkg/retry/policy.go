package retry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// リトライ関連のデフォルト値
	DefaultMaxAttempts   = 5
	DefaultBackoffFactor = 2.0

	// 分類ごとの基準待機時間 (レート制限 > チャレンジ > その他)
	DefaultInitialDelay   = 5 * time.Second
	DefaultChallengeDelay = 10 * time.Second
	DefaultRateLimitDelay = 30 * time.Second

	// MaxAttemptsLimit は MaxAttempts に指定できる上限です。
	MaxAttemptsLimit = 100
)

// maxDelaySeconds は time.Duration で表現できる最大の秒数です。
const maxDelaySeconds = float64(math.MaxInt64 / int64(time.Second))

// Policy は1回のフェッチ呼び出しにおけるリトライ動作を表します。呼び出し中は変更されません。
type Policy struct {
	MaxAttempts   int           // 最大試行回数 (1以上)
	BackoffFactor float64       // 指数バックオフの倍率 (1より大きい)
	InitialDelay  time.Duration // 5xx・ネットワークエラーの基準待機時間

	// 0 の場合はデフォルト値を使用
	ChallengeDelay time.Duration
	RateLimitDelay time.Duration
}

// DefaultPolicy は推奨されるデフォルト設定を返します。
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		BackoffFactor:  DefaultBackoffFactor,
		InitialDelay:   DefaultInitialDelay,
		ChallengeDelay: DefaultChallengeDelay,
		RateLimitDelay: DefaultRateLimitDelay,
	}
}

// Validate はポリシーの値が有効な範囲にあるかを検証します。
func (p Policy) Validate() error {
	var errs []error
	if p.MaxAttempts < 1 || p.MaxAttempts > MaxAttemptsLimit {
		errs = append(errs, fmt.Errorf("MaxAttempts は1以上%d以下である必要があります: %d", MaxAttemptsLimit, p.MaxAttempts))
	}
	if !(p.BackoffFactor > 1) {
		errs = append(errs, fmt.Errorf("BackoffFactor は1より大きい必要があります: %v", p.BackoffFactor))
	}
	if p.InitialDelay <= 0 {
		errs = append(errs, fmt.Errorf("InitialDelay は正の値である必要があります: %s", p.InitialDelay))
	}
	if p.ChallengeDelay < 0 || p.RateLimitDelay < 0 {
		errs = append(errs, errors.New("ChallengeDelay と RateLimitDelay に負の値は指定できません"))
	}
	return errors.Join(errs...)
}

// BaseDelay は分類ごとの基準待機時間を返します。
func (p Policy) BaseDelay(class ErrorClass) time.Duration {
	switch class {
	case RateLimited:
		if p.RateLimitDelay > 0 {
			return p.RateLimitDelay
		}
		return DefaultRateLimitDelay
	case ChallengeFailure:
		if p.ChallengeDelay > 0 {
			return p.ChallengeDelay
		}
		return DefaultChallengeDelay
	default:
		return p.InitialDelay
	}
}

// Delay は attempt 番目 (0始まり) の試行が class で失敗した後の待機時間を返します。
// delay = base * factor^attempt を秒単位に丸めた値です。
// time.Duration の範囲を超える場合は表現できる最大値に飽和します。
func (p Policy) Delay(class ErrorClass, attempt int) time.Duration {
	secs := math.Round(p.BaseDelay(class).Seconds() * math.Pow(p.BackoffFactor, float64(attempt)))
	if math.IsNaN(secs) || secs > maxDelaySeconds {
		secs = maxDelaySeconds
	}
	return time.Duration(secs) * time.Second
}

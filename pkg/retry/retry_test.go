package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer は待機時間を記録し、即座に発火するテスト用タイマーです。
type fakeTimer struct {
	waits []time.Duration
	ch    chan time.Time
}

func (t *fakeTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.ch = make(chan time.Time, 1)
	t.ch <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time {
	return t.ch
}

// scripted は順番に分類を返す Operation を生成します。ClassNone は成功を意味します。
func scripted(classes ...ErrorClass) (Operation, *int) {
	calls := 0
	return func(attempt int) (ErrorClass, error) {
		c := classes[calls]
		calls++
		if c == ClassNone {
			return ClassNone, nil
		}
		return c, errors.New(c.String())
	}, &calls
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	require.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	require.Equal(t, DefaultBackoffFactor, p.BackoffFactor)
	require.Equal(t, DefaultInitialDelay, p.InitialDelay)
	require.NoError(t, p.Validate())
	assert.Greater(t, p.BaseDelay(RateLimited), p.BaseDelay(ChallengeFailure))
	assert.Greater(t, p.BaseDelay(ChallengeFailure), p.BaseDelay(NetworkError))
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"minimal", Policy{MaxAttempts: 1, BackoffFactor: 1.5, InitialDelay: time.Second}, false},
		{"zero attempts", Policy{MaxAttempts: 0, BackoffFactor: 2, InitialDelay: time.Second}, true},
		{"attempts at limit", Policy{MaxAttempts: MaxAttemptsLimit, BackoffFactor: 2, InitialDelay: time.Second}, false},
		{"attempts over limit", Policy{MaxAttempts: MaxAttemptsLimit + 1, BackoffFactor: 2, InitialDelay: time.Second}, true},
		{"factor of one", Policy{MaxAttempts: 3, BackoffFactor: 1, InitialDelay: time.Second}, true},
		{"zero delay", Policy{MaxAttempts: 3, BackoffFactor: 2}, true},
		{"negative challenge delay", Policy{MaxAttempts: 3, BackoffFactor: 2, InitialDelay: time.Second, ChallengeDelay: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{MaxAttempts: 5, BackoffFactor: 2, InitialDelay: 5 * time.Second}

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, 80 * time.Second}
	for attempt, d := range want {
		assert.Equal(t, d, p.Delay(ServerError, attempt), "attempt %d", attempt)
		assert.Equal(t, d, p.Delay(NetworkError, attempt), "attempt %d", attempt)
	}

	// 未設定の分類別基準値はデフォルトを使う
	assert.Equal(t, 30*time.Second, p.Delay(RateLimited, 0))
	assert.Equal(t, 60*time.Second, p.Delay(RateLimited, 1))
	assert.Equal(t, 10*time.Second, p.Delay(ChallengeFailure, 0))
	assert.Equal(t, 40*time.Second, p.Delay(ChallengeFailure, 2))
}

func TestPolicyDelay_RoundsToSeconds(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffFactor: 1.5, InitialDelay: 3 * time.Second}

	assert.Equal(t, 3*time.Second, p.Delay(ServerError, 0))
	assert.Equal(t, 5*time.Second, p.Delay(ServerError, 1)) // 4.5 -> 5
	assert.Equal(t, 7*time.Second, p.Delay(ServerError, 2)) // 6.75 -> 7
}

func TestPolicyDelay_Saturates(t *testing.T) {
	p := DefaultPolicy()

	for _, class := range []ErrorClass{RateLimited, ChallengeFailure, ServerError, NetworkError} {
		prev := time.Duration(0)
		for attempt := 0; attempt < MaxAttemptsLimit*2; attempt++ {
			d := p.Delay(class, attempt)
			require.Positive(t, d, "%s attempt %d", class, attempt)
			require.GreaterOrEqual(t, d, prev, "%s attempt %d", class, attempt)
			prev = d
		}
	}

	assert.Equal(t, 30*time.Second*(1<<27), p.Delay(RateLimited, 27))
	assert.Equal(t, time.Duration(maxDelaySeconds)*time.Second, p.Delay(RateLimited, 29))
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		want      ErrorClass
		retryable bool
	}{
		{200, ClassNone, false},
		{204, ClassNone, false},
		{429, RateLimited, true},
		{404, NotFound, false},
		{401, Unauthorized, false},
		{403, Unauthorized, false},
		{410, Unauthorized, false},
		{501, Unauthorized, false},
		{505, Unauthorized, false},
		{500, ServerError, true},
		{502, ServerError, true},
		{503, ServerError, true},
		{504, ServerError, true},
		{400, OtherHTTPError, false},
		{304, OtherHTTPError, false},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			got := ClassifyStatus(tt.status)
			assert.Equal(t, tt.want, got, "status %d", tt.status)
			assert.Equal(t, tt.retryable, got.Retryable(), "status %d", tt.status)

			// 同じステータスは常に同じ分類と判定になる
			assert.Equal(t, got, ClassifyStatus(tt.status))
		})
	}
}

func TestDo(t *testing.T) {
	policy := Policy{MaxAttempts: 5, BackoffFactor: 2, InitialDelay: 5 * time.Second}

	tests := []struct {
		name          string
		policy        Policy
		classes       []ErrorClass
		wantAttempts  int
		wantClass     ErrorClass
		wantErr       bool
		wantExhausted bool
		wantWaits     []time.Duration
	}{
		{
			name:         "success on first attempt",
			policy:       policy,
			classes:      []ErrorClass{ClassNone},
			wantAttempts: 1,
			wantClass:    ClassNone,
		},
		{
			name:         "server error then success",
			policy:       policy,
			classes:      []ErrorClass{ServerError, ClassNone},
			wantAttempts: 2,
			wantClass:    ClassNone,
			wantWaits:    []time.Duration{5 * time.Second},
		},
		{
			name:         "not found stops without waiting",
			policy:       policy,
			classes:      []ErrorClass{NotFound},
			wantAttempts: 1,
			wantClass:    NotFound,
			wantErr:      true,
		},
		{
			name:         "unauthorized after a retry",
			policy:       policy,
			classes:      []ErrorClass{NetworkError, Unauthorized},
			wantAttempts: 2,
			wantClass:    Unauthorized,
			wantErr:      true,
			wantWaits:    []time.Duration{5 * time.Second},
		},
		{
			name:          "network errors exhaust attempts",
			policy:        Policy{MaxAttempts: 3, BackoffFactor: 2, InitialDelay: 5 * time.Second},
			classes:       []ErrorClass{NetworkError, NetworkError, NetworkError},
			wantAttempts:  3,
			wantClass:     NetworkError,
			wantErr:       true,
			wantExhausted: true,
			wantWaits:     []time.Duration{5 * time.Second, 10 * time.Second},
		},
		{
			name:         "rate limit uses its own base",
			policy:       policy,
			classes:      []ErrorClass{RateLimited, RateLimited, ClassNone},
			wantAttempts: 3,
			wantClass:    ClassNone,
			wantWaits:    []time.Duration{30 * time.Second, 60 * time.Second},
		},
		{
			name:         "challenge then server error",
			policy:       policy,
			classes:      []ErrorClass{ChallengeFailure, ServerError, ClassNone},
			wantAttempts: 3,
			wantClass:    ClassNone,
			wantWaits:    []time.Duration{10 * time.Second, 10 * time.Second},
		},
		{
			name:          "single attempt never waits",
			policy:        Policy{MaxAttempts: 1, BackoffFactor: 2, InitialDelay: 5 * time.Second},
			classes:       []ErrorClass{ServerError},
			wantAttempts:  1,
			wantClass:     ServerError,
			wantErr:       true,
			wantExhausted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timer := &fakeTimer{}
			op, calls := scripted(tt.classes...)

			var notified []time.Duration
			res := Do(context.Background(), tt.policy, op,
				WithTimer(timer),
				WithNotify(func(attempt int, class ErrorClass, err error, delay time.Duration) {
					notified = append(notified, delay)
				}),
			)

			assert.Equal(t, tt.wantAttempts, res.Attempts)
			assert.Equal(t, tt.wantAttempts, *calls)
			assert.Equal(t, tt.wantClass, res.Class)
			assert.Equal(t, tt.wantExhausted, res.Exhausted)
			assert.False(t, res.Interrupted)
			assert.Equal(t, tt.wantWaits, timer.waits)
			assert.Equal(t, tt.wantWaits, notified)
			if tt.wantErr {
				require.Error(t, res.Err)
			} else {
				require.NoError(t, res.Err)
			}
		})
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op, calls := scripted(NetworkError, NetworkError)
	res := Do(ctx, DefaultPolicy(), op, WithTimer(&fakeTimer{}))

	require.Error(t, res.Err)
	assert.True(t, res.Interrupted)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 1, *calls)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

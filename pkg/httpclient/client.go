package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

const (
	// HTTPクライアント関連の定数
	DefaultHTTPTimeout = 30 * time.Second
	MaxBodySize        = int64(10 * 1024 * 1024) // 10MB: レスポンスボディの最大読み込みサイズ

	// エラーメッセージに含めるボディの最大長
	maxErrorBodyLength = 1024
)

// ErrBodyTooLarge はレスポンスボディが最大サイズを超えたことを示します。
var ErrBodyTooLarge = errors.New("レスポンスボディが最大サイズを超えました")

// StatusError は2xx以外のステータスコードを受信したことを示すエラーです。
// レスポンスは受信できているため、ネットワークエラーとは区別されます。
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) > 0 {
		body := strings.TrimSpace(string(e.Body))
		if len(body) > maxErrorBodyLength {
			body = body[:maxErrorBodyLength] + "..."
		}
		return fmt.Sprintf("HTTPステータスエラー: ステータスコード %d, ボディ: %s", e.StatusCode, body)
	}
	return fmt.Sprintf("HTTPステータスエラー: ステータスコード %d, ボディなし", e.StatusCode)
}

// ChallengeError はアンチボット保護 (Cloudflare チャレンジ、CAPTCHA など) によってブロックされたことを示します。
type ChallengeError struct {
	StatusCode int
	Kind       string // "cloudflare", "recaptcha" など
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("アンチボットチャレンジを検出しました (種別: %s, ステータスコード %d)", e.Kind, e.StatusCode)
}

// IsStatusError は与えられたエラーがステータスエラーであるかを判断し、そのステータスコードを返します。
func IsStatusError(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

// Request は1回のGETリクエストの内容です。
type Request struct {
	URL     string
	Header  http.Header
	Timeout time.Duration // 0 の場合はクライアントのタイムアウトを使用
}

// Response は2xxで受信したレスポンスです。
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client は1回ごとのHTTP GETを実行します。リトライは行いません (呼び出し側の責務)。
// 接続の再利用とクッキーはクライアントが保持し、呼び出し間で共有されます。
type Client struct {
	rc          *resty.Client
	timeout     time.Duration
	transport   http.RoundTripper
	bypass      bool
	maxBodySize int64
}

// Option はClientの設定を行うための関数型です。
type Option func(*Client)

// WithTransport は下位の http.RoundTripper を差し替えます。
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithCloudflareBypass は Cloudflare 回避用のトランスポートラッパーを有効/無効にします。デフォルトは有効です。
func WithCloudflareBypass(enabled bool) Option {
	return func(c *Client) {
		c.bypass = enabled
	}
}

// WithMaxBodySize はレスポンスボディの最大読み込みサイズを設定します。
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// New は、新しいClientを生成します。
func New(timeout time.Duration, options ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		timeout:     timeout,
		bypass:      true,
		maxBodySize: MaxBodySize,
	}
	for _, opt := range options {
		opt(c)
	}

	rc := resty.New()
	rc.SetTimeout(timeout)
	rc.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	// cookiejar.New は Options の有無にかかわらずエラーを返さない
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	rc.SetCookieJar(jar)

	if c.transport != nil {
		rc.SetTransport(c.transport)
	}
	if c.bypass {
		rc.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(rc.GetClient().Transport)
	}

	c.rc = rc
	return c
}

// Timeout はクライアントのデフォルトのタイムアウトを返します。
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get は1回のHTTP GETリクエストを実行します。
// 戻り値のエラーは次のいずれかです:
//   - *ChallengeError: アンチボット保護によるブロック
//   - *StatusError: 2xx以外のレスポンスを受信
//   - それ以外: レスポンスを受信できなかった (接続/タイムアウトなど)
func (c *Client) Get(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	r := c.rc.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	for key, values := range req.Header {
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}

	resp, err := r.Get(req.URL)
	if err != nil {
		closeRawBody(resp)
		return nil, fmt.Errorf("HTTPリクエストに失敗しました (ネットワーク/接続エラー): %w", err)
	}
	defer closeRawBody(resp)

	body, err := readLimited(resp.RawBody(), c.maxBodySize)
	if err != nil {
		return nil, err
	}

	out := &Response{
		URL:        req.URL,
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       body,
	}

	if kind := DetectChallenge(out.StatusCode, out.Header, out.Body); kind != "" {
		return nil, &ChallengeError{StatusCode: out.StatusCode, Kind: kind}
	}
	if out.StatusCode < 200 || out.StatusCode > 299 {
		return nil, &StatusError{StatusCode: out.StatusCode, Body: body}
	}
	return out, nil
}

// readLimited は最大サイズに制限してボディを読み込みます。
func readLimited(body io.Reader, limit int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%dバイト)", ErrBodyTooLarge, limit)
	}
	return data, nil
}

func closeRawBody(resp *resty.Response) {
	if resp == nil || resp.RawResponse == nil {
		return
	}
	if body := resp.RawBody(); body != nil {
		_ = body.Close()
	}
}

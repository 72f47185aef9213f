package retry

import "net/http"

// ErrorClass は、失敗した1回の試行を分類した結果です。リトライするかどうかはこの分類だけで決まります。
type ErrorClass int

const (
	// ClassNone は失敗していない (2xx) ことを示します。
	ClassNone ErrorClass = iota
	RateLimited
	NotFound
	Unauthorized
	ServerError
	ChallengeFailure
	NetworkError
	OtherHTTPError
)

var classNames = map[ErrorClass]string{
	ClassNone:        "none",
	RateLimited:      "rate_limited",
	NotFound:         "not_found",
	Unauthorized:     "unauthorized",
	ServerError:      "server_error",
	ChallengeFailure: "challenge_failure",
	NetworkError:     "network_error",
	OtherHTTPError:   "other_http_error",
}

func (c ErrorClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// Retryable は、この分類の失敗がバックオフ後に再試行されるかどうかを返します。
// 一時的な失敗 (レート制限、5xx、ネットワーク、チャレンジ) のみが対象です。
func (c ErrorClass) Retryable() bool {
	switch c {
	case RateLimited, ServerError, NetworkError, ChallengeFailure:
		return true
	default:
		return false
	}
}

// retryStatusCodes はリトライ対象のサーバーエラーです。
var retryStatusCodes = map[int]struct{}{
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// ClassifyStatus はHTTPステータスコードを ErrorClass に分類します。2xx は ClassNone です。
// 判定順序に意味があります: 429 と 404 を先に判定し、401以上でもリトライ対象の5xxは ServerError になります。
func ClassifyStatus(status int) ErrorClass {
	if status >= 200 && status <= 299 {
		return ClassNone
	}
	if status == http.StatusTooManyRequests {
		return RateLimited
	}
	if status == http.StatusNotFound {
		return NotFound
	}
	if _, ok := retryStatusCodes[status]; ok {
		return ServerError
	}
	if status >= http.StatusUnauthorized {
		return Unauthorized
	}
	return OtherHTTPError
}

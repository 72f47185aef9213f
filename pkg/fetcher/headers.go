package fetcher

import (
	"math/rand/v2"
	"net/http"
	"time"
)

// DefaultUserAgents は試行ごとにランダムに選択されるブラウザの User-Agent です。
var DefaultUserAgents = []string{
	// Chrome (Windows)
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
	// Chrome (Mac)
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36",
	// Firefox (Windows)
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:115.0) Gecko/20100101 Firefox/115.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:117.0) Gecko/20100101 Firefox/117.0",
	// Firefox (Mac)
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13.3; rv:115.0) Gecko/20100101 Firefox/115.0",
	// Chrome (Android)
	"Mozilla/5.0 (Linux; Android 13; Pixel 6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Mobile Safari/537.36",
	// Safari (iPhone)
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.4 Mobile/15E148 Safari/604.1",
}

// DefaultAcceptLanguage はデフォルトの Accept-Language です。
const DefaultAcceptLanguage = "en-US,en;q=0.9,vi;q=0.8"

// HeaderProfile は試行ごとに付与するヘッダーの設定です。
// Accept-Encoding は設定しません (トランスポートによる透過的な展開を維持するため)。
type HeaderProfile struct {
	UserAgents     []string
	AcceptLanguage string

	// 0 以外の場合、試行ごとに [TimeoutMin, TimeoutMax] からリクエストタイムアウトを選択
	TimeoutMin time.Duration
	TimeoutMax time.Duration
}

// DefaultHeaderProfile はデフォルトのヘッダー設定を返します。
func DefaultHeaderProfile() HeaderProfile {
	return HeaderProfile{
		UserAgents:     DefaultUserAgents,
		AcceptLanguage: DefaultAcceptLanguage,
	}
}

// Randomizer は User-Agent とタイムアウトの選択に使う乱数源です。
type Randomizer interface {
	IntN(n int) int
	Int64N(n int64) int64
}

// globalRand は math/rand/v2 のトップレベル関数を Randomizer として使います。
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// header は1回の試行のヘッダーを生成します。Target に設定済みのヘッダーが優先されます。
func (p HeaderProfile) header(t Target, r Randomizer) http.Header {
	h := t.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if h.Get("User-Agent") == "" && len(p.UserAgents) > 0 {
		h.Set("User-Agent", p.UserAgents[r.IntN(len(p.UserAgents))])
	}
	if h.Get("Accept-Language") == "" && p.AcceptLanguage != "" {
		h.Set("Accept-Language", p.AcceptLanguage)
	}
	if h.Get("Referer") == "" {
		if ref := origin(t.URL); ref != "" {
			h.Set("Referer", ref)
		}
	}
	return h
}

// timeout は1回の試行のリクエストタイムアウトを返します。範囲が未設定の場合は 0 です。
func (p HeaderProfile) timeout(r Randomizer) time.Duration {
	if p.TimeoutMin <= 0 || p.TimeoutMax < p.TimeoutMin {
		return 0
	}
	if p.TimeoutMax == p.TimeoutMin {
		return p.TimeoutMin
	}
	return p.TimeoutMin + time.Duration(r.Int64N(int64(p.TimeoutMax-p.TimeoutMin)))
}

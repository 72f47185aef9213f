package httpclient

import (
	"net/http"
	"strings"
)

// challengeMarkers は、ブロックページに含まれる既知のマーカーです。順番に評価されます。
var challengeMarkers = []struct {
	kind    string
	markers []string
}{
	{"cloudflare", []string{"<title>just a moment", "<title>attention required", "cf-challenge", "cf_chl_opt"}},
	{"cloudflare-turnstile", []string{"challenges.cloudflare.com/turnstile", "cf-turnstile"}},
	{"hcaptcha", []string{"hcaptcha.com", "h-captcha"}},
	{"recaptcha", []string{"google.com/recaptcha", "g-recaptcha"}},
	{"anti-bot", []string{"<title>access denied", "<title>bot detection", "robot or human"}},
}

// DetectChallenge はレスポンスがアンチボットのチャレンジページかどうかを判定し、その種別を返します。
// チャレンジでない場合は空文字列を返します。
// 本文のマーカーはブロック時のステータス (403/503) の場合にのみ評価します。
// 通常のページにも reCAPTCHA などが埋め込まれていることがあるためです。
func DetectChallenge(status int, header http.Header, body []byte) string {
	if strings.EqualFold(header.Get("cf-mitigated"), "challenge") {
		return "cloudflare"
	}
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return ""
	}

	html := strings.ToLower(string(body))
	for _, c := range challengeMarkers {
		for _, m := range c.markers {
			if strings.Contains(html, m) {
				return c.kind
			}
		}
	}
	return ""
}

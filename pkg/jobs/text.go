package jobs

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"
	"golang.org/x/net/html"
)

// textOf は最初に一致した要素のテキストを正規化して返します。
func textOf(doc *goquery.Document, selector string) string {
	return textUtils.NormalizeText(doc.Find(selector).First().Text())
}

// strippedStrings は子孫のテキストノードを個別にトリムし、空白1つで結合します。
func strippedStrings(s *goquery.Selection) string {
	var parts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// textAfterHeading は指定した見出し (h3) の後に最初に現れる div のテキストを返します。
func textAfterHeading(doc *goquery.Document, heading string) string {
	var (
		found bool
		out   string
	)
	// Find はドキュメント順に要素を返す
	doc.Find("h3, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !found {
			found = s.Is("h3") && textUtils.NormalizeText(s.Text()) == heading
			return true
		}
		if s.Is("div") {
			out = strippedStrings(s)
			return false
		}
		return true
	})
	return out
}

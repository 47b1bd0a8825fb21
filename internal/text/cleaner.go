package text

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Flatten reduces raw HTML to flat readable text: script, style and noscript
// subtrees are dropped (comments never surface as text), remaining markup is
// stripped, and whitespace is collapsed. Pure: same markup in, same text out.
func Flatten(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return Collapse(doc.Text())
}

// Collapse squeezes whitespace runs into single spaces and trims the ends.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package fetch

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sitedex/internal/text"
	"sitedex/internal/urlx"
)

var skipSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Scope restricts link discovery to the seed's origin and an optional path
// prefix.
type Scope struct {
	seed       *url.URL
	pathPrefix string
}

func NewScope(seedAddress, pathPrefix string) (Scope, error) {
	canonical, err := urlx.Canonicalize(seedAddress)
	if err != nil {
		return Scope{}, err
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return Scope{}, err
	}
	return Scope{seed: u, pathPrefix: urlx.NormalizePathPrefix(pathPrefix)}, nil
}

// Allows reports whether an address shares the seed's origin and falls under
// the path prefix, when one is set.
func (s Scope) Allows(address string) bool {
	u, err := url.Parse(address)
	if err != nil {
		return false
	}
	if !urlx.SameOrigin(s.seed, u) {
		return false
	}
	if s.pathPrefix == "" {
		return true
	}
	return strings.HasPrefix(u.Path, s.pathPrefix)
}

// ExtractLinks returns the canonical in-scope addresses linked from html,
// resolved against baseAddress, deduplicated in document order.
func ExtractLinks(html, baseAddress string, scope Scope) []string {
	base, err := url.Parse(baseAddress)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		for _, scheme := range skipSchemes {
			if strings.HasPrefix(lower, scheme) {
				return
			}
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		canonical, err := urlx.Canonicalize(base.ResolveReference(ref).String())
		if err != nil {
			return
		}
		if !scope.Allows(canonical) || seen[canonical] {
			return
		}
		seen[canonical] = true
		links = append(links, canonical)
	})
	return links
}

// ExtractTitle returns the document title with whitespace collapsed, or ""
// when the page has none.
func ExtractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return text.Collapse(doc.Find("title").First().Text())
}

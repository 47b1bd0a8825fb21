// Package urlx canonicalizes web addresses for dedup, scoping, and storage.
package urlx

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidAddress = errors.New("not an absolute http(s) address")

// DefaultTrackingParams are the campaign and click-id query parameters
// stripped during canonicalization. "ref" is deliberately absent: it carries
// meaning on enough sites (e.g. git hosts) that stripping it changes the page.
var DefaultTrackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id",
	"gclid", "fbclid", "msclkid", "mc_cid", "mc_eid", "igshid",
}

// Canonicalize reduces raw to its canonical form: lowercase scheme and host,
// default port dropped, fragment removed, default tracking parameters
// stripped (remaining parameters keep their order), empty path replaced by
// "/", and runs of trailing slashes collapsed to one. It is idempotent.
func Canonicalize(raw string) (string, error) {
	return CanonicalizeStrip(raw, DefaultTrackingParams)
}

// CanonicalizeStrip is Canonicalize with a caller-supplied tracking
// parameter set.
func CanonicalizeStrip(raw string, tracking []string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}

	u.Host = strings.ToLower(u.Host)
	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""

	if u.Path == "" {
		u.Path = "/"
	}
	for strings.HasSuffix(u.Path, "//") {
		u.Path = u.Path[:len(u.Path)-1]
	}
	// Force canonical re-escaping of the (possibly rewritten) path.
	u.RawPath = ""

	if u.RawQuery != "" {
		u.RawQuery = stripParams(u.RawQuery, tracking)
	}
	if u.RawQuery == "" {
		u.ForceQuery = false
	}

	return u.String(), nil
}

// stripParams removes pairs whose key is in tracking, preserving the order
// of everything else. Key comparison is exact, matching URLSearchParams
// semantics.
func stripParams(rawQuery string, tracking []string) string {
	strip := make(map[string]bool, len(tracking))
	for _, k := range tracking {
		strip[k] = true
	}

	parts := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		key := p
		if i := strings.IndexByte(p, '='); i >= 0 {
			key = p[:i]
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if !strip[key] {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "&")
}

// Namespace derives a vector-store partition name from the address hostname:
// lowercased, with every character outside [a-z0-9_-] mapped to '-', capped
// at 64 chars. Deterministic for a given seed.
func Namespace(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}

	host := strings.ToLower(u.Hostname())
	var b strings.Builder
	b.Grow(len(host))
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	ns := b.String()
	if len(ns) > 64 {
		ns = ns[:64]
	}
	return ns, nil
}

// SameOrigin reports whether a and b share scheme, hostname, and effective
// port (default ports count as equal to an absent port).
func SameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch u.Scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

// NormalizePathPrefix ensures a non-empty prefix starts with "/". Empty
// stays empty (no prefix scoping).
func NormalizePathPrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

package urlx

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips fragment",
			in:   "https://example.com/docs#section-2",
			want: "https://example.com/docs",
		},
		{
			name: "strips tracking params keeps others in order",
			in:   "https://example.com/p?utm_source=x&keep=1&utm_campaign=y&z=2",
			want: "https://example.com/p?keep=1&z=2",
		},
		{
			name: "strips click ids",
			in:   "https://example.com/p?gclid=abc&fbclid=def",
			want: "https://example.com/p",
		},
		{
			name: "keeps ref",
			in:   "https://example.com/repo?ref=main",
			want: "https://example.com/repo?ref=main",
		},
		{
			name: "lowercases scheme and host only",
			in:   "HTTPS://Docs.Example.COM/API/Reference",
			want: "https://docs.example.com/API/Reference",
		},
		{
			name: "drops default https port",
			in:   "https://example.com:443/a",
			want: "https://example.com/a",
		},
		{
			name: "drops default http port",
			in:   "http://example.com:80/a",
			want: "http://example.com/a",
		},
		{
			name: "keeps explicit port",
			in:   "http://example.com:8080/a",
			want: "http://example.com:8080/a",
		},
		{
			name: "empty path becomes slash",
			in:   "https://example.com",
			want: "https://example.com/",
		},
		{
			name: "preserves directory trailing slash",
			in:   "https://example.com/docs/",
			want: "https://example.com/docs/",
		},
		{
			name: "collapses duplicated trailing slashes",
			in:   "https://example.com/docs///",
			want: "https://example.com/docs/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.in)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://example.com",
		"https://example.com/docs/?utm_source=news&page=2#top",
		"HTTP://EXAMPLE.COM:80//weird//path//",
		"https://example.com/a%20b?q=x%26y",
		"https://example.com/p?fbclid=1&a=1&b=2",
	}

	for _, in := range inputs {
		once, err := Canonicalize(in)
		assert.NoError(t, err, in)
		twice, err := Canonicalize(once)
		assert.NoError(t, err, once)
		assert.Equal(t, once, twice, "canonicalize must be idempotent for %q", in)
	}
}

func TestCanonicalize_InvalidAddress(t *testing.T) {
	inputs := []string{
		"",
		"notaurl",
		"/relative/path",
		"//host-relative",
		"ftp://example.com/file",
		"mailto:someone@example.com",
		"http://",
	}

	for _, in := range inputs {
		_, err := Canonicalize(in)
		assert.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrInvalidAddress), "expected ErrInvalidAddress for %q, got %v", in, err)
	}
}

func TestCanonicalizeStrip_CustomSet(t *testing.T) {
	got, err := CanonicalizeStrip("https://example.com/p?session=1&q=2", []string{"session"})
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/p?q=2", got)

	// Default set untouched when a custom set is supplied.
	got, err = CanonicalizeStrip("https://example.com/p?utm_source=x", []string{"session"})
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/p?utm_source=x", got)
}

func TestNamespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://docs.example.com/guides", "docs-example-com"},
		{"https://Example.COM", "example-com"},
		{"http://localhost:8080/x", "localhost"},
		{"https://my_site.example.io:8443", "my_site-example-io"},
	}

	for _, tt := range tests {
		got, err := Namespace(tt.in)
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := Namespace("not a url")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestSameOrigin(t *testing.T) {
	parse := func(s string) *url.URL {
		u, err := url.Parse(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		return u
	}

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"same host and scheme", "https://example.com/a", "https://example.com/b", true},
		{"explicit default port matches absent", "https://example.com:443/a", "https://example.com/b", true},
		{"scheme mismatch", "http://example.com/a", "https://example.com/a", false},
		{"host mismatch", "https://example.com/a", "https://other.com/a", false},
		{"subdomain mismatch", "https://example.com/a", "https://www.example.com/a", false},
		{"port mismatch", "https://example.com:8443/a", "https://example.com/a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameOrigin(parse(tt.a), parse(tt.b)))
		})
	}
}

func TestNormalizePathPrefix(t *testing.T) {
	assert.Equal(t, "", NormalizePathPrefix(""))
	assert.Equal(t, "", NormalizePathPrefix("  "))
	assert.Equal(t, "/docs", NormalizePathPrefix("docs"))
	assert.Equal(t, "/docs", NormalizePathPrefix("/docs"))
	assert.Equal(t, "/docs/", NormalizePathPrefix("docs/"))
}

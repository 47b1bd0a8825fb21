package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"sitedex/internal/metrics"
	"sitedex/internal/text"
)

const (
	// DefaultTimeout bounds one raw HTTP fetch.
	DefaultTimeout = 25 * time.Second

	// DefaultMinContent is the threshold below which fast-path text is
	// considered too thin and the rendering fallback kicks in.
	DefaultMinContent = 200

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 10 << 20
)

// ErrNoContent means no strategy produced non-empty text for an address.
var ErrNoContent = errors.New("no content extracted")

// FetchError means an address was unreachable or unreadable over plain HTTP.
type FetchError struct {
	Address    string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Address, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Address, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Renderer loads a page in a headless browser and returns its visible text
// along with the rendered markup for when text extraction comes up short.
type Renderer interface {
	Render(ctx context.Context, address string) (RenderedPage, error)
}

// RenderedPage is the raw material a Renderer hands back; the Fetcher
// decides which part to use.
type RenderedPage struct {
	Text string
	HTML string
}

type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MinContent int
	Renderer   Renderer
}

// Fetcher retrieves page content two ways: a raw HTML fetch used for link
// discovery and titles, and a text scrape that prefers the fast path and
// falls back to the Renderer when the result is too thin. A nil Renderer
// disables the fallback.
type Fetcher struct {
	client     *http.Client
	renderer   Renderer
	userAgent  string
	timeout    time.Duration
	minContent int
}

func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinContent <= 0 {
		opts.MinContent = DefaultMinContent
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sitedex/1.0"
	}
	return &Fetcher{
		client:     &http.Client{},
		renderer:   opts.Renderer,
		userAgent:  opts.UserAgent,
		timeout:    opts.Timeout,
		minContent: opts.MinContent,
	}
}

// FetchHTML performs a time-bounded GET and returns the raw markup. Non-2xx
// responses and non-HTML content types fail with a FetchError.
func (f *Fetcher) FetchHTML(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return "", &FetchError{Address: address, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{Address: address, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{Address: address, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if !htmlContentType(resp.Header.Get("Content-Type")) {
		return "", &FetchError{Address: address, StatusCode: resp.StatusCode, Err: fmt.Errorf("content type %q is not HTML", resp.Header.Get("Content-Type"))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &FetchError{Address: address, Err: err}
	}
	return string(body), nil
}

// ScrapeText produces the text to embed for one address. The fast path
// fetches and flattens the raw markup; when that fails or is shorter than
// the minimum-content threshold, the Renderer takes over. A deliberately
// short page and a failed extraction both trigger the fallback.
func (f *Fetcher) ScrapeText(ctx context.Context, address string) (string, error) {
	fastText, fastErr := f.fastText(ctx, address)
	if fastErr == nil && !f.contentTooShort(fastText) {
		return fastText, nil
	}

	if f.renderer == nil {
		if fastErr != nil {
			return "", fastErr
		}
		if fastText == "" {
			return "", fmt.Errorf("%s: %w", address, ErrNoContent)
		}
		return fastText, nil
	}

	metrics.RenderFallbacks.Inc()
	if fastErr != nil {
		slog.DebugContext(ctx, "fast fetch failed, rendering", "address", address, "error", fastErr)
	} else {
		slog.DebugContext(ctx, "fast fetch too thin, rendering", "address", address, "chars", utf8.RuneCountInString(fastText))
	}

	page, renderErr := f.renderer.Render(ctx, address)
	if renderErr != nil {
		slog.WarnContext(ctx, "render failed", "address", address, "error", renderErr)
		if fastText != "" {
			return fastText, nil
		}
		if fastErr != nil {
			return "", fastErr
		}
		return "", fmt.Errorf("%s: %w", address, ErrNoContent)
	}

	visible := strings.TrimSpace(page.Text)
	if !f.contentTooShort(visible) {
		return visible, nil
	}
	if flattened := text.Flatten(page.HTML); flattened != "" {
		return flattened, nil
	}
	if visible != "" {
		return visible, nil
	}
	if fastText != "" {
		return fastText, nil
	}
	return "", fmt.Errorf("%s: %w", address, ErrNoContent)
}

func (f *Fetcher) fastText(ctx context.Context, address string) (string, error) {
	html, err := f.FetchHTML(ctx, address)
	if err != nil {
		return "", err
	}
	return text.Flatten(html), nil
}

func (f *Fetcher) contentTooShort(s string) bool {
	return utf8.RuneCountInString(s) < f.minContent
}

func htmlContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpfetch "github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	// DefaultRenderTimeout bounds one full headless render, browser
	// startup included.
	DefaultRenderTimeout = 40 * time.Second

	// containerProbeTimeout is how long the render waits for a content
	// container before settling for the document body.
	containerProbeTimeout = 2 * time.Second

	contentSelectors = "main, article, [role='main'], #content, .content"
)

// analyticsDomains are third-party hosts whose requests are failed during a
// render. They never contribute page text and routinely stall page load.
var analyticsDomains = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"facebook.net",
	"hotjar.com",
	"mixpanel.com",
	"segment.com",
	"clarity.ms",
}

// visibleTextJS extracts the text a reader would see, preferring a content
// container over the whole body so navigation chrome stays out.
const visibleTextJS = `(() => {
	const selectors = ['main', 'article', "[role='main']", '#content', '.content'];
	for (const sel of selectors) {
		const el = document.querySelector(sel);
		if (el && el.innerText && el.innerText.trim().length > 0) {
			return el.innerText;
		}
	}
	return document.body ? document.body.innerText : '';
})()`

// ChromeRenderer renders pages in headless Chrome. Each Render call spins up
// its own browser context and tears it down on every exit path, so a crashed
// or hung page never leaks into the next one.
type ChromeRenderer struct {
	userAgent string
	timeout   time.Duration
}

func NewChromeRenderer(userAgent string, timeout time.Duration) *ChromeRenderer {
	if userAgent == "" {
		userAgent = "sitedex/1.0"
	}
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	return &ChromeRenderer{userAgent: userAgent, timeout: timeout}
}

func (r *ChromeRenderer) Render(ctx context.Context, address string) (RenderedPage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(r.userAgent)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if pause, ok := ev.(*cdpfetch.EventRequestPaused); ok {
			go resolveRequest(browserCtx, pause)
		}
	})

	var page RenderedPage
	err := chromedp.Run(browserCtx,
		cdpfetch.Enable(),
		chromedp.Navigate(address),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitForContainer(contentSelectors, containerProbeTimeout),
		chromedp.Evaluate(visibleTextJS, &page.Text),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return RenderedPage{}, fmt.Errorf("render %s: %w", address, err)
	}
	page.Text = strings.TrimSpace(page.Text)
	return page, nil
}

func allocatorOptions(userAgent string) []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.NoSandbox,
		chromedp.Flag("disable-gpu", true),
	)
}

// waitForContainer gives client-side rendering a short window to fill a
// content container. Missing container is fine; extraction just proceeds
// with the body.
func waitForContainer(selector string, timeout time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_ = chromedp.WaitVisible(selector, chromedp.ByQuery).Do(probeCtx)
		return nil
	})
}

// resolveRequest answers one paused network request, failing it when it is
// a blocked resource type or analytics host and letting it through
// otherwise. Runs on its own goroutine because the CDP event handler must
// not block.
func resolveRequest(ctx context.Context, ev *cdpfetch.EventRequestPaused) {
	c := chromedp.FromContext(ctx)
	ctx = cdp.WithExecutor(ctx, c.Target)
	if blockedRequest(ev) {
		_ = cdpfetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(ctx)
		return
	}
	_ = cdpfetch.ContinueRequest(ev.RequestID).Do(ctx)
}

func blockedRequest(ev *cdpfetch.EventRequestPaused) bool {
	switch ev.ResourceType {
	case network.ResourceTypeImage, network.ResourceTypeMedia, network.ResourceTypeFont:
		return true
	}
	u, err := url.Parse(ev.Request.URL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range analyticsDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

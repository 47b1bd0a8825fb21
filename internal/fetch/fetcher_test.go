package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitedex/internal/fetch"
)

type stubRenderer struct {
	page        fetch.RenderedPage
	err         error
	calls       int
	lastAddress string
}

func (r *stubRenderer) Render(_ context.Context, address string) (fetch.RenderedPage, error) {
	r.calls++
	r.lastAddress = address
	return r.page, r.err
}

func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func serveStatus(t *testing.T, status int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestFetcher_FetchHTML(t *testing.T) {
	t.Run("Returns Body", func(t *testing.T) {
		ts := serveHTML(t, "<html><body>hi</body></html>")
		f := fetch.NewFetcher(fetch.Options{})

		got, err := f.FetchHTML(context.Background(), ts.URL)

		require.NoError(t, err)
		assert.Equal(t, "<html><body>hi</body></html>", got)
	})

	t.Run("Sends User Agent", func(t *testing.T) {
		var gotUA string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html")
		}))
		t.Cleanup(ts.Close)
		f := fetch.NewFetcher(fetch.Options{UserAgent: "sitedex-test/1.0"})

		_, err := f.FetchHTML(context.Background(), ts.URL)

		require.NoError(t, err)
		assert.Equal(t, "sitedex-test/1.0", gotUA)
	})

	t.Run("Rejects Error Status", func(t *testing.T) {
		ts := serveStatus(t, http.StatusNotFound)
		f := fetch.NewFetcher(fetch.Options{})

		_, err := f.FetchHTML(context.Background(), ts.URL)

		var fe *fetch.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, http.StatusNotFound, fe.StatusCode)
		assert.Equal(t, ts.URL, fe.Address)
	})

	t.Run("Rejects Non HTML Content Type", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"not":"html"}`))
		}))
		t.Cleanup(ts.Close)
		f := fetch.NewFetcher(fetch.Options{})

		_, err := f.FetchHTML(context.Background(), ts.URL)

		var fe *fetch.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, fe.Error(), "not HTML")
	})

	t.Run("Accepts XHTML", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/xhtml+xml")
			_, _ = w.Write([]byte("<html><body>x</body></html>"))
		}))
		t.Cleanup(ts.Close)
		f := fetch.NewFetcher(fetch.Options{})

		_, err := f.FetchHTML(context.Background(), ts.URL)

		assert.NoError(t, err)
	})
}

func TestFetcher_ScrapeText(t *testing.T) {
	t.Run("Fast Path Wins When Long Enough", func(t *testing.T) {
		ts := serveHTML(t, "<html><body>"+strings.Repeat("lorem ipsum ", 30)+"</body></html>")
		renderer := &stubRenderer{}
		f := fetch.NewFetcher(fetch.Options{Renderer: renderer})

		got, err := f.ScrapeText(context.Background(), ts.URL)

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, "lorem ipsum"))
		assert.Equal(t, 0, renderer.calls, "fast path should not render")
	})

	t.Run("Thin Page Falls Back To Renderer Text", func(t *testing.T) {
		ts := serveHTML(t, "<html><body>tiny</body></html>")
		renderer := &stubRenderer{page: fetch.RenderedPage{Text: "  This rendered text is plainly long enough.  "}}
		f := fetch.NewFetcher(fetch.Options{MinContent: 20, Renderer: renderer})

		got, err := f.ScrapeText(context.Background(), ts.URL)

		require.NoError(t, err)
		assert.Equal(t, "This rendered text is plainly long enough.", got)
		assert.Equal(t, 1, renderer.calls)
		assert.Equal(t, ts.URL, renderer.lastAddress)
	})

	t.Run("Fetch Error Falls Back To Renderer", func(t *testing.T) {
		ts := serveStatus(t, http.StatusInternalServerError)
		renderer := &stubRenderer{page: fetch.RenderedPage{Text: "Rendered text long enough to pass."}}
		f := fetch.NewFetcher(fetch.Options{MinContent: 20, Renderer: renderer})

		got, err := f.ScrapeText(context.Background(), ts.URL)

		require.NoError(t, err)
		assert.Equal(t, "Rendered text long enough to pass.", got)
	})

	t.Run("Thin Renderer Text Uses Flattened Markup", func(t *testing.T) {
		ts := serveHTML(t, "<html><body>tiny</body></html>")
		renderer := &stubRenderer{page: fetch.RenderedPage{
			Text: "x",
			HTML: "<html><body><p>Flattened   markup text</p><script>boot()</script></body></html>",
		}}
		f := fetch.NewFetcher(fetch.Options{MinContent: 20, Renderer: renderer})

		got, err := f.ScrapeText(context.Background(), ts.URL)

		require.NoError(t, err)
		assert.Equal(t, "Flattened markup text", got)
	})

	t.Run("Thin Everywhere Prefers Visible Text", func(t *testing.T) {
		ts := serveHTML(t, "<html><body>tiny</body></html>")
		renderer := &stubRenderer{page: fetch.RenderedPage{Text: "tiny render", HTML: "<script>x</script>"}}
		f := fetch.NewFetcher(fetch.Options{MinContent: 100, Renderer: renderer})

		got, err := f.ScrapeText(context.Background(), ts.URL)

		require.NoError(t, err)
		assert.Equal(t, "tiny render", got)
	})

	t.Run("Empty Render Falls Back To Fast Text", func(t *testing.T) {
		ts := serveHTML(t, "<html><body>brief</body></html>")
		renderer := &stubRenderer{}
		f := fetch.NewFetcher(fetch.Options{MinContent: 20, Renderer: renderer})

		got, err := f.ScrapeText(context.Background(), ts.URL)

		require.NoError(t, err)
		assert.Equal(t, "brief", got)
	})

	t.Run("No Content Anywhere", func(t *testing.T) {
		ts := serveHTML(t, "<html><body><script>boot()</script></body></html>")
		renderer := &stubRenderer{}
		f := fetch.NewFetcher(fetch.Options{MinContent: 20, Renderer: renderer})

		_, err := f.ScrapeText(context.Background(), ts.URL)

		assert.ErrorIs(t, err, fetch.ErrNoContent)
	})

	t.Run("Renderer Failure Falls Back To Short Fast Text", func(t *testing.T) {
		ts := serveHTML(t, "<html><body>brief</body></html>")
		renderer := &stubRenderer{err: errors.New("chrome crashed")}
		f := fetch.NewFetcher(fetch.Options{MinContent: 20, Renderer: renderer})

		got, err := f.ScrapeText(context.Background(), ts.URL)

		require.NoError(t, err)
		assert.Equal(t, "brief", got)
	})

	t.Run("Renderer Failure With Failed Fetch Reports Fetch Error", func(t *testing.T) {
		ts := serveStatus(t, http.StatusBadGateway)
		renderer := &stubRenderer{err: errors.New("chrome crashed")}
		f := fetch.NewFetcher(fetch.Options{MinContent: 20, Renderer: renderer})

		_, err := f.ScrapeText(context.Background(), ts.URL)

		var fe *fetch.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	})

	t.Run("Nil Renderer Keeps Short Text", func(t *testing.T) {
		ts := serveHTML(t, "<html><body>brief</body></html>")
		f := fetch.NewFetcher(fetch.Options{MinContent: 20})

		got, err := f.ScrapeText(context.Background(), ts.URL)

		require.NoError(t, err)
		assert.Equal(t, "brief", got)
	})

	t.Run("Nil Renderer Propagates Fetch Error", func(t *testing.T) {
		ts := serveStatus(t, http.StatusNotFound)
		f := fetch.NewFetcher(fetch.Options{})

		_, err := f.ScrapeText(context.Background(), ts.URL)

		var fe *fetch.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	})

	t.Run("Nil Renderer Empty Page", func(t *testing.T) {
		ts := serveHTML(t, "<html><body><script>boot()</script></body></html>")
		f := fetch.NewFetcher(fetch.Options{MinContent: 20})

		_, err := f.ScrapeText(context.Background(), ts.URL)

		assert.ErrorIs(t, err, fetch.ErrNoContent)
	})
}

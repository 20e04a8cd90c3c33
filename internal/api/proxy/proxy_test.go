package proxy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/resilience"
)

const page = `<!DOCTYPE html><html><head><title>Example Domain</title></head><body><h1>Example</h1></body></html>`

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func origin(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Content-Security-Policy", "script-src 'self'")
			_, _ = io.WriteString(w, page)
		case "/gzip":
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gzipped(t, page))
		case "/data":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"ok":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func client(t *testing.T, p *Proxy) *http.Client {
	t.Helper()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	proxyURL, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &http.Client{Transport: &http.Transport{
		Proxy:              http.ProxyURL(proxyURL),
		DisableCompression: true,
	}}
}

func get(t *testing.T, c *http.Client, u string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestProxyInjectsRuntime(t *testing.T) {
	o := origin(t)
	metrics := monitoring.NewMetrics()
	p := New(Config{ScriptURL: "http://wd.test/web-driverify/assets/wd.js", Inject: true, Metrics: metrics})
	c := client(t, p)

	resp, body := get(t, c, o.URL+"/page")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<script src="http://wd.test/web-driverify/assets/wd.js" data-web-driverify="runtime"></script></head>`)
	assert.Contains(t, body, "<h1>Example</h1>")
	assert.Empty(t, resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, int64(len(body)), resp.ContentLength)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ProxiedRequests.WithLabelValues("ok", "true")))
}

func TestProxyDecodesGzip(t *testing.T) {
	o := origin(t)
	p := New(Config{ScriptURL: "/wd.js", Inject: true})
	c := client(t, p)

	resp, body := get(t, c, o.URL+"/gzip")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
	assert.Contains(t, body, `data-web-driverify="runtime"`)
	assert.Contains(t, body, "Example Domain")
}

func TestProxySkipsOversizedChunkedPage(t *testing.T) {
	big := "<html><head></head><body>" + strings.Repeat("x", 4096) + "</body></html>"
	o := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/gzip" {
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gzipped(t, big))
			return
		}
		// flushing before the end forces a chunked response without a length
		_, _ = io.WriteString(w, big[:100])
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, big[100:])
	}))
	defer o.Close()

	p := New(Config{ScriptURL: "/wd.js", Inject: true})
	p.injector.MaxBody = 1024
	c := client(t, p)

	_, body := get(t, c, o.URL+"/chunked")
	assert.Equal(t, big, body)

	// small on the wire, too large once inflated
	resp, err := c.Get(o.URL + "/gzip")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	inflated, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, big, string(inflated))
}

func TestInjectorRewriteWithinLimit(t *testing.T) {
	inj := NewInjector("/wd.js")
	resp := &http.Response{
		Header:        http.Header{"Content-Type": {"text/html"}},
		Body:          io.NopCloser(strings.NewReader(page)),
		ContentLength: -1,
	}

	injected, err := inj.Rewrite(resp)
	require.NoError(t, err)
	assert.True(t, injected)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(out), inj.Tag())
	assert.Equal(t, int64(len(out)), resp.ContentLength)

	inj.MaxBody = 10
	resp.Body = io.NopCloser(strings.NewReader(page))
	injected, err = inj.Rewrite(resp)
	require.NoError(t, err)
	assert.False(t, injected)
	out, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, page, string(out))
}

func TestProxyPassesThroughNonHTML(t *testing.T) {
	o := origin(t)
	p := New(Config{ScriptURL: "/wd.js", Inject: true})
	c := client(t, p)

	resp, body := get(t, c, o.URL+"/data")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, body)

	plain := client(t, New(Config{ScriptURL: "/wd.js"}))
	_, body = get(t, plain, o.URL+"/page")
	assert.Equal(t, page, body, "injection disabled")
}

func TestProxyOriginDown(t *testing.T) {
	o := httptest.NewServer(http.NotFoundHandler())
	addr := o.URL
	o.Close()

	p := New(Config{
		ScriptURL: "/wd.js",
		Breakers: resilience.NewHosts(resilience.Settings{
			Trip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 2 },
		}),
	})
	c := client(t, p)

	for i := 0; i < 2; i++ {
		resp, _ := get(t, c, addr+"/page")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	}

	resp, body := get(t, c, addr+"/page")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "circuit open")
}

func TestInjectorInject(t *testing.T) {
	inj := NewInjector("/wd.js")

	out, err := inj.Inject([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), inj.Tag()))

	again, err := inj.Inject(out)
	require.NoError(t, err)
	assert.Equal(t, out, again, "a page is injected once")

	fragment, err := inj.Inject([]byte("<p>no head here</p>"))
	require.NoError(t, err)
	assert.Contains(t, string(fragment), "<head>"+inj.Tag()+"</head>")
}

func TestInjectorWants(t *testing.T) {
	inj := NewInjector("/wd.js")
	resp := func(ct, enc string, status int) *http.Response {
		h := http.Header{}
		h.Set("Content-Type", ct)
		if enc != "" {
			h.Set("Content-Encoding", enc)
		}
		return &http.Response{
			StatusCode:    status,
			Header:        h,
			ContentLength: -1,
			Request:       httptest.NewRequest(http.MethodGet, "http://example.com/", nil),
		}
	}

	assert.True(t, inj.Wants(resp("text/html; charset=utf-8", "", 200)))
	assert.True(t, inj.Wants(resp("text/html", "gzip", 200)))
	assert.False(t, inj.Wants(resp("text/html", "br", 200)))
	assert.False(t, inj.Wants(resp("application/json", "", 200)))
	assert.False(t, inj.Wants(resp("text/html", "", http.StatusNotModified)))
	assert.False(t, inj.Wants(resp("", "", 200)))
}

func TestIsProxyRequest(t *testing.T) {
	abs := httptest.NewRequest(http.MethodGet, "http://example.com/page", nil)
	assert.True(t, IsProxyRequest(abs, "localhost:4444"))

	self := httptest.NewRequest(http.MethodGet, "http://localhost:4444/status", nil)
	assert.False(t, IsProxyRequest(self, "localhost:4444"))

	origin := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/status"}}
	assert.False(t, IsProxyRequest(origin))

	connect := &http.Request{Method: http.MethodConnect, URL: &url.URL{Host: "example.com:443"}}
	assert.True(t, IsProxyRequest(connect))
}

func TestSummarize(t *testing.T) {
	short := "http://example.com/"
	assert.Equal(t, short, summarize(short))

	long := "http://example.com/" + strings.Repeat("a", 300)
	s := summarize(long)
	assert.Len(t, s, 120)
	assert.True(t, strings.HasPrefix(s, "http://example.com/"))
	assert.Contains(t, s, "...")
}

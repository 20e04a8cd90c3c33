package proxy

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/klauspost/compress/gzip"
)

// runtimeMarker identifies the injected tag so a page is never injected twice
const runtimeMarker = "data-web-driverify"

// Injector adds the runtime script tag to HTML documents
type Injector struct {
	scriptURL string
	// MaxBody skips injection for larger documents
	MaxBody int64
}

// NewInjector creates an injector loading the runtime from scriptURL
func NewInjector(scriptURL string) *Injector {
	return &Injector{scriptURL: scriptURL, MaxBody: 20 << 20}
}

// Tag returns the script element inserted into pages
func (i *Injector) Tag() string {
	return fmt.Sprintf(`<script src="%s" %s="runtime"></script>`, i.scriptURL, runtimeMarker)
}

// Wants reports whether resp is an HTML document the injector can rewrite
func (i *Injector) Wants(resp *http.Response) bool {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotModified:
		return false
	}
	if resp.ContentLength > i.MaxBody {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/html" {
		return false
	}
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "", "identity", "gzip":
		return true
	}
	return false
}

// Rewrite replaces resp's body with the injected document. The body is
// returned uncompressed with an exact Content-Length. A document exceeding
// MaxBody, compressed or not, is passed through unchanged and reported as
// not injected.
func (i *Injector) Rewrite(resp *http.Response) (bool, error) {
	raw, complete, err := readLimited(resp.Body, i.MaxBody)
	if err != nil {
		resp.Body.Close()
		return false, fmt.Errorf("failed to read body: %w", err)
	}
	if !complete {
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(raw), resp.Body), resp.Body}
		return false, nil
	}
	resp.Body.Close()

	body, complete, err := i.decode(resp.Header, raw)
	if err != nil {
		return false, err
	}
	if !complete {
		resp.Body = io.NopCloser(bytes.NewReader(raw))
		return false, nil
	}

	out, err := i.Inject(body)
	if err != nil {
		return false, err
	}

	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	resp.Header.Del("Content-Encoding")
	// the runtime is loaded from the proxy's origin
	resp.Header.Del("Content-Security-Policy")
	resp.Header.Del("Content-Security-Policy-Report-Only")
	return true, nil
}

// Inject inserts the runtime tag at the end of <head>
func (i *Injector) Inject(html []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if doc.Find("script[" + runtimeMarker + "]").Length() > 0 {
		return html, nil
	}

	// the parser always synthesizes <head>
	doc.Find("head").First().AppendHtml(i.Tag())

	rendered, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}
	return []byte(rendered), nil
}

// readLimited reads at most limit bytes of r; complete is false when r had
// more to give
func readLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data, false, nil
	}
	return data, true, nil
}

func (i *Injector) decode(h http.Header, raw []byte) ([]byte, bool, error) {
	if !strings.EqualFold(h.Get("Content-Encoding"), "gzip") {
		return raw, true, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, false, fmt.Errorf("failed to open gzip body: %w", err)
	}
	defer zr.Close()

	body, complete, err := readLimited(zr, i.MaxBody)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read body: %w", err)
	}
	return body, complete, nil
}

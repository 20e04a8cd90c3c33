package proxy

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/resilience"
)

// Config configures the forward proxy
type Config struct {
	// ScriptURL is where injected pages load the runtime from
	ScriptURL string
	Inject    bool
	// Transport reaches origins; breakers are added on top
	Transport http.RoundTripper
	Breakers  *resilience.Hosts
	Logger    *logging.Logger
	Metrics   *monitoring.Metrics
}

// Proxy forwards requests to their origin
type Proxy struct {
	rp       *httputil.ReverseProxy
	injector *Injector
	inject   bool
	breakers *resilience.Hosts
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	dial     func(network, addr string) (net.Conn, error)
}

// New creates a forward proxy
func New(cfg Config) *Proxy {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Breakers == nil {
		cfg.Breakers = resilience.NewHosts(resilience.DefaultSettings())
	}

	p := &Proxy{
		injector: NewInjector(cfg.ScriptURL),
		inject:   cfg.Inject,
		breakers: cfg.Breakers,
		logger:   cfg.Logger.Named("proxy"),
		metrics:  cfg.Metrics,
		dial: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).Dial,
	}
	p.rp = &httputil.ReverseProxy{
		Director:       p.direct,
		Transport:      cfg.Breakers.Transport(cfg.Transport),
		ModifyResponse: p.modify,
		ErrorHandler:   p.fail,
		FlushInterval:  -1,
	}
	return p
}

// Breakers returns the per-host breaker set
func (p *Proxy) Breakers() *resilience.Hosts {
	return p.breakers
}

// Handler adapts the proxy to gin
func (p *Proxy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p.ServeHTTP(c.Writer, c.Request)
	}
}

// ServeHTTP forwards one request, tunneling CONNECT
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.tunnel(w, r)
		return
	}
	p.rp.ServeHTTP(w, r)
}

// direct rewrites an absolute-URI proxy request into an outbound request.
// Requests without a host in the URI use the Host header.
func (p *Proxy) direct(r *http.Request) {
	if r.URL.Host == "" {
		r.URL.Host = r.Host
	}
	if r.URL.Scheme == "" {
		r.URL.Scheme = "http"
	}
	r.Header.Del("Proxy-Connection")
	r.Header.Del("Proxy-Authorization")
	if p.inject {
		// only encodings the injector can decode
		r.Header.Set("Accept-Encoding", "gzip")
	}
	if _, ok := r.Header["User-Agent"]; !ok {
		r.Header.Set("User-Agent", "")
	}
}

func (p *Proxy) modify(resp *http.Response) error {
	injected := false
	if p.inject && p.injector.Wants(resp) {
		var err error
		if injected, err = p.injector.Rewrite(resp); err != nil {
			return err
		}
	}
	p.record("ok", injected)
	p.logger.Debug("proxied",
		zap.String("method", resp.Request.Method),
		zap.String("url", summarize(resp.Request.URL.String())),
		zap.Int("status", resp.StatusCode),
		zap.Bool("injected", injected),
	)
	return nil
}

func (p *Proxy) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	outcome := "error"
	if errors.Is(err, resilience.ErrOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		status = http.StatusServiceUnavailable
		outcome = "circuit_open"
	}
	p.record(outcome, false)
	p.logger.Warn("proxy request failed",
		zap.String("host", r.URL.Host),
		zap.String("url", summarize(r.URL.String())),
		zap.Error(err),
	)
	http.Error(w, err.Error(), status)
}

// tunnel relays a CONNECT stream in both directions
func (p *Proxy) tunnel(w http.ResponseWriter, r *http.Request) {
	breaker := p.breakers.For(r.Host)
	done, err := breaker.Allow()
	if err != nil {
		p.fail(w, r, err)
		return
	}

	upstream, err := p.dial("tcp", r.Host)
	if err != nil {
		done(false)
		p.fail(w, r, err)
		return
	}
	done(true)

	hj, ok := w.(http.Hijacker)
	if !ok {
		upstream.Close()
		http.Error(w, "tunneling not supported", http.StatusInternalServerError)
		return
	}
	client, buf, err := hj.Hijack()
	if err != nil {
		upstream.Close()
		p.logger.Warn("hijack failed", zap.Error(err))
		return
	}

	if _, err := client.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		client.Close()
		upstream.Close()
		return
	}
	p.record("tunnel", false)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// bytes the client sent after the CONNECT header
		if n := buf.Reader.Buffered(); n > 0 {
			pending, _ := buf.Reader.Peek(n)
			_, _ = upstream.Write(pending)
		}
		_, _ = io.Copy(upstream, client)
		closeWrite(upstream)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(client, upstream)
		closeWrite(client)
	}()
	wg.Wait()
	client.Close()
	upstream.Close()
}

func closeWrite(c net.Conn) {
	if tc, ok := c.(interface{ CloseWrite() error }); ok {
		_ = tc.CloseWrite()
	}
}

func (p *Proxy) record(outcome string, injected bool) {
	if p.metrics != nil {
		p.metrics.RecordProxied(outcome, injected)
	}
}

// summarize shortens long URLs for logs
func summarize(u string) string {
	const max = 120
	if len(u) <= max {
		return u
	}
	return u[:max/2] + "..." + u[len(u)-max/2+3:]
}

// IsProxyRequest reports whether r targets another origin, either as an
// absolute-URI proxy request or a CONNECT
func IsProxyRequest(r *http.Request, selfHosts ...string) bool {
	if r.Method == http.MethodConnect {
		return true
	}
	if r.URL.Host == "" {
		return false
	}
	for _, h := range selfHosts {
		if strings.EqualFold(r.URL.Host, h) {
			return false
		}
	}
	return true
}

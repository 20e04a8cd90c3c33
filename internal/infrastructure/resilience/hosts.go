package resilience

import (
	"fmt"
	"net/http"
	"sync"
)

// Hosts keeps one breaker per upstream host
type Hosts struct {
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewHosts creates an empty breaker set; every host gets the same settings
func NewHosts(s Settings) *Hosts {
	return &Hosts{settings: s, breakers: make(map[string]*Breaker)}
}

// For returns the breaker for host, creating it on first use
func (h *Hosts) For(host string) *Breaker {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.breakers[host]
	if !ok {
		b = New(host, h.settings)
		h.breakers[host] = b
	}
	return b
}

// States reports the position of every known host
func (h *Hosts) States() map[string]string {
	h.mu.Lock()
	breakers := make([]*Breaker, 0, len(h.breakers))
	for _, b := range h.breakers {
		breakers = append(breakers, b)
	}
	h.mu.Unlock()

	out := make(map[string]string, len(breakers))
	for _, b := range breakers {
		out[b.Name()] = b.State().String()
	}
	return out
}

// Transport wraps next so requests to a host whose breaker is open fail
// fast. Transport errors and gateway failures count against the host.
func (h *Hosts) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &guardedTransport{hosts: h, next: next}
}

type guardedTransport struct {
	hosts *Hosts
	next  http.RoundTripper
}

func (t *guardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	done, err := t.hosts.For(req.URL.Host).Allow()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.URL.Host, err)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		done(false)
		return nil, err
	}
	done(!upstreamFailure(resp.StatusCode))
	return resp, nil
}

func upstreamFailure(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

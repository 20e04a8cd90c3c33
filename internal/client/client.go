package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

// DefaultBaseURL is where a locally started proxy listens
const DefaultBaseURL = "http://localhost:4444"

// Error is a WebDriver error returned by the proxy
type Error struct {
	HTTPStatus int
	Status     int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
}

type errorPayload struct {
	SessionID string           `json:"sessionId"`
	Status    int              `json:"status"`
	Value     types.ErrorValue `json:"value"`
}

// Options configures a client
type Options struct {
	Timeout time.Duration
	// Retries applies to idempotent GETs that fail with a transport error or
	// a gateway status
	Retries   int
	Transport http.RoundTripper
	// OnConfirm receives navigation confirmations collected by any command
	OnConfirm func(types.Confirmation)
}

// DefaultOptions returns the settings wdctl uses
func DefaultOptions() Options {
	return Options{
		Timeout: 60 * time.Second,
		Retries: 2,
	}
}

// Client talks to one proxy
type Client struct {
	resty     *resty.Client
	breaker   *resilience.Breaker
	onConfirm func(types.Confirmation)
}

// New creates a client for the proxy at baseURL
func New(baseURL string, opts Options) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", "wdctl/1.0").
		SetHeader("Accept", "application/json").
		SetError(&errorPayload{}).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryable)
	if opts.Transport != nil {
		r.SetTransport(opts.Transport)
	}

	settings := resilience.DefaultSettings()
	settings.Cooldown = 5 * time.Second
	return &Client{
		resty:     r,
		breaker:   resilience.New("wdctl", settings),
		onConfirm: opts.OnConfirm,
	}
}

func retryable(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	switch resp.StatusCode() {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Breaker exposes the client's circuit breaker
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// do sends one command and decodes a successful payload
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*types.Payload, error) {
	done, err := c.breaker.Allow()
	if err != nil {
		return nil, fmt.Errorf("proxy unavailable: %w", err)
	}

	var payload types.Payload
	req := c.resty.R().SetContext(ctx).SetResult(&payload)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		done(false)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	done(resp.StatusCode() < http.StatusInternalServerError)

	if resp.IsError() {
		if e, ok := resp.Error().(*errorPayload); ok && e.Value.Error != "" {
			return nil, &Error{
				HTTPStatus: resp.StatusCode(),
				Status:     e.Status,
				Code:       e.Value.Error,
				Message:    e.Value.Message,
			}
		}
		return nil, fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status())
	}
	if payload.Confirm != nil && c.onConfirm != nil {
		c.onConfirm(*payload.Confirm)
	}
	return &payload, nil
}

// NewSession opens a session and returns its ID
func (c *Client) NewSession(ctx context.Context, caps types.Capabilities) (string, error) {
	body := map[string]interface{}{"desiredCapabilities": caps}
	p, err := c.do(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return "", err
	}
	if p.SessionID == "" {
		return "", errors.New("proxy returned no session id")
	}
	return p.SessionID, nil
}

// DeleteSession ends a session
func (c *Client) DeleteSession(ctx context.Context, sid string) error {
	_, err := c.do(ctx, http.MethodDelete, "/session/"+sid, nil)
	return err
}

// Status returns the proxy's status value
func (c *Client) Status(ctx context.Context) (map[string]interface{}, error) {
	p, err := c.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return nil, err
	}
	v, _ := p.Value.(map[string]interface{})
	return v, nil
}

// Forward navigates forward in history. The confirmation arrives attached
// to the next command's payload.
func (c *Client) Forward(ctx context.Context, sid string) (*types.Payload, error) {
	return c.do(ctx, http.MethodPost, "/session/"+sid+"/forward", nil)
}

// Back navigates back in history
func (c *Client) Back(ctx context.Context, sid string) (*types.Payload, error) {
	return c.do(ctx, http.MethodPost, "/session/"+sid+"/back", nil)
}

// Refresh reloads the page
func (c *Client) Refresh(ctx context.Context, sid string) (*types.Payload, error) {
	return c.do(ctx, http.MethodPost, "/session/"+sid+"/refresh", nil)
}

// Navigate opens url
func (c *Client) Navigate(ctx context.Context, sid, url string) (*types.Payload, error) {
	return c.do(ctx, http.MethodPost, "/session/"+sid+"/url", types.NavigateRequest{URL: url})
}

// Title returns the document title
func (c *Client) Title(ctx context.Context, sid string) (string, error) {
	p, err := c.do(ctx, http.MethodGet, "/session/"+sid+"/title", nil)
	if err != nil {
		return "", err
	}
	title, _ := p.Value.(string)
	return title, nil
}

// Screenshot returns the decoded image bytes
func (c *Client) Screenshot(ctx context.Context, sid string) ([]byte, error) {
	p, err := c.do(ctx, http.MethodGet, "/session/"+sid+"/screenshot", nil)
	if err != nil {
		return nil, err
	}
	data, ok := p.Value.(string)
	if !ok {
		return nil, fmt.Errorf("screenshot value is %T, want string", p.Value)
	}
	img, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	return img, nil
}

// Execute runs script in the page and returns its result
func (c *Client) Execute(ctx context.Context, sid, script string, args ...interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	p, err := c.do(ctx, http.MethodPost, "/session/"+sid+"/execute", types.ExecuteRequest{Script: script, Args: args})
	if err != nil {
		return nil, err
	}
	return p.Value, nil
}

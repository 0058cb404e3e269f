package node

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseSize bounds any single response body.
const maxResponseSize = 4 << 20

// HTTPClient is a Client over the node's REST API.
type HTTPClient struct {
	base   *url.URL
	client *http.Client
}

// Option configures an HTTPClient.
type Option func(*httpOptions) error

type httpOptions struct {
	timeout   time.Duration
	transport http.RoundTripper
	http3     bool
	tls       *tls.Config
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(o *httpOptions) error {
		if d < 0 {
			return fmt.Errorf("node: negative timeout %s", d)
		}
		o.timeout = d
		return nil
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *httpOptions) error {
		o.transport = rt
		return nil
	}
}

// WithHTTP3 sends requests over HTTP/3. tlsConfig may be nil.
func WithHTTP3(tlsConfig *tls.Config) Option {
	return func(o *httpOptions) error {
		o.http3 = true
		o.tls = tlsConfig
		return nil
	}
}

// NewHTTPClient returns a client for the node at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("node: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("node: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("node: url has no host")
	}

	o := httpOptions{timeout: 30 * time.Second}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	rt := o.transport
	if o.http3 {
		if rt, err = newHTTP3Transport(o.tls); err != nil {
			return nil, err
		}
	}
	return &HTTPClient{base: u, client: &http.Client{Timeout: o.timeout, Transport: rt}}, nil
}

func (c *HTTPClient) url(path string) string {
	return c.base.String() + path
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s returned %s", ErrUnavailable, req.URL.Path, resp.Status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, req.URL.Path, err)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return "", fmt.Errorf("node: build request: %w", err)
	}
	var out string
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (c *HTTPClient) StateRoot(ctx context.Context) (string, error) {
	return c.get(ctx, PathStateRoot)
}

func (c *HTTPClient) Program(ctx context.Context, id string) (string, error) {
	return c.get(ctx, PathProgram+url.PathEscape(id))
}

func (c *HTTPClient) Broadcast(ctx context.Context, tx []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(PathBroadcast), bytes.NewReader(tx))
	if err != nil {
		return "", fmt.Errorf("node: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	var id string
	if err := c.do(req, &id); err != nil {
		return "", err
	}
	return id, nil
}

var _ Client = (*HTTPClient)(nil)

// Package clients provides the HTTP JSON client used by transport connectors
// and compiled-in plugins to reach vendor REST APIs.
package clients

import (
	"bytes"
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/metrics"
)

// Auth schemes for API keys.
const (
	AuthBearer = "bearer"
	AuthHeader = "header"
	AuthNone   = "none"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Config configures the HTTP client
type Config struct {
	BaseURL string
	APIKey  string
	// AuthScheme is AuthBearer (Authorization: Bearer <key>), AuthHeader
	// (APIKeyHeader: <key>) or AuthNone.
	AuthScheme   string
	APIKeyHeader string
	Headers      map[string]string
	UserAgent    string

	// Timeouts
	RequestTimeout      time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration

	EnableHTTP2   bool
	TLSMinVersion uint16

	// Rate limiting, disabled when RateLimit is zero
	RateLimit float64
	RateBurst int

	// OAuth2 replaces API key auth when set
	OAuth2 *OAuth2Config
}

// DefaultConfig returns the default client configuration
func DefaultConfig() *Config {
	return &Config{
		AuthScheme:          AuthBearer,
		APIKeyHeader:        "X-API-Key",
		UserAgent:           "fincore-gateway/1.0",
		RequestTimeout:      30 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		EnableHTTP2:         true,
		TLSMinVersion:       tls.VersionTLS12,
		RateBurst:           1,
	}
}

// ConfigFromValues builds a client config from connector configuration keys:
// api_url, api_key, auth_scheme, api_key_header, headers, timeout_ms,
// rate_limit, rate_burst and the oauth_* keys.
func ConfigFromValues(v config.Values) *Config {
	c := DefaultConfig()
	c.BaseURL = v.String("api_url", "")
	c.APIKey = v.String("api_key", "")
	c.AuthScheme = strings.ToLower(v.String("auth_scheme", c.AuthScheme))
	c.APIKeyHeader = v.String("api_key_header", c.APIKeyHeader)
	c.RequestTimeout = v.Duration("timeout_ms", c.RequestTimeout)
	c.EnableHTTP2 = v.Bool("http2", c.EnableHTTP2)
	if rate := v.Int("rate_limit", 0); rate > 0 {
		c.RateLimit = float64(rate)
		c.RateBurst = v.Int("rate_burst", rate)
	}
	if h := v.Map("headers"); len(h) > 0 {
		c.Headers = make(map[string]string, len(h))
		for k, val := range h {
			c.Headers[k] = fmt.Sprint(val)
		}
	}
	if tokenURL := v.String("oauth_token_url", ""); tokenURL != "" {
		c.OAuth2 = &OAuth2Config{
			TokenURL:     tokenURL,
			ClientID:     v.String("oauth_client_id", ""),
			ClientSecret: v.String("oauth_client_secret", ""),
			Scopes:       v.Strings("oauth_scopes"),
		}
	}
	return c
}

// Client is a JSON-over-HTTP client bound to one base URL
type Client struct {
	config     *Config
	logger     *zap.Logger
	base       *url.URL
	transport  *http.Transport
	httpClient *http.Client
	limiter    *TokenBucketRateLimiter
}

// NewClient creates a client. The base URL must be absolute.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("invalid api_url %q", cfg.BaseURL))
	}

	c := &Client{
		config: cfg,
		logger: logger.Get().With(zap.String("component", "http_client"), zap.String("host", base.Host)),
		base:   base,
	}

	c.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: cfg.TLSMinVersion},
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(c.transport); err != nil {
			c.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	c.httpClient = &http.Client{
		Transport: c.transport,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	if cfg.OAuth2 != nil {
		c.httpClient = cfg.OAuth2.client(c.httpClient)
	}

	if cfg.RateLimit > 0 {
		c.limiter = NewTokenBucketRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	return c, nil
}

// BaseURL returns the client's base URL
func (c *Client) BaseURL() string {
	return c.base.String()
}

// GetJSON performs GET <base>/<path>?<query> and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// PostJSON encodes body as JSON, POSTs it to <base>/<path> and decodes the
// response into out. out may be nil.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransformation, "failed to encode request body")
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

// Status performs a GET and returns only the status code.
func (c *Client) Status(ctx context.Context, path string) (int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Do sends req after rate limiting and records its latency.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "rate limit wait cancelled")
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.RecordHTTPRequest(req.URL.Host, req.Method, "error", duration)
		c.logger.Debug("request failed", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
		return nil, classifyTransportError(err, req)
	}
	metrics.RecordHTTPRequest(req.URL.Host, req.Method, strconv.Itoa(resp.StatusCode), duration)
	return resp, nil
}

// Close releases idle connections
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
	}
	if resp.StatusCode >= 300 {
		return statusError(req, resp.StatusCode, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransformation, "response is not valid JSON")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.resolve(path)
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid request")
	}

	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	if c.config.OAuth2 == nil && c.config.APIKey != "" {
		switch c.config.AuthScheme {
		case AuthHeader:
			req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
		case AuthNone:
		default:
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}
	}
	return req, nil
}

func (c *Client) resolve(path string) *url.URL {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if u, err := url.Parse(path); err == nil {
			return u
		}
	}
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return &u
}

// StatusError is the cause attached to errors for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from an error returned by the client,
// or 0 when the request never got a response.
func StatusCode(err error) int {
	var se *StatusError
	if stderrors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func statusError(req *http.Request, code int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	cause := &StatusError{StatusCode: code, Body: text}

	errType := errors.ErrorTypeConnection
	switch {
	case code == http.StatusNotFound:
		errType = errors.ErrorTypeNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		errType = errors.ErrorTypeConfig
	case code >= 400 && code < 500:
		errType = errors.ErrorTypeValidation
	}
	return errors.Wrap(cause, errType, fmt.Sprintf("%s %s returned %d", req.Method, req.URL.Path, code)).
		WithDetail("status_code", code)
}

func classifyTransportError(err error, req *http.Request) error {
	msg := fmt.Sprintf("%s %s failed", req.Method, req.URL.Path)
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, msg)
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, msg)
}

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"placecell.org/internal/audit"
	"placecell.org/internal/ids"
	"placecell.org/internal/obs"
)

const (
	authHeader        = "Authorization"
	bearer            = "Bearer "
	requestIDHeader   = "X-Request-ID"
	idempotencyHeader = "Idempotency-Key"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 16 << 20
)

// TokenSource supplies the bearer token of the active session, or "" when
// nobody is signed in.
type TokenSource interface {
	Token() string
}

// Client is the single gateway for portal calls. It attaches the session
// token, tags requests with ids and maps failures onto *Error. It never
// retries and never refreshes tokens.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	limiter        *rate.Limiter
	metrics        *obs.HTTPMetrics
	onUnauthorized func(ctx context.Context)
}

// Option configures the client.
type Option func(*Client) error

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client is nil")
		}
		c.http = hc
		return nil
	}
}

// WithTokenSource attaches the session whose token is sent on every call.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) error {
		c.tokens = ts
		return nil
	}
}

// WithRateLimit caps outbound requests per second. perSecond <= 0 disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) error {
		if perSecond <= 0 {
			c.limiter = nil
			return nil
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithMetrics records every call on m.
func WithMetrics(m *obs.HTTPMetrics) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// WithUnauthorizedHandler is invoked when an authenticated call comes back
// 401. The CLI uses it to force a logout.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) error {
		c.onUnauthorized = fn
		return nil
	}
}

// New builds a client for the portal rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL returns the portal root.
func (c *Client) BaseURL() string { return c.baseURL }

type idempotencyKey struct{}

// WithIdempotencyKey makes the next call through ctx carry an Idempotency-Key header.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKey{}, key)
}

func idempotencyKeyFromContext(ctx context.Context) string {
	v, _ := ctx.Value(idempotencyKey{}).(string)
	return v
}

// GetJSON performs GET path?query and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	_, _, err := c.do(ctx, call{method: http.MethodGet, path: path, query: query}, out)
	return err
}

// PostJSON sends in as JSON and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.sendJSON(ctx, http.MethodPost, path, in, out)
}

// PutJSON sends in as JSON with PUT.
func (c *Client) PutJSON(ctx context.Context, path string, in, out any) error {
	return c.sendJSON(ctx, http.MethodPut, path, in, out)
}

// PatchJSON sends in as JSON with PATCH.
func (c *Client) PatchJSON(ctx context.Context, path string, in, out any) error {
	return c.sendJSON(ctx, http.MethodPatch, path, in, out)
}

// Delete issues DELETE path.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	_, _, err := c.do(ctx, call{method: http.MethodDelete, path: path}, out)
	return err
}

// PostMultipart sends form as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, path string, form *Form, out any) error {
	return c.sendForm(ctx, http.MethodPost, path, form, out)
}

// PutMultipart sends form with PUT.
func (c *Client) PutMultipart(ctx context.Context, path string, form *Form, out any) error {
	return c.sendForm(ctx, http.MethodPut, path, form, out)
}

// PatchMultipart sends form with PATCH.
func (c *Client) PatchMultipart(ctx context.Context, path string, form *Form, out any) error {
	return c.sendForm(ctx, http.MethodPatch, path, form, out)
}

// GetRaw returns the undecoded body and its content type, for downloads.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values) ([]byte, string, error) {
	body, ct, err := c.do(ctx, call{method: http.MethodGet, path: path, query: query}, nil)
	return body, ct, err
}

// Invalidate asks the server to revoke token. It uses the given token rather
// than the session's and never triggers the unauthorized handler.
func (c *Client) Invalidate(ctx context.Context, path, token string) error {
	_, _, err := c.do(ctx, call{method: http.MethodPost, path: path, token: token, explicitToken: true}, nil)
	return err
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	_, _, err := c.do(ctx, call{method: method, path: path, body: body, contentType: "application/json"}, out)
	return err
}

func (c *Client) sendForm(ctx context.Context, method, path string, form *Form, out any) error {
	if form == nil {
		form = &Form{}
	}
	body, ct, err := form.encode()
	if err != nil {
		return fmt.Errorf("encode form: %w", err)
	}
	_, _, err = c.do(ctx, call{method: method, path: path, body: body, contentType: ct}, out)
	return err
}

type call struct {
	method        string
	path          string
	query         url.Values
	body          io.Reader
	contentType   string
	token         string
	explicitToken bool
}

func (c *Client) do(ctx context.Context, in call, out any) ([]byte, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", fmt.Errorf("rate limit: %w", err)
		}
	}

	target := c.baseURL + "/" + strings.TrimLeft(in.path, "/")
	if len(in.query) > 0 {
		target += "?" + in.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, in.method, target, in.body)
	if err != nil {
		return nil, "", err
	}
	if in.contentType != "" && in.body != nil {
		req.Header.Set("Content-Type", in.contentType)
	}
	req.Header.Set("Accept", "application/json")

	rid := audit.RequestIDFromContext(ctx)
	if rid == "" {
		rid = ids.RequestID()
	}
	req.Header.Set(requestIDHeader, rid)
	if key := idempotencyKeyFromContext(ctx); key != "" {
		req.Header.Set(idempotencyHeader, key)
	}

	token := in.token
	if !in.explicitToken && c.tokens != nil {
		token = c.tokens.Token()
	}
	if token != "" {
		req.Header.Set(authHeader, bearer+token)
	}

	done := c.metrics.Begin(in.method, req.URL.Path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		done(0)
		obs.LogRequest(map[string]any{
			"method":     in.method,
			"path":       req.URL.Path,
			"request_id": rid,
			"error":      err.Error(),
		})
		return nil, "", fmt.Errorf("%s %s: %w", in.method, in.path, err)
	}
	defer resp.Body.Close()
	done(resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	obs.LogRequest(map[string]any{
		"method":      in.method,
		"path":        req.URL.Path,
		"status":      resp.StatusCode,
		"request_id":  rid,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := mapError(in.method, in.path, resp.StatusCode, body)
		if resp.StatusCode == http.StatusUnauthorized && token != "" && !in.explicitToken && c.onUnauthorized != nil {
			c.onUnauthorized(context.WithoutCancel(ctx))
		}
		return nil, "", apiErr
	}

	ct := resp.Header.Get("Content-Type")
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, ct, fmt.Errorf("decode %s %s: %w", in.method, in.path, err)
		}
	}
	return body, ct, nil
}

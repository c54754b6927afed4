package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/gatewaysync/internal/observability"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts    = 5
	DefaultRequestTimeout = 10 * time.Second

	adminTokenHeader = "Kong-Admin-Token"
	maxErrorBody     = 64 << 10
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL        string
	AdminToken     string
	RequestTimeout time.Duration
	MaxAttempts    int
	Backoff        BackoffConfig
	TLS            TLSConfig
	HTTPClient     *http.Client
	Sleep          SleepFunc
	Logger         zerolog.Logger
}

// Client issues synchronous admin API requests with retry and backoff.
type Client struct {
	baseURL     string
	adminToken  string
	http        *http.Client
	maxAttempts int
	backoff     BackoffConfig
	sleep       SleepFunc
	log         zerolog.Logger
}

// Response is a successful admin API reply with its body fully read.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into out.
func (r *Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("admin: decode response: %w", err)
	}
	return nil
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, ErrEmptyBaseURL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Backoff == (BackoffConfig{}) {
		opts.Backoff = DefaultBackoff()
	}
	if opts.HTTPClient == nil && opts.TLS.enabled() {
		hc, err := opts.TLS.httpClient(opts)
		if err != nil {
			return nil, err
		}
		opts.HTTPClient = hc
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.RequestTimeout}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Client{
		baseURL:     base,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		http:        opts.HTTPClient,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		sleep:       opts.Sleep,
		log:         opts.Logger,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil)
	return err
}

// Do sends one logical request. 5xx, 429 and network failures are retried up
// to the attempt ceiling; any other 4xx is returned immediately.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	target := c.url(path)
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("admin: encode %s %s: %w", method, target, err)
		}
		payload = b
	}
	resource := resourceLabel(path)

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		final := attempt == c.maxAttempts-1
		verbose := attempt == 0 || final

		resp, err := c.once(ctx, method, target, payload, resource)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if verbose {
				c.log.Error().
					Str("method", method).
					Str("url", target).
					Int("attempt", attempt+1).
					Err(err).
					Msg("admin request failed")
			}
			lastErr = err
		case resp.StatusCode < http.StatusBadRequest:
			return resp, nil
		default:
			serr := &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: resp.Body}
			if verbose {
				c.log.Error().
					Str("method", method).
					Str("url", target).
					Int("status", resp.StatusCode).
					Int("attempt", attempt+1).
					Str("response", strings.TrimSpace(string(resp.Body))).
					Msg("admin request rejected")
			}
			if !serr.Retryable() {
				return nil, serr
			}
			lastErr = serr
		}

		if final {
			break
		}
		observability.RecordAdminRetry(method, resource)
		if err := c.sleep(ctx, c.backoff.Delay(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, &CommunicationError{Method: method, URL: target, Attempts: c.maxAttempts, Err: lastErr}
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, resource string) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminToken != "" {
		req.Header.Set(adminTokenHeader, c.adminToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.RecordAdminRequest(method, resource, 0, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	limit := int64(-1)
	if resp.StatusCode >= http.StatusBadRequest {
		limit = maxErrorBody
	}
	var data []byte
	if limit > 0 {
		data, err = io.ReadAll(io.LimitReader(resp.Body, limit))
	} else {
		data, err = io.ReadAll(resp.Body)
	}
	observability.RecordAdminRequest(method, resource, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// resourceLabel keeps collection segments only: /services/x/routes/y -> services/routes.
func resourceLabel(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		path = ""
		if j := strings.Index(rest, "/"); j >= 0 {
			path = rest[j:]
		}
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	kept := make([]string, 0, (len(parts)+1)/2)
	for i := 0; i < len(parts); i += 2 {
		if parts[i] != "" {
			kept = append(kept, parts[i])
		}
	}
	if len(kept) == 0 {
		return "root"
	}
	return strings.Join(kept, "/")
}
